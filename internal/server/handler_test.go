package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IteraLabs/convective/internal/common"
	"github.com/IteraLabs/convective/internal/events"
	"github.com/IteraLabs/convective/internal/market"
	"github.com/IteraLabs/convective/internal/optimizer"
	"github.com/IteraLabs/convective/internal/server"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := server.NewHandler(hclog.NewNullLogger(), events.NewEventBus())
	t.Cleanup(handler.Close)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postRun(t *testing.T, srv *httptest.Server, req server.StartRunRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/run", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

// ringRequest builds a small triangle run that terminates after the first
// round: the tolerance dwarfs any disagreement the tiny steps can produce.
func ringRequest() server.StartRunRequest {
	gen := market.DefaultGenConfig()
	gen.Seed = 42
	gen.Horizon = 200

	return server.StartRunRequest{
		Nodes:        3,
		Edges:        []server.EdgeSpec{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 0}},
		Generator:    gen,
		Lookback:     10,
		Model:        common.MODEL_LINEAR,
		LearningRate: 1e-6,
		Tolerance:    1e6,
		MaxRounds:    5,
	}
}

func TestStartRun_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := postRun(t, srv, ringRequest())
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var started server.StartRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.RunId)

	// Poll until the run leaves the Running state.
	var status server.RunStatusResponse
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/run/" + started.RunId)
		require.NoError(t, err)
		defer r.Body.Close()
		require.Equal(t, http.StatusOK, r.StatusCode)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		return status.Status != common.RUN_STATUS_RUNNING
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, common.RUN_STATUS_CONVERGED, status.Status)
	assert.Equal(t, started.RunId, status.RunId)
	assert.NotEmpty(t, status.Params)
	assert.Empty(t, status.Error)

	// History arrives through the event bus, so allow it to catch up.
	var history []optimizer.ConvergenceRecord
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/run/" + started.RunId + "/history")
		require.NoError(t, err)
		defer r.Body.Close()
		require.Equal(t, http.StatusOK, r.StatusCode)
		history = nil
		require.NoError(t, json.NewDecoder(r.Body).Decode(&history))
		return len(history) > 0
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, history[0].Round)
	assert.Greater(t, history[0].Disagreement, 0.0)
}

func TestStopRun_CancelsRunningRun(t *testing.T) {
	srv := newTestServer(t)

	// A run that cannot terminate on its own within the test: unreachable
	// tolerance and a round budget far beyond what the polling window allows.
	req := ringRequest()
	req.Tolerance = 1e-300
	req.MaxRounds = 100000

	resp := postRun(t, srv, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started server.StartRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	stop, err := http.Post(srv.URL+"/run/"+started.RunId+"/stop", "application/json", nil)
	require.NoError(t, err)
	stop.Body.Close()
	require.Equal(t, http.StatusOK, stop.StatusCode)

	var status server.RunStatusResponse
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/run/" + started.RunId)
		require.NoError(t, err)
		defer r.Body.Close()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		return status.Status != common.RUN_STATUS_RUNNING
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, common.RUN_STATUS_CANCELLED, status.Status)
}

func TestStopRun_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/run/no-such-run/stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartRun_RejectsBadTopology(t *testing.T) {
	srv := newTestServer(t)

	req := ringRequest()
	req.Edges = req.Edges[:1] // node 2 unreachable
	resp := postRun(t, srv, req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartRun_RejectsBadGenerator(t *testing.T) {
	srv := newTestServer(t)

	req := ringRequest()
	req.Generator.Reversion = 2.0
	resp := postRun(t, srv, req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartRun_RejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/run", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/run/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/run/no-such-run/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
