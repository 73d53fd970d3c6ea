package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/IteraLabs/convective/internal/common"
	"github.com/IteraLabs/convective/internal/events"
	"github.com/IteraLabs/convective/internal/features"
	"github.com/IteraLabs/convective/internal/market"
	"github.com/IteraLabs/convective/internal/model"
	"github.com/IteraLabs/convective/internal/optimizer"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

type runEntry struct {
	status  string
	history []optimizer.ConvergenceRecord
	result  *optimizer.Result
	cancel  context.CancelFunc
}

// Handler exposes the optimizer over HTTP: start a run, poll its status,
// fetch its convergence history.
type Handler struct {
	logger hclog.Logger
	bus    *events.EventBus

	mu   sync.RWMutex
	runs map[string]*runEntry

	cron *cron.Cron
}

// NewHandler wires the handler onto the event bus and starts the periodic
// progress reporter.
func NewHandler(logger hclog.Logger, bus *events.EventBus) *Handler {
	handler := &Handler{
		logger: logger,
		bus:    bus,
		runs:   map[string]*runEntry{},
		cron:   cron.New(),
	}

	roundChan := make(chan events.Event, 64)
	bus.Subscribe(common.ROUND_COMPLETED_EVENT_TYPE, roundChan)
	go handler.roundEventLoop(roundChan)

	// In-flight progress lines for long runs.
	handler.cron.AddFunc("@every 15s", handler.logProgress)
	handler.cron.Start()

	return handler
}

// Router returns the mux router with all run endpoints registered.
func (handler *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/run", handler.StartRun).Methods(http.MethodPost)
	router.HandleFunc("/run/{id}", handler.GetRun).Methods(http.MethodGet)
	router.HandleFunc("/run/{id}/history", handler.GetRunHistory).Methods(http.MethodGet)
	router.HandleFunc("/run/{id}/stop", handler.StopRun).Methods(http.MethodPost)
	return router
}

// Close stops the progress reporter.
func (handler *Handler) Close() {
	handler.cron.Stop()
}

// StartRun validates the request, builds the synthetic workload and starts
// the run asynchronously.
func (handler *Handler) StartRun(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &StartRunRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		handler.logger.Error("error decoding run request", "error", err)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	graph, err := request.ToGraph()
	if err != nil {
		handler.logger.Error("invalid topology", "error", err)
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(err.Error(), rw)
		return
	}

	request.Generator.Partitions = graph.NodeCount()
	streams, err := market.Generate(request.Generator)
	if err != nil {
		handler.logger.Error("invalid generator config", "error", err)
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(err.Error(), rw)
		return
	}

	lookback := request.Lookback
	if lookback <= 0 {
		lookback = 10
	}
	extractor := features.NewExtractor(lookback)
	partitions := make([]*model.Batch, graph.NodeCount())
	for i, stream := range streams {
		x, y, err := extractor.Dataset(stream.Events)
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			toJSON(err.Error(), rw)
			return
		}
		partitions[i], err = model.NewBatch(x, y)
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			toJSON(err.Error(), rw)
			return
		}
	}

	cfg := request.ToConfig()
	if err := cfg.Validate(); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(err.Error(), rw)
		return
	}

	runId := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	handler.mu.Lock()
	handler.runs[runId] = &runEntry{status: common.RUN_STATUS_RUNNING, cancel: cancel}
	handler.mu.Unlock()

	handler.logger.Info(fmt.Sprintf("starting run %s with %d nodes, model %s, mixing %s",
		runId, graph.NodeCount(), cfg.ModelName, cfg.Mixing))

	go func() {
		defer cancel()
		opt := optimizer.New(handler.logger, handler.bus, runId)
		result, err := opt.Run(ctx, graph, partitions, cfg)

		handler.mu.Lock()
		defer handler.mu.Unlock()
		entry := handler.runs[runId]
		if err != nil {
			entry.status = common.RUN_STATUS_DIVERGED
			handler.logger.Error("run failed at setup", "runId", runId, "error", err)
			return
		}
		entry.result = result
		entry.status = string(result.Status)
	}()

	toJSON(StartRunResponse{RunId: runId}, rw)
}

// GetRun reports status and, once finished, the fitted parameters.
func (handler *Handler) GetRun(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	runId := mux.Vars(r)["id"]

	handler.mu.RLock()
	entry, ok := handler.runs[runId]
	if !ok {
		handler.mu.RUnlock()
		rw.WriteHeader(http.StatusNotFound)
		return
	}

	resp := RunStatusResponse{RunId: runId, Status: entry.status}
	if len(entry.history) > 0 {
		last := entry.history[len(entry.history)-1]
		resp.Rounds = last.Round
		resp.Objective = last.Objective
		resp.Disagreement = last.Disagreement
	}
	if entry.result != nil {
		resp.Params = entry.result.Params
		resp.Rounds = entry.result.Rounds
		if entry.result.FailureReason != nil {
			resp.Error = entry.result.FailureReason.Error()
		}
	}
	handler.mu.RUnlock()

	toJSON(resp, rw)
}

// StopRun cancels a running run. The optimizer honors cancellation between
// rounds, so the run finishes its in-flight round and lands in the
// Cancelled status. Stopping an already-finished run is a no-op.
func (handler *Handler) StopRun(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	runId := mux.Vars(r)["id"]

	handler.mu.RLock()
	entry, ok := handler.runs[runId]
	handler.mu.RUnlock()
	if !ok {
		rw.WriteHeader(http.StatusNotFound)
		return
	}

	handler.logger.Info(fmt.Sprintf("stopping run %s", runId))
	entry.cancel()
	rw.WriteHeader(http.StatusOK)
}

// GetRunHistory returns the full ConvergenceRecord stream of a run.
func (handler *Handler) GetRunHistory(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	runId := mux.Vars(r)["id"]

	handler.mu.RLock()
	entry, ok := handler.runs[runId]
	if !ok {
		handler.mu.RUnlock()
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	history := make([]optimizer.ConvergenceRecord, len(entry.history))
	copy(history, entry.history)
	handler.mu.RUnlock()

	toJSON(history, rw)
}

func (handler *Handler) roundEventLoop(roundChan <-chan events.Event) {
	for event := range roundChan {
		data, ok := event.Data.(events.RoundCompletedEvent)
		if !ok {
			continue
		}
		handler.mu.Lock()
		if entry, exists := handler.runs[data.RunId]; exists {
			entry.history = append(entry.history, optimizer.ConvergenceRecord{
				Round:        data.Round,
				Objective:    data.Objective,
				Disagreement: data.Disagreement,
			})
		}
		handler.mu.Unlock()
	}
}

func (handler *Handler) logProgress() {
	handler.mu.RLock()
	defer handler.mu.RUnlock()
	for runId, entry := range handler.runs {
		if entry.status != common.RUN_STATUS_RUNNING || len(entry.history) == 0 {
			continue
		}
		last := entry.history[len(entry.history)-1]
		handler.logger.Info("run in progress", "runId", runId,
			"round", last.Round, "objective", last.Objective, "disagreement", last.Disagreement)
	}
}
