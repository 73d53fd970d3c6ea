package server

import (
	"encoding/json"
	"io"
	"time"

	"github.com/IteraLabs/convective/internal/market"
	"github.com/IteraLabs/convective/internal/optimizer"
	"github.com/IteraLabs/convective/internal/spectral"
)

func toJSON(i interface{}, w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(i)
}

func fromJSON(i interface{}, r io.Reader) error {
	d := json.NewDecoder(r)
	return d.Decode(i)
}

// EdgeSpec is one undirected edge of the worker topology.
type EdgeSpec struct {
	U      int     `json:"u"`
	V      int     `json:"v"`
	Weight float64 `json:"weight"`
}

// StartRunRequest configures a full optimization run: topology, synthetic
// market workload, feature window and optimizer knobs.
type StartRunRequest struct {
	Nodes int        `json:"nodes"`
	Edges []EdgeSpec `json:"edges"`

	Generator market.GenConfig `json:"generator"`
	Lookback  int              `json:"lookback"`

	Mixing         string  `json:"mixing"`
	Epsilon        float64 `json:"epsilon"`
	Model          string  `json:"model"`
	Ridge          float64 `json:"ridge"`
	Strategy       string  `json:"strategy"`
	LearningRate   float64 `json:"learningRate"`
	Tolerance      float64 `json:"tolerance"`
	MaxRounds      int     `json:"maxRounds"`
	MaxRetries     int     `json:"maxRetries"`
	RoundTimeoutMs int     `json:"roundTimeoutMs"`
	InitSeed       uint64  `json:"initSeed"`
}

// ToGraph builds the validated topology from the request.
func (req *StartRunRequest) ToGraph() (*spectral.Graph, error) {
	edges := make([]spectral.Edge, len(req.Edges))
	for i, e := range req.Edges {
		edges[i] = spectral.Edge{U: e.U, V: e.V, Weight: e.Weight}
	}
	return spectral.NewGraph(req.Nodes, edges)
}

// ToConfig maps the request onto an optimizer config, falling back to the
// defaults for zero-valued fields.
func (req *StartRunRequest) ToConfig() optimizer.Config {
	cfg := optimizer.DefaultConfig()
	if req.Mixing != "" {
		cfg.Mixing = spectral.MixingMethod(req.Mixing)
	}
	cfg.Epsilon = req.Epsilon
	if req.Model != "" {
		cfg.ModelName = req.Model
	}
	cfg.Ridge = req.Ridge
	if req.Strategy != "" {
		cfg.Strategy = optimizer.UpdateStrategy(req.Strategy)
	}
	if req.LearningRate > 0 {
		cfg.LearningRate = req.LearningRate
	}
	if req.Tolerance > 0 {
		cfg.Tolerance = req.Tolerance
	}
	if req.MaxRounds > 0 {
		cfg.MaxRounds = req.MaxRounds
	}
	if req.MaxRetries > 0 {
		cfg.MaxRetries = req.MaxRetries
	}
	if req.RoundTimeoutMs > 0 {
		cfg.RoundTimeout = time.Duration(req.RoundTimeoutMs) * time.Millisecond
	}
	if req.InitSeed > 0 {
		cfg.InitSeed = req.InitSeed
	}
	return cfg
}

// StartRunResponse returns the id of the accepted run.
type StartRunResponse struct {
	RunId string `json:"runId"`
}

// RunStatusResponse reports the run's current status and, once terminal,
// the fitted parameters.
type RunStatusResponse struct {
	RunId        string    `json:"runId"`
	Status       string    `json:"status"`
	Rounds       int       `json:"rounds"`
	Objective    float64   `json:"objective"`
	Disagreement float64   `json:"disagreement"`
	Params       []float64 `json:"params,omitempty"`
	Error        string    `json:"error,omitempty"`
}
