// Command train runs one consensus fit from TOML files: a run config and a
// topology file. Usage:
//
//	train <config.toml> <topology.toml>
package main

import (
	"context"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/IteraLabs/convective/internal/events"
	"github.com/IteraLabs/convective/internal/features"
	"github.com/IteraLabs/convective/internal/market"
	"github.com/IteraLabs/convective/internal/model"
	"github.com/IteraLabs/convective/internal/optimizer"
	"github.com/IteraLabs/convective/internal/spectral"
	"github.com/hashicorp/go-hclog"
)

type runConfig struct {
	Generator generatorConfig `toml:"generator"`
	Features  featureConfig   `toml:"features"`
	Optimizer optimizerConfig `toml:"optimizer"`
}

type generatorConfig struct {
	Seed        uint64  `toml:"seed"`
	Horizon     int     `toml:"horizon"`
	ArrivalRate float64 `toml:"arrival_rate"`
	CancelRate  float64 `toml:"cancel_rate"`
	TradeRate   float64 `toml:"trade_rate"`
	MeanPrice   float64 `toml:"mean_price"`
	Reversion   float64 `toml:"reversion"`
	Volatility  float64 `toml:"volatility"`
	MeanSize    float64 `toml:"mean_size"`
	Depth       int     `toml:"depth"`
	Tick        float64 `toml:"tick"`
}

type featureConfig struct {
	Lookback int `toml:"lookback"`
}

type optimizerConfig struct {
	Mixing         string  `toml:"mixing"`
	Epsilon        float64 `toml:"epsilon"`
	Model          string  `toml:"model"`
	Ridge          float64 `toml:"ridge"`
	Strategy       string  `toml:"strategy"`
	LearningRate   float64 `toml:"learning_rate"`
	Tolerance      float64 `toml:"tolerance"`
	MaxRounds      int     `toml:"max_rounds"`
	MaxRetries     int     `toml:"max_retries"`
	RoundTimeoutMs int     `toml:"round_timeout_ms"`
	InitSeed       uint64  `toml:"init_seed"`
}

type topologyConfig struct {
	Nodes int        `toml:"nodes"`
	Edges []edgeToml `toml:"edges"`
}

type edgeToml struct {
	U      int     `toml:"u"`
	V      int     `toml:"v"`
	Weight float64 `toml:"weight"`
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "convective",
		Level: hclog.LevelFromString("INFO"),
	})

	if len(os.Args) != 3 {
		logger.Error("usage: train <config.toml> <topology.toml>")
		os.Exit(1)
	}

	var cfg runConfig
	if _, err := toml.DecodeFile(os.Args[1], &cfg); err != nil {
		logger.Error("error reading run config", "error", err)
		os.Exit(1)
	}
	var topo topologyConfig
	if _, err := toml.DecodeFile(os.Args[2], &topo); err != nil {
		logger.Error("error reading topology", "error", err)
		os.Exit(1)
	}

	edges := make([]spectral.Edge, len(topo.Edges))
	for i, e := range topo.Edges {
		edges[i] = spectral.Edge{U: e.U, V: e.V, Weight: e.Weight}
	}
	graph, err := spectral.NewGraph(topo.Nodes, edges)
	if err != nil {
		logger.Error("invalid topology", "error", err)
		os.Exit(1)
	}

	genCfg := market.GenConfig{
		Seed:        cfg.Generator.Seed,
		Horizon:     cfg.Generator.Horizon,
		Partitions:  graph.NodeCount(),
		ArrivalRate: cfg.Generator.ArrivalRate,
		CancelRate:  cfg.Generator.CancelRate,
		TradeRate:   cfg.Generator.TradeRate,
		MeanPrice:   cfg.Generator.MeanPrice,
		Reversion:   cfg.Generator.Reversion,
		Volatility:  cfg.Generator.Volatility,
		MeanSize:    cfg.Generator.MeanSize,
		Depth:       cfg.Generator.Depth,
		Tick:        cfg.Generator.Tick,
	}
	streams, err := market.Generate(genCfg)
	if err != nil {
		logger.Error("invalid generator config", "error", err)
		os.Exit(1)
	}

	lookback := cfg.Features.Lookback
	if lookback <= 0 {
		lookback = 10
	}
	extractor := features.NewExtractor(lookback)
	partitions := make([]*model.Batch, graph.NodeCount())
	for i, stream := range streams {
		x, y, err := extractor.Dataset(stream.Events)
		if err != nil {
			logger.Error("feature extraction failed", "partition", i, "error", err)
			os.Exit(1)
		}
		partitions[i], err = model.NewBatch(x, y)
		if err != nil {
			logger.Error("bad partition batch", "partition", i, "error", err)
			os.Exit(1)
		}
		logger.Info("partition ready", "partition", i, "samples", partitions[i].Len())
	}

	optCfg := optimizer.DefaultConfig()
	if cfg.Optimizer.Mixing != "" {
		optCfg.Mixing = spectral.MixingMethod(cfg.Optimizer.Mixing)
	}
	optCfg.Epsilon = cfg.Optimizer.Epsilon
	if cfg.Optimizer.Model != "" {
		optCfg.ModelName = cfg.Optimizer.Model
	}
	optCfg.Ridge = cfg.Optimizer.Ridge
	if cfg.Optimizer.Strategy != "" {
		optCfg.Strategy = optimizer.UpdateStrategy(cfg.Optimizer.Strategy)
	}
	if cfg.Optimizer.LearningRate > 0 {
		optCfg.LearningRate = cfg.Optimizer.LearningRate
	}
	if cfg.Optimizer.Tolerance > 0 {
		optCfg.Tolerance = cfg.Optimizer.Tolerance
	}
	if cfg.Optimizer.MaxRounds > 0 {
		optCfg.MaxRounds = cfg.Optimizer.MaxRounds
	}
	if cfg.Optimizer.MaxRetries > 0 {
		optCfg.MaxRetries = cfg.Optimizer.MaxRetries
	}
	if cfg.Optimizer.RoundTimeoutMs > 0 {
		optCfg.RoundTimeout = time.Duration(cfg.Optimizer.RoundTimeoutMs) * time.Millisecond
	}
	if cfg.Optimizer.InitSeed > 0 {
		optCfg.InitSeed = cfg.Optimizer.InitSeed
	}

	eventBus := events.NewEventBus()
	opt := optimizer.New(logger, eventBus, "train")
	result, err := opt.Run(context.Background(), graph, partitions, optCfg)
	if err != nil {
		logger.Error("run failed at setup", "error", err)
		os.Exit(1)
	}

	logger.Info("run finished",
		"status", string(result.Status),
		"rounds", result.Rounds,
		"finalLearningRate", result.FinalLearningRate)
	if len(result.History) > 0 {
		last := result.History[len(result.History)-1]
		logger.Info("final diagnostics",
			"objective", last.Objective, "disagreement", last.Disagreement)
	}
	logger.Info("fitted parameters", "params", result.Params)
}
