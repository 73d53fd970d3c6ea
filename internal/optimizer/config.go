package optimizer

import (
	"fmt"
	"time"

	"github.com/IteraLabs/convective/internal/common"
	"github.com/IteraLabs/convective/internal/spectral"
)

// UpdateStrategy orders the gradient and mixing steps within a round.
type UpdateStrategy string

const (
	// AdaptThenCombine runs the local gradient step first, then exchanges
	// and mixes. This is the default.
	AdaptThenCombine UpdateStrategy = common.STRATEGY_ADAPT_THEN_COMBINE

	// CombineThenAdapt mixes first, then applies the local gradient step.
	CombineThenAdapt UpdateStrategy = common.STRATEGY_COMBINE_THEN_ADAPT
)

// Config holds every knob of a consensus run.
type Config struct {
	Mixing  spectral.MixingMethod
	Epsilon float64 // Laplacian mixing step size; <= 0 selects the midpoint of the stable range

	ModelName string
	Ridge     float64

	Strategy     UpdateStrategy
	LearningRate float64
	Tolerance    float64
	MaxRounds    int
	MaxRetries   int
	RoundTimeout time.Duration // 0 disables the per-round timeout
	NormBound    float64
	InitSeed     uint64
}

// DefaultConfig mirrors the package-wide defaults.
func DefaultConfig() Config {
	return Config{
		Mixing:       spectral.MixingMetropolis,
		ModelName:    common.MODEL_LINEAR,
		Strategy:     AdaptThenCombine,
		LearningRate: common.DEFAULT_LEARNING_RATE,
		Tolerance:    common.DEFAULT_TOLERANCE,
		MaxRounds:    common.DEFAULT_MAX_ROUNDS,
		MaxRetries:   common.DEFAULT_MAX_RETRIES,
		NormBound:    common.DEFAULT_NORM_BOUND,
		InitSeed:     1,
	}
}

// Validate rejects non-positive rates, tolerances and budgets.
func (cfg Config) Validate() error {
	switch {
	case cfg.LearningRate <= 0:
		return fmt.Errorf("learning rate %v must be positive", cfg.LearningRate)
	case cfg.Tolerance <= 0:
		return fmt.Errorf("tolerance %v must be positive", cfg.Tolerance)
	case cfg.MaxRounds <= 0:
		return fmt.Errorf("max rounds %d must be positive", cfg.MaxRounds)
	case cfg.MaxRetries < 0:
		return fmt.Errorf("max retries %d must be non-negative", cfg.MaxRetries)
	}
	switch cfg.Strategy {
	case AdaptThenCombine, CombineThenAdapt:
	default:
		return fmt.Errorf("unknown update strategy %q", cfg.Strategy)
	}
	return nil
}
