// Package market generates synthetic limit-order-book event streams used as
// the training workload for the consensus optimizer. The generator is a pure
// function of its config: identical configs reproduce identical streams
// event-for-event, which the reproducibility tests rely on.
package market

import (
	"errors"
	"fmt"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidParameters is returned by Validate/Generate for non-positive
// rates, volatility or sizes.
var ErrInvalidParameters = errors.New("market: invalid generator parameters")

// GenConfig parameterises the stochastic model: Poisson event arrivals,
// exponential order sizes and an Ornstein-Uhlenbeck mid-price.
type GenConfig struct {
	Seed       uint64
	Horizon    int // events per partition
	Partitions int

	ArrivalRate float64 // relative rate of new-order events
	CancelRate  float64 // relative rate of cancellations
	TradeRate   float64 // relative rate of trades

	MeanPrice  float64 // OU long-run mean
	Reversion  float64 // OU mean-reversion speed
	Volatility float64 // OU diffusion per step

	MeanSize float64 // mean order size (exponential)
	Depth    int     // quoted levels per side
	Tick     float64 // price grid spacing
}

// Validate checks the config, wrapping ErrInvalidParameters with the
// offending field.
func (cfg GenConfig) Validate() error {
	switch {
	case cfg.Horizon <= 0:
		return fmt.Errorf("horizon %d: %w", cfg.Horizon, ErrInvalidParameters)
	case cfg.Partitions <= 0:
		return fmt.Errorf("partitions %d: %w", cfg.Partitions, ErrInvalidParameters)
	case cfg.ArrivalRate <= 0 || cfg.CancelRate <= 0 || cfg.TradeRate <= 0:
		return fmt.Errorf("rates (%v,%v,%v): %w", cfg.ArrivalRate, cfg.CancelRate, cfg.TradeRate, ErrInvalidParameters)
	case cfg.MeanPrice <= 0:
		return fmt.Errorf("mean price %v: %w", cfg.MeanPrice, ErrInvalidParameters)
	case cfg.Reversion <= 0 || cfg.Reversion >= 1:
		return fmt.Errorf("reversion %v: %w", cfg.Reversion, ErrInvalidParameters)
	case cfg.Volatility <= 0:
		return fmt.Errorf("volatility %v: %w", cfg.Volatility, ErrInvalidParameters)
	case cfg.MeanSize <= 0:
		return fmt.Errorf("mean size %v: %w", cfg.MeanSize, ErrInvalidParameters)
	case cfg.Depth <= 0:
		return fmt.Errorf("depth %d: %w", cfg.Depth, ErrInvalidParameters)
	case cfg.Tick <= 0:
		return fmt.Errorf("tick %v: %w", cfg.Tick, ErrInvalidParameters)
	}
	return nil
}

// DefaultGenConfig returns a small but statistically plausible configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:        1,
		Horizon:     1000,
		Partitions:  4,
		ArrivalRate: 5.0,
		CancelRate:  3.0,
		TradeRate:   2.0,
		MeanPrice:   100.0,
		Reversion:   0.05,
		Volatility:  0.02,
		MeanSize:    2.0,
		Depth:       5,
		Tick:        0.01,
	}
}

// Generate produces one event stream per partition. Partition p draws from a
// source seeded with cfg.Seed+p, so partitions are independent but the whole
// output is reproducible from cfg alone. Restarting means calling Generate
// again with the same config.
func Generate(cfg GenConfig) ([]PartitionEvents, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := make([]PartitionEvents, cfg.Partitions)
	for p := 0; p < cfg.Partitions; p++ {
		out[p] = PartitionEvents{
			Partition: p,
			Events:    generatePartition(cfg, cfg.Seed+uint64(p)),
		}
	}
	return out, nil
}

// bookState is the mutable simulator state for one partition.
type bookState struct {
	mid     float64
	bidVols []float64
	askVols []float64
}

func generatePartition(cfg GenConfig, seed uint64) []Event {
	src := exprand.NewSource(seed)
	uni := exprand.New(src)
	size := distuv.Exponential{Rate: 1.0 / cfg.MeanSize, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	arrivals := distuv.Poisson{Lambda: cfg.ArrivalRate, Src: src}

	st := &bookState{
		mid:     cfg.MeanPrice,
		bidVols: make([]float64, cfg.Depth),
		askVols: make([]float64, cfg.Depth),
	}
	for k := 0; k < cfg.Depth; k++ {
		st.bidVols[k] = size.Rand()
		st.askVols[k] = size.Rand()
	}

	totalRate := cfg.ArrivalRate + cfg.CancelRate + cfg.TradeRate
	events := make([]Event, 0, cfg.Horizon)

	for t := 0; t < cfg.Horizon; t++ {
		// Euler-Maruyama OU step, dt = 1.
		st.mid += cfg.Reversion*(cfg.MeanPrice-st.mid) + cfg.Volatility*noise.Rand()
		if st.mid < cfg.Tick*float64(cfg.Depth+1) {
			st.mid = cfg.Tick * float64(cfg.Depth+1)
		}

		ev := Event{Step: t}
		u := uni.Float64() * totalRate
		switch {
		case u < cfg.ArrivalRate:
			ev.Kind = EventNew
			// Arrival bursts cluster at the touch; Poisson count scales
			// the placed volume.
			burst := 1.0 + arrivals.Rand()/cfg.ArrivalRate
			level := uni.Intn(cfg.Depth)
			if uni.Float64() < 0.5 {
				st.bidVols[level] += burst * size.Rand() / float64(level+1)
			} else {
				st.askVols[level] += burst * size.Rand() / float64(level+1)
			}
		case u < cfg.ArrivalRate+cfg.CancelRate:
			ev.Kind = EventCancel
			level := uni.Intn(cfg.Depth)
			if uni.Float64() < 0.5 {
				st.bidVols[level] = math.Max(st.bidVols[level]-size.Rand(), 0)
			} else {
				st.askVols[level] = math.Max(st.askVols[level]-size.Rand(), 0)
			}
		default:
			ev.Kind = EventTrade
			amount := size.Rand()
			trade := &Trade{Amount: amount}
			if uni.Float64() < 0.5 {
				trade.Side = SideBuy
				trade.Price = st.askPrice(cfg, 0)
				st.askVols[0] = math.Max(st.askVols[0]-amount, 0)
			} else {
				trade.Side = SideSell
				trade.Price = st.bidPrice(cfg, 0)
				st.bidVols[0] = math.Max(st.bidVols[0]-amount, 0)
			}
			ev.Trade = trade
		}

		// Depleted levels are refilled by passive liquidity providers.
		for k := 0; k < cfg.Depth; k++ {
			if st.bidVols[k] == 0 {
				st.bidVols[k] = size.Rand()
			}
			if st.askVols[k] == 0 {
				st.askVols[k] = size.Rand()
			}
		}

		ev.Book = st.snapshot(cfg)
		events = append(events, ev)
	}

	return events
}

func (st *bookState) bidPrice(cfg GenConfig, level int) float64 {
	return st.mid - cfg.Tick*float64(level+1)
}

func (st *bookState) askPrice(cfg GenConfig, level int) float64 {
	return st.mid + cfg.Tick*float64(level+1)
}

func (st *bookState) snapshot(cfg GenConfig) OrderBook {
	ob := OrderBook{
		Bids: make([]Level, cfg.Depth),
		Asks: make([]Level, cfg.Depth),
	}
	for k := 0; k < cfg.Depth; k++ {
		ob.Bids[k] = Level{Price: st.bidPrice(cfg, k), Volume: st.bidVols[k]}
		ob.Asks[k] = Level{Price: st.askPrice(cfg, k), Volume: st.askVols[k]}
	}
	return ob
}
