package features

import (
	"fmt"

	"github.com/IteraLabs/convective/internal/market"
)

// Extractor converts event windows into (feature vector, label) pairs.
//
// A window of Lookback+1 events yields one sample: the features come from
// events [0..Lookback-1] only, and the label is the sign of the midprice
// move from event Lookback-1 to event Lookback. Nothing at or after the
// label boundary ever enters a feature.
type Extractor struct {
	Lookback int     // events per feature window, >= 1
	Depth    int     // VWAP depth
	Bps      float64 // TAV band
}

// NewExtractor returns an extractor with the default depth/band settings.
func NewExtractor(lookback int) Extractor {
	return Extractor{Lookback: lookback, Depth: 3, Bps: 0.001}
}

// Extract computes one sample from a window of at least Lookback+1 events.
// The label is 1.0 for an upward next-interval midprice move, 0.0 otherwise.
// Returns ErrInsufficientHistory when the window is too short.
func (ex Extractor) Extract(window []market.Event) ([]float64, float64, error) {
	if ex.Lookback < 1 {
		return nil, 0, fmt.Errorf("lookback %d: %w", ex.Lookback, ErrInsufficientHistory)
	}
	if len(window) < ex.Lookback+1 {
		return nil, 0, fmt.Errorf("window %d < lookback+1 %d: %w", len(window), ex.Lookback+1, ErrInsufficientHistory)
	}

	// Snapshot features from the last in-window book, trade features from
	// every in-window trade. window[ex.Lookback] exists solely to price the
	// label.
	last := window[ex.Lookback-1].Book
	trades := make([]market.Trade, 0, ex.Lookback)
	for _, ev := range window[:ex.Lookback] {
		if ev.Kind == market.EventTrade && ev.Trade != nil {
			trades = append(trades, *ev.Trade)
		}
	}

	vec := []float64{
		Spread(last),
		Midprice(last),
		WeightedMidprice(last),
		Microprice(last),
		VWAP(last, ex.Depth),
		TAV(last, ex.Bps),
		Imbalance(last),
		TradeIntensity(trades),
		TradeDirectionImbalance(trades),
	}

	label := 0.0
	if window[ex.Lookback].Book.MidPrice() > last.MidPrice() {
		label = 1.0
	}

	return vec, label, nil
}

// Dataset slides the extraction window one event at a time over the stream
// and collects every full window into a design matrix and label vector.
// Short stretches at the end of the stream are skipped, not errors; an
// entirely too-short stream returns ErrInsufficientHistory.
func (ex Extractor) Dataset(events []market.Event) ([][]float64, []float64, error) {
	if len(events) < ex.Lookback+1 {
		return nil, nil, fmt.Errorf("stream of %d events: %w", len(events), ErrInsufficientHistory)
	}

	n := len(events) - ex.Lookback
	x := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i+ex.Lookback < len(events); i++ {
		vec, label, err := ex.Extract(events[i : i+ex.Lookback+1])
		if err != nil {
			continue
		}
		x = append(x, vec)
		y = append(y, label)
	}

	return x, y, nil
}
