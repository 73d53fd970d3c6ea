// Package features turns windows of order-book events into fixed-width
// numeric feature vectors and next-interval direction labels.
//
// The snapshot features and their canonical order follow the standard
// microstructure set: spread, midprice, volume-weighted midprice,
// microprice, depth-bounded VWAP, total available volume within a bps band,
// and best-level imbalance, followed by the trade-flow pair (intensity and
// signed direction imbalance).
package features

import (
	"errors"

	"github.com/IteraLabs/convective/internal/market"
)

// ErrInsufficientHistory is returned when a window is shorter than the
// configured lookback. Callers building datasets skip such windows instead
// of failing.
var ErrInsufficientHistory = errors.New("features: insufficient history in window")

// FeatureWidth is the fixed dimension of every extracted feature vector.
const FeatureWidth = 9

// FeatureNames returns the canonical feature order.
func FeatureNames() []string {
	return []string{
		"spread",
		"midprice",
		"w_midprice",
		"microprice",
		"vwap",
		"tav",
		"imb",
		"trade_intensity",
		"trade_direction_imbalance",
	}
}

// Spread returns best_ask - best_bid, 0 for an empty book.
func Spread(ob market.OrderBook) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price - ob.Bids[0].Price
}

// Midprice returns (best_bid + best_ask) / 2.
func Midprice(ob market.OrderBook) float64 {
	return ob.MidPrice()
}

// WeightedMidprice returns the volume-weighted mid at the best levels.
func WeightedMidprice(ob market.OrderBook) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	total := ob.Bids[0].Volume + ob.Asks[0].Volume
	if total == 0 {
		return 0
	}
	return (ob.Bids[0].Price*ob.Bids[0].Volume + ob.Asks[0].Price*ob.Asks[0].Volume) / total
}

// Microprice weights each side's price by the opposing side's size, pulling
// the estimate toward the thinner side.
func Microprice(ob market.OrderBook) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	total := ob.Bids[0].Volume + ob.Asks[0].Volume
	if total == 0 {
		return 0
	}
	return ob.Bids[0].Price*(ob.Asks[0].Volume/total) + ob.Asks[0].Price*(ob.Bids[0].Volume/total)
}

// VWAP returns the volume-weighted average price across both sides up to
// depth levels. Returns 0 when the book is shallower than depth or carries
// no volume (graceful degradation, matching the dataset assembly loop).
func VWAP(ob market.OrderBook, depth int) float64 {
	if depth > len(ob.Bids) || depth > len(ob.Asks) {
		return 0
	}
	sumPV, sumV := 0.0, 0.0
	for k := 0; k < depth; k++ {
		sumPV += ob.Bids[k].Price*ob.Bids[k].Volume + ob.Asks[k].Price*ob.Asks[k].Volume
		sumV += ob.Bids[k].Volume + ob.Asks[k].Volume
	}
	if sumV == 0 {
		return 0
	}
	return sumPV / sumV
}

// TAV returns the total available volume within bps of the best prices.
func TAV(ob market.OrderBook, bps float64) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	upperAsk := ob.Asks[0].Price * (1.0 + bps)
	lowerBid := ob.Bids[0].Price * (1.0 - bps)

	tav := 0.0
	for _, lvl := range ob.Bids {
		if lvl.Price >= lowerBid {
			tav += lvl.Volume
		}
	}
	for _, lvl := range ob.Asks {
		if lvl.Price <= upperAsk {
			tav += lvl.Volume
		}
	}
	return tav
}

// Imbalance returns ask_volume / (ask_volume + bid_volume) at the best
// levels, in [0,1].
func Imbalance(ob market.OrderBook) float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	total := ob.Asks[0].Volume + ob.Bids[0].Volume
	if total == 0 {
		return 0
	}
	return ob.Asks[0].Volume / total
}

// TradeIntensity returns the total traded volume across the given trades.
func TradeIntensity(trades []market.Trade) float64 {
	total := 0.0
	for _, t := range trades {
		total += t.Amount
	}
	return total
}

// TradeDirectionImbalance returns (buy_vol - sell_vol) / total_vol in
// [-1,1], 0 when there are no trades.
func TradeDirectionImbalance(trades []market.Trade) float64 {
	buy, sell := 0.0, 0.0
	for _, t := range trades {
		switch t.Side {
		case market.SideBuy:
			buy += t.Amount
		case market.SideSell:
			sell += t.Amount
		}
	}
	total := buy + sell
	if total == 0 {
		return 0
	}
	return (buy - sell) / total
}
