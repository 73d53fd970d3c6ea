package market_test

import (
	"testing"

	"github.com/IteraLabs/convective/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DeterministicForSeed(t *testing.T) {
	// Spec scenario: seed 42, horizon 1000, 3 partitions, invoked twice;
	// both outputs must be identical event-for-event.
	cfg := market.DefaultGenConfig()
	cfg.Seed = 42
	cfg.Horizon = 1000
	cfg.Partitions = 3

	first, err := market.Generate(cfg)
	require.NoError(t, err)
	second, err := market.Generate(cfg)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestGenerate_PartitionsDiffer(t *testing.T) {
	cfg := market.DefaultGenConfig()
	cfg.Partitions = 2
	cfg.Horizon = 200

	streams, err := market.Generate(cfg)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, 0, streams[0].Partition)
	assert.Equal(t, 1, streams[1].Partition)
	assert.NotEqual(t, streams[0].Events, streams[1].Events)
}

func TestGenerate_BookInvariants(t *testing.T) {
	cfg := market.DefaultGenConfig()
	cfg.Horizon = 500
	cfg.Partitions = 1

	streams, err := market.Generate(cfg)
	require.NoError(t, err)

	for _, ev := range streams[0].Events {
		book := ev.Book
		require.Len(t, book.Bids, cfg.Depth)
		require.Len(t, book.Asks, cfg.Depth)

		// Best bid below best ask, bids descending, asks ascending.
		require.Less(t, book.Bids[0].Price, book.Asks[0].Price)
		for k := 1; k < cfg.Depth; k++ {
			require.Less(t, book.Bids[k].Price, book.Bids[k-1].Price)
			require.Greater(t, book.Asks[k].Price, book.Asks[k-1].Price)
		}
		for k := 0; k < cfg.Depth; k++ {
			require.Greater(t, book.Bids[k].Volume, 0.0)
			require.Greater(t, book.Asks[k].Volume, 0.0)
		}

		if ev.Kind == market.EventTrade {
			require.NotNil(t, ev.Trade)
			require.Greater(t, ev.Trade.Amount, 0.0)
			require.Contains(t, []string{market.SideBuy, market.SideSell}, ev.Trade.Side)
		} else {
			require.Nil(t, ev.Trade)
		}
	}
}

func TestGenerate_MeanReversion(t *testing.T) {
	// Over a long horizon the OU mid-price should hover around MeanPrice.
	cfg := market.DefaultGenConfig()
	cfg.Horizon = 5000
	cfg.Partitions = 1

	streams, err := market.Generate(cfg)
	require.NoError(t, err)

	sum := 0.0
	for _, ev := range streams[0].Events {
		sum += ev.Book.MidPrice()
	}
	mean := sum / float64(len(streams[0].Events))
	assert.InDelta(t, cfg.MeanPrice, mean, 1.0)
}

func TestGenConfig_Validate(t *testing.T) {
	base := market.DefaultGenConfig()

	mutations := map[string]func(*market.GenConfig){
		"zero horizon":        func(c *market.GenConfig) { c.Horizon = 0 },
		"zero partitions":     func(c *market.GenConfig) { c.Partitions = 0 },
		"negative rate":       func(c *market.GenConfig) { c.ArrivalRate = -1 },
		"zero cancel rate":    func(c *market.GenConfig) { c.CancelRate = 0 },
		"zero trade rate":     func(c *market.GenConfig) { c.TradeRate = 0 },
		"zero mean price":     func(c *market.GenConfig) { c.MeanPrice = 0 },
		"zero reversion":      func(c *market.GenConfig) { c.Reversion = 0 },
		"reversion too large": func(c *market.GenConfig) { c.Reversion = 1.5 },
		"zero volatility":     func(c *market.GenConfig) { c.Volatility = 0 },
		"zero mean size":      func(c *market.GenConfig) { c.MeanSize = 0 },
		"zero depth":          func(c *market.GenConfig) { c.Depth = 0 },
		"zero tick":           func(c *market.GenConfig) { c.Tick = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, market.ErrInvalidParameters)

			_, err = market.Generate(cfg)
			require.ErrorIs(t, err, market.ErrInvalidParameters)
		})
	}

	require.NoError(t, base.Validate())
}

func TestOrderBook_CloneIsDeep(t *testing.T) {
	ob := market.OrderBook{
		Bids: []market.Level{{Price: 99, Volume: 1}},
		Asks: []market.Level{{Price: 101, Volume: 2}},
	}
	clone := ob.Clone()
	clone.Bids[0].Price = 1
	assert.Equal(t, 99.0, ob.Bids[0].Price)
	assert.InDelta(t, 100.0, ob.MidPrice(), 1e-12)
}
