package market

// Level is one price level of an order book side.
type Level struct {
	Price  float64
	Volume float64
}

// OrderBook is a depth-limited snapshot of the book. Bids and Asks are
// ordered best-first: Bids[0] is the highest bid, Asks[0] the lowest ask.
type OrderBook struct {
	Bids []Level
	Asks []Level
}

// Clone returns a deep value copy of the book.
func (ob OrderBook) Clone() OrderBook {
	out := OrderBook{
		Bids: make([]Level, len(ob.Bids)),
		Asks: make([]Level, len(ob.Asks)),
	}
	copy(out.Bids, ob.Bids)
	copy(out.Asks, ob.Asks)
	return out
}

// MidPrice returns (best_bid + best_ask) / 2, or 0 for an empty book.
func (ob OrderBook) MidPrice() float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return (ob.Bids[0].Price + ob.Asks[0].Price) / 2.0
}

// Trade is one executed trade. Side is the aggressor side, "Buy" or "Sell".
type Trade struct {
	Price  float64
	Amount float64
	Side   string
}

// Aggressor sides.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// EventKind classifies a book event.
type EventKind int

const (
	// EventNew is a new limit order arrival.
	EventNew EventKind = iota
	// EventCancel is a cancellation of resting volume.
	EventCancel
	// EventTrade is an execution against the best level.
	EventTrade
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "New"
	case EventCancel:
		return "Cancel"
	case EventTrade:
		return "Trade"
	default:
		return "Unknown"
	}
}

// Event is one order-book event together with the book snapshot after the
// event was applied. Step is the discrete simulation timestamp.
type Event struct {
	Step  int
	Kind  EventKind
	Trade *Trade
	Book  OrderBook
}

// PartitionEvents is the event stream owned by one worker partition.
type PartitionEvents struct {
	Partition int
	Events    []Event
}
