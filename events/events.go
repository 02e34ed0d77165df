// Package events carries grid lifecycle notifications from the engines to
// reporting consumers.
package events

import (
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindLevelStateChanged Kind = "level_state_changed"
	KindTradeExecuted     Kind = "trade_executed"
	KindCycleStateChanged Kind = "cycle_state_changed"
)

// Event is implemented by every notification type.
type Event interface {
	Kind() Kind
}

// LevelStateChanged is published after a level moved between statuses.
type LevelStateChanged struct {
	CycleID string           `json:"cycle_id"`
	Index   int              `json:"index"`
	From    grid.LevelStatus `json:"from"`
	To      grid.LevelStatus `json:"to"`
	Price   decimal.Decimal  `json:"price"`
	Time    time.Time        `json:"time"`
	// Reason is TARGET or GUARDIAN on exits.
	Reason grid.ExitReason `json:"reason,omitempty"`
}

func (LevelStateChanged) Kind() Kind { return KindLevelStateChanged }

// TradeExecuted is published after the ledger booked a trade.
type TradeExecuted struct {
	CycleID string       `json:"cycle_id"`
	Index   int          `json:"index"`
	Trade   broker.Trade `json:"trade"`
}

func (TradeExecuted) Kind() Kind { return KindTradeExecuted }

// CycleStateChanged is published when a cycle starts, completes or stops.
type CycleStateChanged struct {
	CycleID string          `json:"cycle_id"`
	From    grid.CycleState `json:"from"`
	To      grid.CycleState `json:"to"`
	Time    time.Time       `json:"time"`
}

func (CycleStateChanged) Kind() Kind { return KindCycleStateChanged }

// Envelope is the wire form of an event.
type Envelope struct {
	Kind Kind  `json:"kind"`
	Data Event `json:"data"`
}

func Wrap(e Event) Envelope {
	return Envelope{Kind: e.Kind(), Data: e}
}

// Sink receives events. Publish must not block the caller for long; the
// simulation calls it inline.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi publishes to each sink in order.
type Multi []Sink

func (m Multi) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}
