// Package journal persists what a run did: every trade, the equity curve and
// a summary row per run.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by readers when a run does not exist.
var ErrNotFound = errors.New("journal: not found")

// TradeRecord is one execution of a run.
type TradeRecord struct {
	RunID       string
	TradeID     string
	OrderID     string
	CycleID     string
	Level       int
	Symbol      string
	Side        string
	Quantity    int64
	Price       decimal.Decimal
	Commission  decimal.Decimal
	RealizedPnL decimal.NullDecimal
	ExecutedAt  time.Time
}

// TradeFromBroker converts a booked trade.
func TradeFromBroker(runID string, t broker.Trade) TradeRecord {
	return TradeRecord{
		RunID:       runID,
		TradeID:     t.ID,
		OrderID:     t.OrderID,
		CycleID:     t.CycleID,
		Level:       t.LevelIndex,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Quantity:    t.Quantity,
		Price:       t.Price,
		Commission:  t.Costs(),
		RealizedPnL: t.RealizedPnL,
		ExecutedAt:  t.ExecutedAt,
	}
}

// EquitySnapshot is one point of the capital curve.
type EquitySnapshot struct {
	RunID   string
	Time    time.Time
	Capital decimal.Decimal
}

// Run is the summary row of one backtest.
type Run struct {
	RunID      string
	Created    time.Time
	TemplateID string
	Symbol     string
	Side       string
	Dataset    string
	Levels     int

	Start time.Time
	End   time.Time

	StartCapital decimal.Decimal
	EndCapital   decimal.Decimal
	NetPnL       decimal.Decimal
	ReturnPct    float64

	Trades          int
	Wins            int
	Losses          int
	// WinRate is in percent.
	WinRate         float64
	ProfitFactor    float64
	Sharpe          float64
	MaxDDPct        float64
	LevelsTriggered int
	LevelsCompleted int

	// Config is the template as JSON.
	Config []byte

	OrgPath string
	Notes   []string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(Run) error
	Close() error
}

// Reader is implemented by the database journals.
type Reader interface {
	GetRun(ctx context.Context, runID string) (Run, error)
	ListTradesByRun(ctx context.Context, runID string) ([]TradeRecord, error)
	ListEquityByRun(ctx context.Context, runID string) ([]EquitySnapshot, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordRun(Run) error               { return nil }
func (Nop) Close() error                      { return nil }
