// Package perf derives run statistics from trades and the equity curve.
package perf

import (
	"math"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

// TradingDaysPerYear annualizes the Sharpe ratio and volatility.
const TradingDaysPerYear = 252

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time    time.Time       `json:"time"`
	Capital decimal.Decimal `json:"capital"`
}

// Input is everything Analyze looks at.
type Input struct {
	InitialCapital decimal.Decimal
	FinalCapital   decimal.Decimal
	Trades         []broker.Trade
	Equity         []EquityPoint
	Levels         []grid.Level
}

// Stats is the summary of a run. Every ratio is 0 when its denominator is.
type Stats struct {
	TotalReturn    decimal.Decimal `json:"total_return"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`

	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"win_rate"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	// ProfitFactor is |AvgWin / AvgLoss|, not gross wins over gross losses.
	ProfitFactor float64 `json:"profit_factor"`

	Sharpe         float64         `json:"sharpe"`
	Volatility     float64         `json:"volatility"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct decimal.Decimal `json:"max_drawdown_pct"`
	MaxCapitalUsed decimal.Decimal `json:"max_capital_used"`

	LevelsTriggered int           `json:"levels_triggered"`
	LevelsCompleted int           `json:"levels_completed"`
	AvgTimeInTrade  time.Duration `json:"avg_time_in_trade"`
	TradingDays     int           `json:"trading_days"`
}

var hundred = decimal.NewFromInt(100)

// Analyze computes Stats. Win rate divides winners by all trades, entries
// included.
func Analyze(in Input) Stats {
	s := Stats{
		TotalReturn: in.FinalCapital.Sub(in.InitialCapital),
		TotalTrades: len(in.Trades),
		TradingDays: len(in.Equity),
	}
	if !in.InitialCapital.IsZero() {
		s.TotalReturnPct = s.TotalReturn.Div(in.InitialCapital).Mul(hundred)
	}

	var sumWin, sumLoss decimal.Decimal
	for _, t := range in.Trades {
		if !t.RealizedPnL.Valid {
			continue
		}
		switch pnl := t.RealizedPnL.Decimal; pnl.Sign() {
		case 1:
			s.WinningTrades++
			sumWin = sumWin.Add(pnl)
		case -1:
			s.LosingTrades++
			sumLoss = sumLoss.Add(pnl)
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 {
		s.AvgWin = sumWin.Div(decimal.NewFromInt(int64(s.WinningTrades)))
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(s.LosingTrades)))
		s.ProfitFactor = math.Abs(s.AvgWin.Div(s.AvgLoss).InexactFloat64())
	}

	returns := pctReturns(in.Equity)
	if std := stddev(returns); std > 0 {
		s.Sharpe = mean(returns) / std * math.Sqrt(TradingDaysPerYear)
		s.Volatility = std * math.Sqrt(TradingDaysPerYear)
	}

	s.MaxDrawdown, s.MaxDrawdownPct = drawdown(in.Equity)
	for _, p := range in.Equity {
		if used := in.InitialCapital.Sub(p.Capital); used.GreaterThan(s.MaxCapitalUsed) {
			s.MaxCapitalUsed = used
		}
	}

	var held time.Duration
	var closed int
	for _, lv := range in.Levels {
		if lv.Triggered() {
			s.LevelsTriggered++
		}
		if lv.Status == grid.Done {
			s.LevelsCompleted++
			if !lv.EntryFilledAt.IsZero() && !lv.ExitFilledAt.IsZero() {
				held += lv.ExitFilledAt.Sub(lv.EntryFilledAt)
				closed++
			}
		}
	}
	if closed > 0 {
		s.AvgTimeInTrade = held / time.Duration(closed)
	}
	return s
}

// pctReturns mirrors a percent change over the curve. Steps from a zero
// capital have no defined return and are skipped.
func pctReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Capital
		if prev.IsZero() {
			continue
		}
		r := curve[i].Capital.Sub(prev).Div(prev).InexactFloat64()
		out = append(out, r)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation; fewer than two values give 0.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func drawdown(curve []EquityPoint) (decimal.Decimal, decimal.Decimal) {
	var maxDD, maxPct decimal.Decimal
	if len(curve) == 0 {
		return maxDD, maxPct
	}
	peak := curve[0].Capital
	for _, p := range curve {
		if p.Capital.GreaterThan(peak) {
			peak = p.Capital
		}
		dd := peak.Sub(p.Capital)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			if peak.IsPositive() {
				maxPct = dd.Div(peak).Mul(hundred)
			}
		}
	}
	return maxDD, maxPct
}
