package grid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LevelStatus is the lifecycle state of one rung of the ladder.
type LevelStatus string

const (
	Planned     LevelStatus = "PLANNED"
	EntryPlaced LevelStatus = "ENTRY_PLACED"
	EntryFilled LevelStatus = "ENTRY_FILLED"
	ExitPlaced  LevelStatus = "EXIT_PLACED"
	Done        LevelStatus = "DONE"
	Cancelled   LevelStatus = "CANCELLED"
)

// The placed states only occur on the paper/live path, where an order sits
// at the broker between the trigger and the fill.
var levelTransitions = map[LevelStatus][]LevelStatus{
	Planned:     {EntryPlaced, EntryFilled, Cancelled},
	EntryPlaced: {Planned, EntryFilled, Cancelled},
	EntryFilled: {ExitPlaced, Done, Cancelled},
	ExitPlaced:  {EntryFilled, Done, Cancelled},
}

// Terminal reports whether no further transition is possible.
func (s LevelStatus) Terminal() bool {
	return s == Done || s == Cancelled
}

// CanTransition reports whether the state machine allows s -> to.
func (s LevelStatus) CanTransition(to LevelStatus) bool {
	for _, next := range levelTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ExitReason tells which threshold closed a level.
type ExitReason string

const (
	ExitTarget   ExitReason = "TARGET"
	ExitGuardian ExitReason = "GUARDIAN"
)

// Level is one rung of the ladder. Levels are owned by the Cycle that built
// them and mutate only through the methods below.
type Level struct {
	Index         int                 `json:"index"`
	EntryPrice    decimal.Decimal     `json:"entry_price"`
	ExitPrice     decimal.Decimal     `json:"exit_price"`
	GuardianPrice decimal.NullDecimal `json:"guardian_price"`

	QtyPlanned     int64 `json:"qty_planned"`
	QtyFilledEntry int64 `json:"qty_filled_entry"`
	QtyFilledExit  int64 `json:"qty_filled_exit"`

	Status LevelStatus `json:"status"`

	EntryOrderID  string    `json:"entry_order_id,omitempty"`
	ExitOrderID   string    `json:"exit_order_id,omitempty"`
	EntryFilledAt time.Time `json:"entry_filled_at"`
	ExitFilledAt  time.Time `json:"exit_filled_at"`
}

func (l *Level) transition(to LevelStatus) error {
	if l.Status == to {
		return nil
	}
	if !l.Status.CanTransition(to) {
		return &StateError{
			Subject: fmt.Sprintf("level %d", l.Index),
			From:    string(l.Status),
			To:      string(to),
		}
	}
	l.Status = to
	return nil
}

// PendingEntryQty is the planned quantity not yet bought (or sold short).
func (l Level) PendingEntryQty() int64 {
	return max(0, l.QtyPlanned-l.QtyFilledEntry)
}

// PendingExitQty is the filled entry quantity not yet closed.
func (l Level) PendingExitQty() int64 {
	return max(0, l.QtyFilledEntry-l.QtyFilledExit)
}

// Triggered reports whether the level ever left PLANNED with a fill.
func (l Level) Triggered() bool {
	return l.QtyFilledEntry > 0
}

// PlaceEntry records the broker order working the entry.
func (l *Level) PlaceEntry(orderID string) error {
	if err := l.transition(EntryPlaced); err != nil {
		return err
	}
	l.EntryOrderID = orderID
	return nil
}

// FillEntry books qty of entry fill. The level becomes ENTRY_FILLED once the
// planned quantity is reached; a partial fill keeps a placed order working.
func (l *Level) FillEntry(qty int64, at time.Time) error {
	if qty <= 0 {
		return fmt.Errorf("level %d: entry fill quantity must be positive", l.Index)
	}
	if l.Status != Planned && l.Status != EntryPlaced {
		return &StateError{Subject: fmt.Sprintf("level %d", l.Index), From: string(l.Status), To: string(EntryFilled)}
	}

	l.QtyFilledEntry += qty
	l.EntryFilledAt = at
	if l.QtyFilledEntry >= l.QtyPlanned || l.Status == Planned {
		return l.transition(EntryFilled)
	}
	return nil
}

// SettleEntry is called when the entry order ended without completing.
// A level holding a partial fill proceeds with what it has; an empty one
// goes back to PLANNED.
func (l *Level) SettleEntry() error {
	if l.Status != EntryPlaced {
		return nil
	}
	l.EntryOrderID = ""
	if l.QtyFilledEntry > 0 {
		return l.transition(EntryFilled)
	}
	return l.transition(Planned)
}

// PlaceExit records the broker order working the exit.
func (l *Level) PlaceExit(orderID string) error {
	if err := l.transition(ExitPlaced); err != nil {
		return err
	}
	l.ExitOrderID = orderID
	return nil
}

// FillExit books qty of exit fill; the level is DONE once everything that
// was entered has been closed.
func (l *Level) FillExit(qty int64, at time.Time) error {
	if qty <= 0 {
		return fmt.Errorf("level %d: exit fill quantity must be positive", l.Index)
	}
	if l.Status != EntryFilled && l.Status != ExitPlaced {
		return &StateError{Subject: fmt.Sprintf("level %d", l.Index), From: string(l.Status), To: string(Done)}
	}

	l.QtyFilledExit += qty
	l.ExitFilledAt = at
	if l.QtyFilledExit >= l.QtyFilledEntry {
		return l.transition(Done)
	}
	return nil
}

// SettleExit is called when the exit order ended without closing the level.
func (l *Level) SettleExit() error {
	if l.Status != ExitPlaced {
		return nil
	}
	l.ExitOrderID = ""
	return l.transition(EntryFilled)
}

// Cancel moves a non-terminal level to CANCELLED.
func (l *Level) Cancel() error {
	return l.transition(Cancelled)
}

// EntryCrossed reports whether price reached the entry threshold in the
// favorable direction.
func EntryCrossed(side Side, l Level, price decimal.Decimal) bool {
	if side == Long {
		return price.LessThanOrEqual(l.EntryPrice)
	}
	return price.GreaterThanOrEqual(l.EntryPrice)
}

// ExitCrossed reports whether price reached the guardian or the exit
// threshold. The guardian is checked first.
func ExitCrossed(side Side, l Level, price decimal.Decimal) (ExitReason, bool) {
	if l.GuardianPrice.Valid {
		g := l.GuardianPrice.Decimal
		if side == Long && price.GreaterThanOrEqual(g) {
			return ExitGuardian, true
		}
		if side == Short && price.LessThanOrEqual(g) {
			return ExitGuardian, true
		}
	}

	if side == Long && price.GreaterThanOrEqual(l.ExitPrice) {
		return ExitTarget, true
	}
	if side == Short && price.LessThanOrEqual(l.ExitPrice) {
		return ExitTarget, true
	}
	return "", false
}
