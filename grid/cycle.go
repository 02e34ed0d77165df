package grid

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CycleState is the lifecycle of a running grid.
type CycleState string

const (
	Waiting   CycleState = "WAITING"
	Running   CycleState = "RUNNING"
	Paused    CycleState = "PAUSED"
	Stopped   CycleState = "STOPPED"
	Completed CycleState = "COMPLETED"
)

// Cycle is one run of a template. It owns its levels; callers address them
// by index and never keep them across cycles.
type Cycle struct {
	ID         string
	TemplateID string
	Symbol     string
	Side       Side
	State      CycleState

	// SingleOpenPosition blocks every entry while the strategy holds any open
	// position, so at most one level is open across the whole ladder.
	SingleOpenPosition bool

	levels []Level
}

// NewCycle builds the ladder of t and returns a WAITING cycle that owns it.
func NewCycle(id string, t Template) (*Cycle, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	levels, err := BuildLadder(t.LadderConfig())
	if err != nil {
		return nil, err
	}
	return NewCycleFromLevels(id, t.ID, t.Symbol, t.Side, levels), nil
}

// NewCycleFromLevels wraps an already built ladder, e.g. a two-point one.
func NewCycleFromLevels(id, templateID, symbol string, side Side, levels []Level) *Cycle {
	own := make([]Level, len(levels))
	copy(own, levels)
	return &Cycle{
		ID:                 id,
		TemplateID:         templateID,
		Symbol:             symbol,
		Side:               side,
		State:              Waiting,
		SingleOpenPosition: true,
		levels:             own,
	}
}

// Len returns the number of levels.
func (c *Cycle) Len() int { return len(c.levels) }

// Level returns the level at index i for mutation through its methods.
func (c *Cycle) Level(i int) *Level { return &c.levels[i] }

// Levels returns a copy of all levels.
func (c *Cycle) Levels() []Level {
	out := make([]Level, len(c.levels))
	copy(out, c.levels)
	return out
}

func (c *Cycle) move(to CycleState, from ...CycleState) error {
	for _, f := range from {
		if c.State == f {
			c.State = to
			return nil
		}
	}
	return &StateError{Subject: "cycle " + c.ID, From: string(c.State), To: string(to)}
}

// Start moves a WAITING cycle to RUNNING.
func (c *Cycle) Start() error { return c.move(Running, Waiting) }

// Pause suspends entries of a RUNNING cycle.
func (c *Cycle) Pause() error { return c.move(Paused, Running) }

// Resume continues a PAUSED cycle.
func (c *Cycle) Resume() error { return c.move(Running, Paused) }

// Stop ends a RUNNING or PAUSED cycle.
func (c *Cycle) Stop() error { return c.move(Stopped, Running, Paused) }

// Complete marks a RUNNING cycle whose levels are all terminal.
func (c *Cycle) Complete() error {
	if !c.AllDone() {
		return fmt.Errorf("cycle %s: %d of %d levels still open", c.ID, c.Len()-c.terminal(), c.Len())
	}
	return c.move(Completed, Running)
}

// ShouldEnter reports whether level i may open at price. The cycle must be
// RUNNING, the level PLANNED and the entry threshold crossed. With
// SingleOpenPosition, positionOpen blocks the entry.
func (c *Cycle) ShouldEnter(i int, price decimal.Decimal, positionOpen bool) bool {
	if c.State != Running {
		return false
	}
	if c.SingleOpenPosition && positionOpen {
		return false
	}
	lv := c.levels[i]
	if lv.Status != Planned {
		return false
	}
	return EntryCrossed(c.Side, lv, price)
}

// ShouldExit reports whether the open level i closes at price and why.
func (c *Cycle) ShouldExit(i int, price decimal.Decimal) (ExitReason, bool) {
	lv := c.levels[i]
	if lv.Status != EntryFilled {
		return "", false
	}
	return ExitCrossed(c.Side, lv, price)
}

// AllDone reports whether every level reached a terminal status.
func (c *Cycle) AllDone() bool {
	return c.terminal() == len(c.levels)
}

func (c *Cycle) terminal() int {
	n := 0
	for _, lv := range c.levels {
		if lv.Status.Terminal() {
			n++
		}
	}
	return n
}

// Triggered counts levels that ever received an entry fill.
func (c *Cycle) Triggered() int {
	n := 0
	for _, lv := range c.levels {
		if lv.Triggered() {
			n++
		}
	}
	return n
}

// Completed counts DONE levels.
func (c *Cycle) Completed() int {
	n := 0
	for _, lv := range c.levels {
		if lv.Status == Done {
			n++
		}
	}
	return n
}

// CancelPending cancels every level that has not been entered yet.
func (c *Cycle) CancelPending() error {
	for i := range c.levels {
		lv := &c.levels[i]
		if lv.Status == Planned || (lv.Status == EntryPlaced && lv.QtyFilledEntry == 0) {
			if err := lv.Cancel(); err != nil {
				return err
			}
		}
	}
	return nil
}
