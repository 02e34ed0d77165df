package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(i int) LevelStateChanged {
	return LevelStateChanged{
		CycleID: "cyc",
		Index:   i,
		From:    grid.Planned,
		To:      grid.EntryFilled,
		Price:   decimal.NewFromInt(100),
		Time:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBusFanOut(t *testing.T) {
	t.Parallel()

	b := NewBus()
	a, cancelA := b.Subscribe(4)
	c, cancelC := b.Subscribe(4)
	defer cancelC()

	b.Publish(change(0))
	assert.Equal(t, change(0), <-a)
	assert.Equal(t, change(0), <-c)

	cancelA()
	cancelA()
	_, ok := <-a
	assert.False(t, ok)

	b.Publish(change(1))
	assert.Equal(t, 1, (<-c).(LevelStateChanged).Index)
}

func TestBusDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(change(0))
	b.Publish(change(1))
	b.Publish(change(2))
	assert.Equal(t, uint64(2), b.Dropped())
	assert.Equal(t, 0, (<-ch).(LevelStateChanged).Index)
}

func TestBusClose(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(1)
	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
	b.Publish(change(0))
}

func TestBusConcurrentPublish(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(1000)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(change(i))
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, ch, 500)
}

func TestRecorderAndMulti(t *testing.T) {
	t.Parallel()

	var r1, r2 Recorder
	var count int
	sink := Multi{&r1, nil, &r2, SinkFunc(func(Event) { count++ })}

	sink.Publish(change(0))
	sink.Publish(TradeExecuted{CycleID: "cyc", Index: 0})
	sink.Publish(CycleStateChanged{CycleID: "cyc", From: grid.Waiting, To: grid.Running})
	Discard.Publish(change(9))

	assert.Len(t, r1.Events(), 3)
	assert.Len(t, r2.LevelChanges(), 1)
	assert.Len(t, r2.Trades(), 1)
	assert.Equal(t, 3, count)
}

func TestEnvelopeJSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Wrap(change(2)))
	require.NoError(t, err)

	var out struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "level_state_changed", out.Kind)
	assert.Equal(t, "ENTRY_FILLED", out.Data["to"])
	assert.Equal(t, "100", out.Data["price"])
}
