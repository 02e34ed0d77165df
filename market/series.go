package market

import (
	"sort"
	"time"
)

// Series is an ordered sequence of candles.
type Series []Candle

// Len returns the number of candles.
func (s Series) Len() int { return len(s) }

// First returns the first candle and false when the series is empty.
func (s Series) First() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[0], true
}

// Last returns the last candle and false when the series is empty.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Between returns the candles whose time is in [from, to).
// Zero bounds are open.
func (s Series) Between(from, to time.Time) Series {
	out := make(Series, 0, len(s))
	for _, c := range s {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !c.Time.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Dedupe sorts by time and keeps the last candle seen for each timestamp.
// Providers call this before handing a series to the engine.
func Dedupe(s Series) Series {
	if len(s) == 0 {
		return Series{}
	}

	idx := make(map[int64]int, len(s))
	out := make(Series, 0, len(s))
	for _, c := range s {
		key := c.Time.UnixNano()
		if i, ok := idx[key]; ok {
			out[i] = c
			continue
		}
		idx[key] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
