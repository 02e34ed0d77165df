package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(ts ...string) Series {
	s := make(Series, len(ts))
	for i, v := range ts {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			panic(err)
		}
		s[i] = Candle{Time: t}
	}
	return s
}

func TestFindGapsDaily(t *testing.T) {
	t.Parallel()

	// Thu, Fri, Mon, Tue, then a week missing
	s := at(
		"2024-01-04T00:00:00Z",
		"2024-01-05T00:00:00Z",
		"2024-01-08T00:00:00Z",
		"2024-01-09T00:00:00Z",
		"2024-01-17T00:00:00Z",
	)
	gaps := FindGaps(s, 24*time.Hour)
	require.Len(t, gaps, 2)

	assert.Equal(t, 2, gaps[0].Missing)
	assert.Equal(t, GapWeekend, gaps[0].Kind)
	assert.Equal(t, time.Saturday, gaps[0].Start.Weekday())

	assert.Equal(t, 7, gaps[1].Missing)
	assert.Equal(t, GapSuspicious, gaps[1].Kind)
}

func TestFindGapsMinute(t *testing.T) {
	t.Parallel()

	s := at(
		"2024-01-02T09:30:00Z",
		"2024-01-02T09:31:00Z",
		"2024-01-02T09:34:00Z",
		"2024-01-02T09:50:00Z",
	)
	gaps := FindGaps(s, time.Minute)
	require.Len(t, gaps, 2)
	assert.Equal(t, Gap{Start: s[1].Time.Add(time.Minute), Missing: 2, Kind: GapMinor}, gaps[0])
	assert.Equal(t, 15, gaps[1].Missing)
	assert.Equal(t, GapSuspicious, gaps[1].Kind)
}

func TestFindGapsNone(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FindGaps(nil, time.Minute))
	assert.Empty(t, FindGaps(at("2024-01-02T09:30:00Z", "2024-01-02T09:31:00Z"), time.Minute))
	assert.Empty(t, FindGaps(at("2024-01-02T09:30:00Z", "2024-01-02T10:30:00Z"), 0))
}

func TestSummarizeGaps(t *testing.T) {
	t.Parallel()

	s := at(
		"2024-01-04T00:00:00Z",
		"2024-01-05T00:00:00Z",
		"2024-01-08T00:00:00Z",
		"2024-01-17T00:00:00Z",
	)
	st := SummarizeGaps(s, 24*time.Hour)
	assert.Equal(t, GapStats{
		Bars:        4,
		Missing:     10,
		Gaps:        2,
		Weekend:     1,
		Suspicious:  1,
		Longest:     8,
		LongestKind: GapSuspicious,
	}, st)
}
