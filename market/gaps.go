package market

import "time"

// GapKind classifies a hole in a series.
type GapKind string

const (
	GapMinor      GapKind = "minor"
	GapWeekend    GapKind = "weekend"
	GapSuspicious GapKind = "suspicious"
)

// Gap is a run of missing bars.
type Gap struct {
	Start   time.Time `json:"start"` // time the first missing bar would have had
	Missing int       `json:"missing"`
	Kind    GapKind   `json:"kind"`
}

// GapStats summarizes the gaps of a series.
type GapStats struct {
	Bars        int     `json:"bars"`
	Missing     int     `json:"missing"`
	Gaps        int     `json:"gaps"`
	Weekend     int     `json:"weekend"`
	Suspicious  int     `json:"suspicious"`
	Longest     int     `json:"longest"`
	LongestKind GapKind `json:"longest_kind,omitempty"`
}

// FindGaps reports every place where consecutive bars are more than one step
// apart. The series must be sorted.
func FindGaps(s Series, step time.Duration) []Gap {
	if step <= 0 || len(s) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(s); i++ {
		delta := s[i].Time.Sub(s[i-1].Time)
		if delta <= step {
			continue
		}
		missing := int(delta/step) - 1
		if delta%step != 0 {
			missing++
		}
		start := s[i-1].Time.Add(step)
		gaps = append(gaps, Gap{Start: start, Missing: missing, Kind: classifyGap(start, missing, step)})
	}
	return gaps
}

// classifyGap calls a gap of at least a day that starts Friday to Sunday
// (UTC) a weekend; other day long gaps and anything of ten minutes or more
// are suspicious.
func classifyGap(start time.Time, missing int, step time.Duration) GapKind {
	span := time.Duration(missing) * step
	if span >= 24*time.Hour {
		switch start.UTC().Weekday() {
		case time.Friday, time.Saturday, time.Sunday:
			if span <= 3*24*time.Hour {
				return GapWeekend
			}
		}
		return GapSuspicious
	}
	if span >= 10*time.Minute {
		return GapSuspicious
	}
	return GapMinor
}

// SummarizeGaps folds gaps into GapStats.
func SummarizeGaps(s Series, step time.Duration) GapStats {
	st := GapStats{Bars: len(s)}
	for _, g := range FindGaps(s, step) {
		st.Gaps++
		st.Missing += g.Missing
		if g.Missing > st.Longest {
			st.Longest = g.Missing
			st.LongestKind = g.Kind
		}
		switch g.Kind {
		case GapWeekend:
			st.Weekend++
		case GapSuspicious:
			st.Suspicious++
		}
	}
	return st
}
