package weather

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Gap is a run of consecutive expected timestamps missing from the
// table's index.
type Gap struct {
	Start         time.Time     `json:"start"`    // first missing instant
	End           time.Time     `json:"end"`      // last missing instant
	Duration      time.Duration `json:"duration"` // MissingPoints · frequency
	MissingPoints int           `json:"missing_points"`
}

// InferFrequency returns the table's sampling interval as the most common
// delta between consecutive timestamps. At least two rows are required.
func InferFrequency(t *Table) (time.Duration, error) {
	if t.Len() < 2 {
		return 0, fmt.Errorf("need at least 2 rows to infer frequency, have %d", t.Len())
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < t.Len(); i++ {
		d := t.Row(i).Timestamp.Sub(t.Row(i - 1).Timestamp)
		counts[d]++
	}
	var modal time.Duration
	best := 0
	for d, n := range counts {
		// Ties break toward the shorter interval so gaps are never
		// mistaken for the base frequency.
		if n > best || (n == best && d < modal) {
			modal = d
			best = n
		}
	}
	return modal, nil
}

// resolveFrequency returns freq when explicitly given (> 0), otherwise
// infers it from the table.
func resolveFrequency(t *Table, freq time.Duration) (time.Duration, error) {
	if freq > 0 {
		return freq, nil
	}
	return InferFrequency(t)
}

// missingInstants returns, in order, the expected grid instants between
// the table's first and last timestamps that its index does not carry.
func missingInstants(t *Table, freq time.Duration) []time.Time {
	start, end, _ := t.Span()
	have := make(map[int64]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		have[t.Row(i).Timestamp.UnixNano()] = true
	}
	var missing []time.Time
	for ts := start; !ts.After(end); ts = ts.Add(freq) {
		if !have[ts.UnixNano()] {
			missing = append(missing, ts)
		}
	}
	return missing
}

// DetectGaps finds runs of expected timestamps absent from the index.
// freq is the expected sampling interval; freq <= 0 infers it from the
// data. Consecutive missing instants merge into one Gap; Start and End
// are the first and last missing instants themselves.
func DetectGaps(t *Table, freq time.Duration) ([]Gap, error) {
	freq, err := resolveFrequency(t, freq)
	if err != nil {
		return nil, err
	}
	var gaps []Gap
	for _, ts := range missingInstants(t, freq) {
		if n := len(gaps); n > 0 && ts.Sub(gaps[n-1].End) == freq {
			gaps[n-1].End = ts
			gaps[n-1].MissingPoints++
			gaps[n-1].Duration += freq
			continue
		}
		gaps = append(gaps, Gap{Start: ts, End: ts, Duration: freq, MissingPoints: 1})
	}
	return gaps, nil
}

// Reindex returns a new table on the complete expected grid, inserting
// all-missing rows at instants the original skipped. freq <= 0 infers
// the sampling interval. Existing rows are kept as-is; off-grid rows
// survive at their original instants.
func Reindex(t *Table, freq time.Duration) (*Table, error) {
	freq, err := resolveFrequency(t, freq)
	if err != nil {
		return nil, err
	}
	rows := t.Rows()
	for _, ts := range missingInstants(t, freq) {
		rows = append(rows, EmptyRow(ts))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return New(rows, t.Columns()...)
}

// FillMethod selects how missing values are reconstructed.
type FillMethod string

const (
	// FillLinear interpolates between the surrounding observations,
	// weighted by time. Runs touching the table edge stay missing.
	FillLinear FillMethod = "linear"
	// FillForward carries the last observation forward.
	FillForward FillMethod = "forward"
	// FillBackward carries the next observation backward.
	FillBackward FillMethod = "backward"
	// FillBoth carries forward first, then backward over what remains.
	FillBoth FillMethod = "both"
)

// FillGaps reindexes the table to the complete expected grid and fills
// missing values per column, so a contiguous block of dropped rows comes
// back as reconstructed observations. freq <= 0 infers the sampling
// interval. maxGap limits the run length that will be touched: runs of
// more than maxGap consecutive missing values are left entirely missing
// so long outages are not papered over. maxGap <= 0 means no limit.
func FillGaps(t *Table, method FillMethod, maxGap int, freq time.Duration) (*Table, error) {
	switch method {
	case FillLinear, FillForward, FillBackward, FillBoth:
	case "":
		method = FillLinear
	default:
		return nil, fmt.Errorf("invalid fill method %q, valid options: %s, %s, %s, %s",
			method, FillLinear, FillForward, FillBackward, FillBoth)
	}

	reindexed, err := Reindex(t, freq)
	if err != nil {
		return nil, err
	}
	rows := reindexed.Rows()
	for _, c := range reindexed.Columns() {
		fillColumn(rows, c, method, maxGap)
	}
	return New(rows, reindexed.Columns()...)
}

func fillColumn(rows []Row, c Column, method FillMethod, maxGap int) {
	n := len(rows)
	for i := 0; i < n; {
		if !math.IsNaN(rows[i].Value(c)) {
			i++
			continue
		}
		// Run of missing values [i, j).
		j := i
		for j < n && math.IsNaN(rows[j].Value(c)) {
			j++
		}
		if maxGap > 0 && j-i > maxGap {
			i = j
			continue
		}

		var before, after *Row
		if i > 0 {
			before = &rows[i-1]
		}
		if j < n {
			after = &rows[j]
		}

		for k := i; k < j; k++ {
			switch method {
			case FillLinear:
				if before != nil && after != nil {
					span := after.Timestamp.Sub(before.Timestamp).Seconds()
					frac := rows[k].Timestamp.Sub(before.Timestamp).Seconds() / span
					v := before.Value(c) + frac*(after.Value(c)-before.Value(c))
					rows[k].SetValue(c, v)
				}
			case FillForward:
				if before != nil {
					rows[k].SetValue(c, before.Value(c))
				}
			case FillBackward:
				if after != nil {
					rows[k].SetValue(c, after.Value(c))
				}
			case FillBoth:
				if before != nil {
					rows[k].SetValue(c, before.Value(c))
				} else if after != nil {
					rows[k].SetValue(c, after.Value(c))
				}
			}
		}
		i = j
	}
}
