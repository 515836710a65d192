// Package weather holds the time-indexed weather table and the integrity
// pipeline around it: structural validation, quality flagging, gap
// detection and filling, file and network sources, and caching.
//
// Absent values are math.NaN; a column is part of a table only if it was
// declared (or observed) at construction.
package weather

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Column names one of the weather table's value columns.
type Column string

const (
	ColGHI        Column = "ghi"
	ColDNI        Column = "dni"
	ColDHI        Column = "dhi"
	ColTempAir    Column = "temp_air"
	ColWindSpeed  Column = "wind_speed"
	ColCloudCover Column = "cloud_cover"
)

// AllColumns lists every known column in canonical order.
var AllColumns = []Column{ColGHI, ColDNI, ColDHI, ColTempAir, ColWindSpeed, ColCloudCover}

// Row is one observation. Missing values are NaN.
type Row struct {
	Timestamp  time.Time
	GHI        float64
	DNI        float64
	DHI        float64
	TempAir    float64
	WindSpeed  float64
	CloudCover float64
}

// EmptyRow returns a Row at t with every value absent.
func EmptyRow(t time.Time) Row {
	nan := math.NaN()
	return Row{Timestamp: t, GHI: nan, DNI: nan, DHI: nan, TempAir: nan, WindSpeed: nan, CloudCover: nan}
}

// Value returns the named column of the row.
func (r Row) Value(c Column) float64 {
	switch c {
	case ColGHI:
		return r.GHI
	case ColDNI:
		return r.DNI
	case ColDHI:
		return r.DHI
	case ColTempAir:
		return r.TempAir
	case ColWindSpeed:
		return r.WindSpeed
	case ColCloudCover:
		return r.CloudCover
	}
	return math.NaN()
}

// SetValue sets the named column of the row.
func (r *Row) SetValue(c Column, v float64) {
	switch c {
	case ColGHI:
		r.GHI = v
	case ColDNI:
		r.DNI = v
	case ColDHI:
		r.DHI = v
	case ColTempAir:
		r.TempAir = v
	case ColWindSpeed:
		r.WindSpeed = v
	case ColCloudCover:
		r.CloudCover = v
	}
}

// HasIrradiance reports whether the row carries all three irradiance
// components, i.e. can drive the power model directly.
func (r Row) HasIrradiance() bool {
	return !math.IsNaN(r.GHI) && !math.IsNaN(r.DNI) && !math.IsNaN(r.DHI)
}

// Table is an immutable, time-ordered weather table. Processing steps
// (gap fill, interpolation) return new tables.
type Table struct {
	rows    []Row
	columns map[Column]bool
}

// New builds a Table from rows. Columns may be declared explicitly; when
// none are given they are inferred from the rows (a column exists if any
// row carries a value for it).
//
// Structural invariants checked here: timestamps are real instants,
// strictly increasing and unique; the temp_air column is present; at
// least one irradiance column is present.
func New(rows []Row, columns ...Column) (*Table, error) {
	cols := make(map[Column]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	if len(cols) == 0 {
		for _, r := range rows {
			for _, c := range AllColumns {
				if !math.IsNaN(r.Value(c)) {
					cols[c] = true
				}
			}
		}
	}

	if !cols[ColTempAir] {
		return nil, fmt.Errorf("weather table requires the %s column", ColTempAir)
	}
	if !cols[ColGHI] && !cols[ColDNI] && !cols[ColDHI] {
		return nil, fmt.Errorf("weather table must contain at least one irradiance column (%s, %s or %s)",
			ColGHI, ColDNI, ColDHI)
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	for i, r := range sorted {
		if r.Timestamp.IsZero() {
			return nil, fmt.Errorf("weather table row %d has a zero timestamp", i)
		}
		if i > 0 && !sorted[i-1].Timestamp.Before(r.Timestamp) {
			return nil, fmt.Errorf("weather table has duplicate timestamp %s", r.Timestamp)
		}
	}

	return &Table{rows: sorted, columns: cols}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns a copy of all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Columns returns the table's columns in canonical order.
func (t *Table) Columns() []Column {
	var out []Column
	for _, c := range AllColumns {
		if t.columns[c] {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether the table carries the column.
func (t *Table) HasColumn(c Column) bool { return t.columns[c] }

// Span returns the first and last timestamps. ok is false for an empty
// table.
func (t *Table) Span() (start, end time.Time, ok bool) {
	if len(t.rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.rows[0].Timestamp, t.rows[len(t.rows)-1].Timestamp, true
}

// AsOf returns the most recent row at or before ts — the
// last-observation-carried-forward lookup used when merging weather into
// a simulation. ok is false when no prior observation exists.
func (t *Table) AsOf(ts time.Time) (Row, bool) {
	idx := sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i].Timestamp.After(ts)
	})
	if idx == 0 {
		return Row{}, false
	}
	return t.rows[idx-1], true
}

// MissingCount returns the number of absent values in the given column.
func (t *Table) MissingCount(c Column) int {
	n := 0
	for _, r := range t.rows {
		if math.IsNaN(r.Value(c)) {
			n++
		}
	}
	return n
}

// physical bounds for ValidateRanges and the out-of-range quality check.
var columnBounds = map[Column][2]float64{
	ColGHI:        {0, 1500},
	ColDNI:        {0, 1500},
	ColDHI:        {0, 1000},
	ColTempAir:    {-60, 60},
	ColWindSpeed:  {0, 50},
	ColCloudCover: {0, 100},
}

// ValidateRanges hard-rejects values outside physical plausibility. It is
// meant for data sources (file readers, API clients) at ingestion time;
// tables assembled from suspect data should go through the quality checks
// instead, which flag rather than reject.
func (t *Table) ValidateRanges() error {
	for _, c := range t.Columns() {
		bounds := columnBounds[c]
		for _, r := range t.rows {
			v := r.Value(c)
			if math.IsNaN(v) {
				continue
			}
			if v < bounds[0] || v > bounds[1] {
				return fmt.Errorf("%s value %v at %s outside [%v, %v]",
					c, v, r.Timestamp.Format(time.RFC3339), bounds[0], bounds[1])
			}
		}
	}
	return nil
}
