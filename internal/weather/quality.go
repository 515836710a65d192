package weather

import (
	"fmt"
	"math"
	"strings"

	"pvsimulator/internal/model"
	"pvsimulator/internal/solar"
)

// IssueKind classifies a quality finding.
type IssueKind string

const (
	// IssueNighttimeIrradiance flags significant GHI while the sun is below
	// the horizon.
	IssueNighttimeIrradiance IssueKind = "nighttime_irradiance"
	// IssueNegative flags a physically non-negative quantity below zero.
	IssueNegative IssueKind = "negative_value"
	// IssueOutOfRange flags a value outside plausible physical bounds.
	IssueOutOfRange IssueKind = "out_of_range"
	// IssueInconsistent flags irradiance components that do not close,
	// i.e. GHI differs from DHI + DNI·cos(zenith) by more than tolerance.
	IssueInconsistent IssueKind = "component_inconsistency"
)

// Issue is one quality finding at one timestamp.
type Issue struct {
	Timestamp string    `json:"timestamp"`
	Column    Column    `json:"column,omitempty"`
	Value     float64   `json:"value"`
	Kind      IssueKind `json:"kind"`
	Detail    string    `json:"detail"`
}

// Flags holds the result of each check per row, four boolean series
// aligned with the table's row index.
type Flags struct {
	NighttimeGHI   []bool `json:"nighttime_ghi"`
	NegativeValues []bool `json:"negative_values"`
	OutOfRange     []bool `json:"out_of_range"`
	Inconsistent   []bool `json:"inconsistent"`
}

// AnyIssue is the element-wise OR of the four series: true where the row
// failed at least one check.
func (f Flags) AnyIssue() []bool {
	out := make([]bool, len(f.NighttimeGHI))
	for i := range out {
		out[i] = f.NighttimeGHI[i] || f.NegativeValues[i] || f.OutOfRange[i] || f.Inconsistent[i]
	}
	return out
}

// Report summarizes the quality checks over one table: the per-row flag
// series, row counts per check kind, and the individual findings.
type Report struct {
	TotalRows   int               `json:"total_rows"`
	FlaggedRows int               `json:"flagged_rows"`
	Counts      map[IssueKind]int `json:"counts"`
	Flags       Flags             `json:"flags"`
	Issues      []Issue           `json:"issues"`
}

// AnyIssues reports whether at least one check fired.
func (r Report) AnyIssues() bool { return len(r.Issues) > 0 }

// QualityPercent is the share of rows with no findings, 0-100.
func (r Report) QualityPercent() float64 {
	if r.TotalRows == 0 {
		return 100
	}
	return 100 * float64(r.TotalRows-r.FlaggedRows) / float64(r.TotalRows)
}

// Summary is a one-line human-readable digest.
func (r Report) Summary() string {
	return fmt.Sprintf("%d/%d rows clean (%.1f%%), %d issues",
		r.TotalRows-r.FlaggedRows, r.TotalRows, r.QualityPercent(), len(r.Issues))
}

// String renders the summary followed by the first ten findings.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString(r.Summary())
	for i, issue := range r.Issues {
		if i == 10 {
			fmt.Fprintf(&b, "\n  ... and %d more", len(r.Issues)-10)
			break
		}
		fmt.Fprintf(&b, "\n  %s %s: %s", issue.Timestamp, issue.Kind, issue.Detail)
	}
	return b.String()
}

// irradiance closure tolerance in W/m².
const consistencyTolerance = 50.0

// nighttime GHI above this (W/m²) is treated as sensor error rather than
// twilight noise.
const nighttimeGHILimit = 10.0

// nonNegativeColumns are the columns where any value below zero is a
// sensor fault. Air temperature is legitimately negative.
var nonNegativeColumns = []Column{ColGHI, ColDNI, ColDHI, ColWindSpeed, ColCloudCover}

// CheckQuality runs the physical plausibility checks over the table.
// Sun-dependent checks (nighttime irradiance, component closure) use the
// solar service at the given location.
func CheckQuality(t *Table, loc model.Location, svc solar.Service) Report {
	n := t.Len()
	rep := Report{
		TotalRows: n,
		Counts:    make(map[IssueKind]int),
		Flags: Flags{
			NighttimeGHI:   make([]bool, n),
			NegativeValues: make([]bool, n),
			OutOfRange:     make([]bool, n),
			Inconsistent:   make([]bool, n),
		},
	}

	for i := 0; i < n; i++ {
		row := t.Row(i)
		add := func(iss Issue) {
			iss.Timestamp = row.Timestamp.Format("2006-01-02T15:04:05Z07:00")
			rep.Issues = append(rep.Issues, iss)
			switch iss.Kind {
			case IssueNighttimeIrradiance:
				rep.Flags.NighttimeGHI[i] = true
			case IssueNegative:
				rep.Flags.NegativeValues[i] = true
			case IssueOutOfRange:
				rep.Flags.OutOfRange[i] = true
			case IssueInconsistent:
				rep.Flags.Inconsistent[i] = true
			}
		}

		for _, c := range nonNegativeColumns {
			if !t.HasColumn(c) {
				continue
			}
			v := row.Value(c)
			if !math.IsNaN(v) && v < 0 {
				add(Issue{
					Column: c, Value: v, Kind: IssueNegative,
					Detail: fmt.Sprintf("%s is negative (%v)", c, v),
				})
			}
		}

		for _, c := range t.Columns() {
			v := row.Value(c)
			if math.IsNaN(v) {
				continue
			}
			bounds := columnBounds[c]
			if v < bounds[0] || v > bounds[1] {
				add(Issue{
					Column: c, Value: v, Kind: IssueOutOfRange,
					Detail: fmt.Sprintf("%s=%v outside [%v, %v]", c, v, bounds[0], bounds[1]),
				})
			}
		}

		pos := svc.Position(row.Timestamp, loc.Latitude, loc.Longitude, loc.Altitude)
		night := pos.Elevation <= 0

		if night && t.HasColumn(ColGHI) && !math.IsNaN(row.GHI) && row.GHI > nighttimeGHILimit {
			add(Issue{
				Column: ColGHI, Value: row.GHI, Kind: IssueNighttimeIrradiance,
				Detail: fmt.Sprintf("ghi=%v with sun %.1f° below horizon", row.GHI, -pos.Elevation),
			})
		}

		if !night && row.HasIrradiance() {
			cosZenith := math.Cos(pos.Zenith * math.Pi / 180)
			expected := row.DHI + row.DNI*math.Max(cosZenith, 0)
			if diff := math.Abs(row.GHI - expected); diff > consistencyTolerance {
				add(Issue{
					Column: ColGHI, Value: row.GHI, Kind: IssueInconsistent,
					Detail: fmt.Sprintf("ghi=%v but dhi+dni·cos(z)=%.1f (Δ=%.1f)", row.GHI, expected, diff),
				})
			}
		}
	}

	// Counts tally rows per check, matching the flag series, not findings
	// (one row can carry several findings of the same kind).
	for i, flagged := range rep.Flags.AnyIssue() {
		if flagged {
			rep.FlaggedRows++
		}
		if rep.Flags.NighttimeGHI[i] {
			rep.Counts[IssueNighttimeIrradiance]++
		}
		if rep.Flags.NegativeValues[i] {
			rep.Counts[IssueNegative]++
		}
		if rep.Flags.OutOfRange[i] {
			rep.Counts[IssueOutOfRange]++
		}
		if rep.Flags.Inconsistent[i] {
			rep.Counts[IssueInconsistent]++
		}
	}
	return rep
}
