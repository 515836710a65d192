package weather

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// header aliases accepted for each table column, lowercased.
var columnAliases = map[string]Column{
	"ghi":           ColGHI,
	"dni":           ColDNI,
	"dhi":           ColDHI,
	"temp_air":      ColTempAir,
	"temperature":   ColTempAir,
	"temperature_c": ColTempAir,
	"wind_speed":    ColWindSpeed,
	"wind":          ColWindSpeed,
	"cloud_cover":   ColCloudCover,
	"clouds":        ColCloudCover,
	"cloudcover":    ColCloudCover,
}

var timestampAliases = map[string]bool{
	"timestamp": true,
	"time":      true,
	"datetime":  true,
	"date_time": true,
}

// timestamp layouts tried in order after unix-epoch parsing fails.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ReadCSV parses a weather table from CSV. The header row names the
// columns; recognized aliases are mapped, unrecognized columns ignored.
// Timestamps may be unix epoch seconds, RFC 3339, or a naive local layout
// interpreted in tz. Empty cells become missing values.
//
// Values are not range-checked here so suspect files can still be loaded
// for quality analysis; ingestion paths that want hard rejection call
// ValidateRanges on the result.
func ReadCSV(r io.Reader, tz *time.Location) (*Table, error) {
	if tz == nil {
		tz = time.UTC
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	tsIdx := -1
	colIdx := make(map[int]Column)
	var declared []Column
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if timestampAliases[key] {
			tsIdx = i
			continue
		}
		if c, ok := columnAliases[key]; ok {
			colIdx[i] = c
			declared = append(declared, c)
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("CSV header has no timestamp column (accepted: timestamp, time, datetime)")
	}
	if len(colIdx) == 0 {
		return nil, fmt.Errorf("CSV header has no recognized weather columns")
	}

	var rows []Row
	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		if tsIdx >= len(record) {
			return nil, fmt.Errorf("line %d: missing timestamp field", lineNum)
		}

		ts, err := parseCSVTimestamp(strings.TrimSpace(record[tsIdx]), tz)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		row := EmptyRow(ts)
		for i, c := range colIdx {
			if i >= len(record) {
				continue
			}
			field := strings.TrimSpace(record[i])
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing %s: %w", lineNum, c, err)
			}
			row.SetValue(c, v)
		}
		rows = append(rows, row)
	}

	return New(rows, declared...)
}

// WriteCSV renders the table with a timestamp column followed by the
// table's columns in canonical order. Missing values become empty cells.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	cols := t.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, "timestamp")
	for _, c := range cols {
		header = append(header, string(c))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	record := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		record[0] = row.Timestamp.Format(time.RFC3339)
		for j, c := range cols {
			v := row.Value(c)
			if math.IsNaN(v) {
				record[j+1] = ""
			} else {
				record[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func parseCSVTimestamp(s string, tz *time.Location) (time.Time, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).In(tz), nil
	}
	for _, layout := range csvTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, tz); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
