package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"pvsimulator/internal/model"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/weather"
)

func main() {
	input := flag.String("input", "", "weather CSV to check (required)")
	lat := flag.Float64("lat", 0, "latitude in degrees")
	lon := flag.Float64("lon", 0, "longitude in degrees")
	alt := flag.Float64("alt", 0, "altitude in meters")
	tz := flag.String("tz", "UTC", "IANA timezone")

	fill := flag.String("fill", "", "fill method: linear, forward, backward, both (empty = report only)")
	maxGap := flag.Int("max-gap", 0, "longest missing run to fill, in points (0 = no limit)")
	freq := flag.Duration("freq", 0, "expected sampling interval, e.g. 1h (0 = infer from data)")
	output := flag.String("output", "", "path for the filled CSV (required with -fill)")
	flag.Parse()

	if *input == "" {
		log.Fatal("-input is required")
	}
	loc, err := model.NewLocation(*lat, *lon, *alt, *tz)
	if err != nil {
		log.Fatalf("invalid location: %v", err)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("opening %s: %v", *input, err)
	}
	table, err := weather.ReadCSV(f, loc.TZ())
	f.Close()
	if err != nil {
		log.Fatalf("parsing %s: %v", *input, err)
	}

	start, end, _ := table.Span()
	fmt.Printf("%d rows from %s to %s\n", table.Len(),
		start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))

	report := weather.CheckQuality(table, loc, solar.Standard{})
	fmt.Println(report.String())

	gaps, err := weather.DetectGaps(table, *freq)
	if err != nil {
		log.Fatalf("detecting gaps: %v", err)
	}
	if len(gaps) == 0 {
		fmt.Println("no index gaps")
	} else {
		fmt.Printf("%d index gaps:\n", len(gaps))
		for _, g := range gaps {
			fmt.Printf("  %s -> %s (%s, %d missing points)\n",
				g.Start.Format("2006-01-02 15:04"), g.End.Format("2006-01-02 15:04"),
				g.Duration, g.MissingPoints)
		}
	}

	for _, c := range table.Columns() {
		if n := table.MissingCount(c); n > 0 {
			fmt.Printf("column %s: %d missing values\n", c, n)
		}
	}

	if *fill == "" {
		return
	}
	if *output == "" {
		log.Fatal("-output is required with -fill")
	}

	filled, err := weather.FillGaps(table, weather.FillMethod(*fill), *maxGap, *freq)
	if err != nil {
		log.Fatalf("filling gaps: %v", err)
	}

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("creating %s: %v", *output, err)
	}
	if err := weather.WriteCSV(out, filled); err != nil {
		out.Close()
		log.Fatalf("writing %s: %v", *output, err)
	}
	out.Close()
	fmt.Printf("wrote %d rows to %s (was %d)\n", filled.Len(), *output, table.Len())
}
