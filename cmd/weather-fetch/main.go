package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"pvsimulator/internal/model"
	"pvsimulator/internal/weather"
)

func main() {
	lat := flag.Float64("lat", 0, "latitude in degrees")
	lon := flag.Float64("lon", 0, "longitude in degrees")
	alt := flag.Float64("alt", 0, "altitude in meters")
	startStr := flag.String("start", "", "start date YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "end date YYYY-MM-DD (required)")
	output := flag.String("output", "weather.csv", "output CSV path")
	cacheDir := flag.String("cache-dir", ".cache/weather", "response cache directory (empty disables)")
	cacheTTL := flag.Duration("cache-ttl", 24*time.Hour, "cache entry lifetime")
	flag.Parse()

	if *startStr == "" || *endStr == "" {
		log.Fatal("-start and -end are required")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}
	loc, err := model.NewLocation(*lat, *lon, *alt, "UTC")
	if err != nil {
		log.Fatalf("invalid location: %v", err)
	}

	var cache *weather.Cache
	if *cacheDir != "" {
		cache = weather.NewCache(*cacheDir, *cacheTTL)
	}
	client := weather.NewOpenMeteoClient(cache, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	table, err := client.FetchHistorical(ctx, loc, start, end)
	if err != nil {
		log.Fatalf("fetching weather: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("creating %s: %v", *output, err)
	}
	if err := weather.WriteCSV(f, table); err != nil {
		f.Close()
		log.Fatalf("writing %s: %v", *output, err)
	}
	f.Close()
	log.Printf("wrote %d hourly rows to %s", table.Len(), *output)
}
