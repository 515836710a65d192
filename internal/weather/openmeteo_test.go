package weather

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsimulator/internal/model"
)

const openMeteoFixture = `{
  "hourly": {
    "time": ["2023-06-01T00:00", "2023-06-01T01:00", "2023-06-01T02:00"],
    "shortwave_radiation": [0, 12.5, null],
    "direct_normal_irradiance": [0, 80, 120],
    "diffuse_radiation": [0, 10, 15],
    "temperature_2m": [14.2, 14.0, 13.8],
    "wind_speed_10m": [2.1, 2.4, 2.2],
    "cloud_cover": [20, 35, 50]
  }
}`

func openMeteoTestClient(t *testing.T, handler http.HandlerFunc) *OpenMeteoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOpenMeteoClient(nil, nil)
	client.BaseURL = srv.URL
	return client
}

func TestOpenMeteoClient_FetchHistorical(t *testing.T) {
	var gotQuery atomic.Value
	client := openMeteoTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		w.Write([]byte(openMeteoFixture))
	})

	loc, err := model.NewLocation(49.8, 19.0, 300, "UTC")
	require.NoError(t, err)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	table, err := client.FetchHistorical(context.Background(), loc, start, start)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 12.5, table.Row(1).GHI)
	assert.True(t, math.IsNaN(table.Row(2).GHI), "null maps to missing")
	assert.Equal(t, 13.8, table.Row(2).TempAir)

	q := gotQuery.Load().(string)
	assert.Contains(t, q, "latitude=49.8000")
	assert.Contains(t, q, "start_date=2023-06-01")
	assert.Contains(t, q, "wind_speed_unit=ms")
}

func TestOpenMeteoClient_RejectsInvertedRange(t *testing.T) {
	client := NewOpenMeteoClient(nil, nil)
	loc, err := model.NewLocation(49.8, 19.0, 300, "UTC")
	require.NoError(t, err)

	start := time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)
	_, err = client.FetchHistorical(context.Background(), loc, start, start.AddDate(0, 0, -1))
	assert.ErrorContains(t, err, "before start date")
}

func TestOpenMeteoClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := openMeteoTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	loc, err := model.NewLocation(49.8, 19.0, 300, "UTC")
	require.NoError(t, err)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = client.FetchHistorical(context.Background(), loc, start, start)
	assert.ErrorContains(t, err, "HTTP 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenMeteoClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := openMeteoTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(openMeteoFixture))
	})

	loc, err := model.NewLocation(49.8, 19.0, 300, "UTC")
	require.NoError(t, err)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	table, err := client.FetchHistorical(context.Background(), loc, start, start)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenMeteoClient_SecondFetchHitsCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(openMeteoFixture))
	}))
	t.Cleanup(srv.Close)

	client := NewOpenMeteoClient(NewCache(t.TempDir(), time.Hour), nil)
	client.BaseURL = srv.URL

	loc, err := model.NewLocation(49.8, 19.0, 300, "UTC")
	require.NoError(t, err)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = client.FetchHistorical(context.Background(), loc, start, start)
	require.NoError(t, err)
	table, err := client.FetchHistorical(context.Background(), loc, start, start)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 3, table.Len())
}
