package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsimulator/internal/simulation"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/weather"
)

// testServer wires the API without archive, stream, live feed or
// metrics; the handlers must work with every optional collaborator
// absent.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return testServerWithLive(t, nil)
}

func testServerWithLive(t *testing.T, live LiveWeather) *httptest.Server {
	t.Helper()
	engine := simulation.NewEngine(solar.Standard{}, nil)
	api := NewServer(engine, solar.Standard{}, nil, nil, live, nil, nil)

	r := mux.NewRouter()
	api.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func validSimulationBody() string {
	return `{
		"latitude": 40.0, "longitude": -105.0, "altitude": 1600, "timezone": "UTC",
		"panel_area": 20, "panel_efficiency": 0.20, "tilt": 35, "azimuth": 180,
		"year": 2023, "interval_minutes": 60, "workers": 4
	}`
}

func postSimulation(t *testing.T, srv *httptest.Server, body string) RunResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/simulations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	return run
}

// runStatus polls without test assertions so it is safe inside Eventually.
func runStatus(srv *httptest.Server, id string) RunStatus {
	resp, err := http.Get(srv.URL + "/api/simulations/" + id)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	var run RunResponse
	if json.NewDecoder(resp.Body).Decode(&run) != nil {
		return ""
	}
	return run.Status
}

func getRun(t *testing.T, srv *httptest.Server, id string) RunResponse {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/simulations/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	return run
}

func TestServer_CreateSimulation_RunsToCompletion(t *testing.T) {
	srv := testServer(t)

	created := postSimulation(t, srv, validSimulationBody())
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusRunning, created.Status)

	require.Eventually(t, func() bool {
		return runStatus(srv, created.ID) == StatusComplete
	}, 2*time.Minute, 200*time.Millisecond)

	final := getRun(t, srv, created.ID)
	assert.Equal(t, 1.0, final.Progress)
	require.NotNil(t, final.Statistics)
	assert.Greater(t, final.Statistics.TotalEnergyKWh, 0.0)
	assert.Greater(t, final.Statistics.MonthlyEnergyKWh["June"],
		final.Statistics.MonthlyEnergyKWh["December"])
}

func TestServer_CreateSimulation_RejectsBadInput(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"latitude": `},
		{"bad latitude", `{"latitude": 95, "longitude": 0, "panel_area": 20, "panel_efficiency": 0.2, "tilt": 35, "azimuth": 180, "year": 2023, "interval_minutes": 60}`},
		{"bad system", `{"latitude": 40, "longitude": 0, "panel_area": 0, "panel_efficiency": 0.2, "tilt": 35, "azimuth": 180, "year": 2023, "interval_minutes": 60}`},
		{"archive required", `{"latitude": 40, "longitude": 0, "panel_area": 20, "panel_efficiency": 0.2, "tilt": 35, "azimuth": 180, "year": 2023, "interval_minutes": 60, "weather_dataset": "boulder-2023"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/simulations", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestServer_CreateSimulation_FailedRunIsReported(t *testing.T) {
	srv := testServer(t)

	// interval_minutes out of range fails inside the engine, after the 202.
	body := `{
		"latitude": 40.0, "longitude": -105.0, "panel_area": 20, "panel_efficiency": 0.20,
		"tilt": 35, "azimuth": 180, "year": 2023, "interval_minutes": 90
	}`
	created := postSimulation(t, srv, body)

	require.Eventually(t, func() bool {
		return runStatus(srv, created.ID) == StatusFailed
	}, 10*time.Second, 50*time.Millisecond)

	failed := getRun(t, srv, created.ID)
	assert.Contains(t, failed.Error, "interval")
}

func TestServer_ListSimulations_NewestFirst(t *testing.T) {
	srv := testServer(t)

	first := postSimulation(t, srv, validSimulationBody())
	second := postSimulation(t, srv, validSimulationBody())

	resp, err := http.Get(srv.URL + "/api/simulations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestServer_GetSimulation_NotFound(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/simulations/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ExportCSV(t *testing.T) {
	srv := testServer(t)

	created := postSimulation(t, srv, validSimulationBody())

	// Export before completion conflicts.
	resp, err := http.Get(srv.URL + "/api/simulations/" + created.ID + "/export.csv")
	require.NoError(t, err)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		// The run may have finished between the POST and this GET.
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	require.Eventually(t, func() bool {
		return runStatus(srv, created.ID) == StatusComplete
	}, 2*time.Minute, 200*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/simulations/" + created.ID + "/export.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), created.ID)

	var header string
	_, err = fmt.Fscanln(resp.Body, &header)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,power_w,power_ac_w,poa_irradiance,cell_temperature,ghi,dni,dhi,solar_elevation",
		header)
}

func TestServer_WeatherQuality(t *testing.T) {
	srv := testServer(t)

	csvBody := "timestamp,ghi,dni,dhi,temp_air\n" +
		"2023-06-15T19:00:00Z,1800,700,120,25\n" + // out of range
		"2023-06-15T20:00:00Z,570,480,120,25\n"

	url := srv.URL + "/api/weather/quality?latitude=40.0&longitude=-105.0&altitude=1600"
	resp, err := http.Post(url, "text/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report weather.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.TotalRows)
	assert.True(t, report.AnyIssues())
	assert.Equal(t, weather.IssueOutOfRange, report.Issues[0].Kind)
	assert.Equal(t, 1, report.Counts[weather.IssueOutOfRange])
	assert.Equal(t, []bool{true, false}, report.Flags.OutOfRange)
}

// stubLiveFeed stands in for the MQTT source.
type stubLiveFeed struct {
	rows []weather.Row
}

func (s stubLiveFeed) Latest() (weather.Row, bool) {
	if len(s.rows) == 0 {
		return weather.Row{}, false
	}
	return s.rows[len(s.rows)-1], true
}

func (s stubLiveFeed) Snapshot() (*weather.Table, error) {
	return weather.New(s.rows)
}

func liveRows() []weather.Row {
	base := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)
	rows := make([]weather.Row, 2)
	for i := range rows {
		rows[i] = weather.EmptyRow(base.Add(time.Duration(i) * time.Hour))
		rows[i].GHI = 400 + float64(i)*50
		rows[i].TempAir = 18
	}
	return rows
}

func TestServer_LiveWeather_NotConfigured(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/weather/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_LiveWeather_Latest(t *testing.T) {
	srv := testServerWithLive(t, stubLiveFeed{rows: liveRows()})

	resp, err := http.Get(srv.URL + "/api/weather/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var obs map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&obs))
	assert.Equal(t, 450.0, obs["ghi"])
	assert.Equal(t, 18.0, obs["temp_air"])
	// Unobserved columns stay out of the payload entirely.
	_, hasDNI := obs["dni"]
	assert.False(t, hasDNI)
}

func TestServer_LiveWeather_HistoryCSV(t *testing.T) {
	srv := testServerWithLive(t, stubLiveFeed{rows: liveRows()})

	resp, err := http.Get(srv.URL + "/api/weather/live/history.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	var header string
	_, err = fmt.Fscanln(resp.Body, &header)
	require.NoError(t, err)
	assert.Contains(t, header, "timestamp")
	assert.Contains(t, header, "ghi")
}

func TestServer_LiveWeather_HistoryNeedsEnoughData(t *testing.T) {
	srv := testServerWithLive(t, stubLiveFeed{})

	resp, err := http.Get(srv.URL + "/api/weather/live/history.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_RunRegistry_ConcurrentReadsDuringProgress(t *testing.T) {
	srv := NewServer(nil, solar.Standard{}, nil, nil, nil, nil, nil)
	srv.addRun(&Run{ID: "run-1", Status: StatusRunning, CreatedAt: time.Now().UTC()})

	// Readers take copies while the run goroutine mutates the entry; the
	// race detector verifies the registry lock covers both sides.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i <= 1000; i++ {
			srv.setProgress("run-1", float64(i)/1000)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if run, ok := srv.getRun("run-1"); ok {
				_ = run.Progress
				_ = run.Status
			}
			_ = srv.listRuns()
		}
	}()
	wg.Wait()

	run, ok := srv.getRun("run-1")
	require.True(t, ok)
	assert.Equal(t, 1.0, run.Progress)
}

func TestServer_WeatherQuality_RequiresCoordinates(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/weather/quality", "text/csv",
		strings.NewReader("timestamp,ghi,temp_air\n2023-06-15T19:00:00Z,500,25\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	// No archive configured: no database field at all.
	_, hasDB := health["database"]
	assert.False(t, hasDB)
}
