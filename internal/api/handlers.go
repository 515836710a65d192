package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"pvsimulator/internal/atmosphere"
	"pvsimulator/internal/model"
	"pvsimulator/internal/power"
	"pvsimulator/internal/simulation"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/temperature"
	"pvsimulator/internal/weather"
	"pvsimulator/internal/ws"
)

// SimulationRequest is the POST /api/simulations body. Model selectors
// and loss factors are optional; zero values mean defaults.
type SimulationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Timezone  string  `json:"timezone"`

	PanelArea       float64 `json:"panel_area"`
	PanelEfficiency float64 `json:"panel_efficiency"`
	Tilt            float64 `json:"tilt"`
	Azimuth         float64 `json:"azimuth"`
	TempCoefficient float64 `json:"temp_coefficient"`

	Year            int `json:"year"`
	IntervalMinutes int `json:"interval_minutes"`

	// WeatherDataset names an archived dataset to merge in. Empty runs
	// the year on clear-sky irradiance.
	WeatherDataset string `json:"weather_dataset,omitempty"`

	// Pointers so an explicit 0 (freezing air, calm wind) survives;
	// absent fields fall back to the model defaults.
	AmbientTemp *float64 `json:"ambient_temp,omitempty"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
	CloudCover  float64  `json:"cloud_cover,omitempty"`

	SoilingFactor      float64  `json:"soiling_factor,omitempty"`
	DegradationFactor  float64  `json:"degradation_factor,omitempty"`
	InverterEfficiency *float64 `json:"inverter_efficiency,omitempty"`

	ClearSkyModel    string  `json:"clearsky_model,omitempty"`
	LinkeTurbidity   float64 `json:"linke_turbidity,omitempty"`
	CloudModel       string  `json:"cloud_model,omitempty"`
	TemperatureModel string  `json:"temperature_model,omitempty"`
	DiffuseModel     string  `json:"diffuse_model,omitempty"`
	IAMModel         string  `json:"iam_model,omitempty"`

	Workers int `json:"workers,omitempty"`
}

// RunResponse is the API shape of a run, statistics included once the
// run completes.
type RunResponse struct {
	Run
	Statistics *simulation.AnnualStatistics `json:"statistics,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := model.NewLocation(req.Latitude, req.Longitude, req.Altitude, tz)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sys, err := model.NewPVSystem(req.PanelArea, req.PanelEfficiency, req.Tilt, req.Azimuth, req.TempCoefficient)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := simulation.Config{
		Year:            req.Year,
		IntervalMinutes: req.IntervalMinutes,
		WeatherSource:   simulation.ClearSky,
		Workers:         req.Workers,
		Options: power.Options{
			AmbientTemp:        req.AmbientTemp,
			WindSpeed:          req.WindSpeed,
			CloudCover:         req.CloudCover,
			SoilingFactor:      req.SoilingFactor,
			DegradationFactor:  req.DegradationFactor,
			InverterEfficiency: req.InverterEfficiency,
			ClearSkyModel:      solar.ClearSkyModel(req.ClearSkyModel),
			LinkeTurbidity:     req.LinkeTurbidity,
			DiffuseModel:       solar.DiffuseModel(req.DiffuseModel),
			IAMModel:           solar.IAMModel(req.IAMModel),
			TemperatureModel:   temperature.Model(req.TemperatureModel),
			CloudModel:         atmosphere.CloudModel(req.CloudModel),
		},
	}

	if req.WeatherDataset != "" {
		if s.archive == nil {
			s.sendError(w, "weather datasets require the archive, which is not configured", http.StatusBadRequest)
			return
		}
		loadCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		table, err := s.archive.LoadWeather(loadCtx, req.WeatherDataset)
		if s.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			s.metrics.WeatherFetchTotal.WithLabelValues("archive", status).Inc()
		}
		if err != nil {
			s.sendError(w, fmt.Sprintf("loading weather dataset: %v", err), http.StatusBadRequest)
			return
		}
		cfg.WeatherSource = simulation.TableSource
		cfg.Weather = table
	}

	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	s.addRun(run)

	go s.runSimulation(run.ID, loc, sys, cfg)

	s.sendJSON(w, RunResponse{Run: *run}, http.StatusAccepted)
}

// runSimulation executes one run in the background, streaming progress
// over WebSocket and archiving the finished result when configured.
func (s *Server) runSimulation(id string, loc model.Location, sys model.PVSystem, cfg simulation.Config) {
	cfg.Progress = func(fraction float64) {
		s.setProgress(id, fraction)
		if s.stream != nil {
			s.stream.BroadcastProgress(id, fraction)
		}
	}

	started := time.Now()
	res, err := s.engine.Run(context.Background(), loc, sys, cfg)
	s.finishRun(id, res, err)

	if s.metrics != nil {
		s.metrics.SimulationDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			s.metrics.SimulationsTotal.WithLabelValues("failed").Inc()
		} else {
			s.metrics.SimulationsTotal.WithLabelValues("complete").Inc()
			s.metrics.SimulationSteps.Observe(float64(len(res.Steps)))
		}
	}

	if err != nil {
		s.log.WithError(err).WithField("run_id", id).Error("simulation failed")
		if s.stream != nil {
			s.stream.BroadcastError(id, err)
		}
		return
	}

	if s.stream != nil {
		s.stream.BroadcastComplete(ws.SimCompletePayload{RunID: id, Statistics: res.Statistics})
	}
	if s.archive != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.archive.SaveResult(saveCtx, id, res); err != nil {
			s.log.WithError(err).WithField("run_id", id).Error("archiving run failed")
		}
	}
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	runs := s.listRuns()
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	s.sendJSON(w, out, http.StatusOK)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if run, ok := s.getRun(id); ok {
		s.sendJSON(w, runResponse(run), http.StatusOK)
		return
	}

	// Not in memory; it may be an archived run from a previous process.
	if s.archive != nil {
		rec, err := s.archive.GetRun(r.Context(), id)
		if err == nil {
			s.sendJSON(w, RunResponse{
				Run: Run{
					ID:        rec.ID,
					Status:    StatusComplete,
					CreatedAt: rec.CreatedAt,
					Progress:  1.0,
				},
				Statistics: &rec.Statistics,
			}, http.StatusOK)
			return
		}
	}
	s.sendError(w, fmt.Sprintf("run %s not found", id), http.StatusNotFound)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, ok := s.getRun(id)
	if !ok {
		s.sendError(w, fmt.Sprintf("run %s not found", id), http.StatusNotFound)
		return
	}
	if run.Status != StatusComplete || run.Result == nil {
		s.sendError(w, fmt.Sprintf("run %s is %s, export requires a completed run", id, run.Status),
			http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "simulation-"+id+".csv"))
	if err := run.Result.ExportCSV(w); err != nil {
		s.log.WithError(err).WithField("run_id", id).Error("CSV export failed")
	}
}

// handleWeatherQuality runs the plausibility checks over a CSV body.
// Location comes from query parameters since the sun-dependent checks
// need it.
func (s *Server) handleWeatherQuality(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if err1 != nil || err2 != nil {
		s.sendError(w, "latitude and longitude query parameters are required", http.StatusBadRequest)
		return
	}
	alt := 0.0
	if v := r.URL.Query().Get("altitude"); v != "" {
		if alt, err1 = strconv.ParseFloat(v, 64); err1 != nil {
			s.sendError(w, "invalid altitude", http.StatusBadRequest)
			return
		}
	}
	tz := r.URL.Query().Get("timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := model.NewLocation(lat, lon, alt, tz)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := weather.ReadCSV(r.Body, loc.TZ())
	if err != nil {
		s.sendError(w, fmt.Sprintf("parsing weather CSV: %v", err), http.StatusBadRequest)
		return
	}

	report := weather.CheckQuality(table, loc, s.solar)
	s.sendJSON(w, report, http.StatusOK)
}

// handleLiveWeather reports the newest observation from the live feed.
// NaN markers never reach the JSON encoder; absent values are simply
// omitted.
func (s *Server) handleLiveWeather(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		s.sendError(w, "live weather feed is not configured", http.StatusNotFound)
		return
	}
	row, ok := s.live.Latest()
	if !ok {
		s.sendError(w, "no observations received yet", http.StatusNotFound)
		return
	}
	out := map[string]any{"timestamp": row.Timestamp}
	for _, c := range weather.AllColumns {
		if v := row.Value(c); !math.IsNaN(v) {
			out[string(c)] = v
		}
	}
	s.sendJSON(w, out, http.StatusOK)
}

// handleLiveWeatherHistory exports everything the live feed has
// accumulated so far as CSV.
func (s *Server) handleLiveWeatherHistory(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		s.sendError(w, "live weather feed is not configured", http.StatusNotFound)
		return
	}
	table, err := s.live.Snapshot()
	if err != nil {
		s.sendError(w, fmt.Sprintf("assembling live weather history: %v", err), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="live-weather.csv"`)
	if err := weather.WriteCSV(w, table); err != nil {
		s.log.WithError(err).Error("live weather CSV export failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "ok"}
	code := http.StatusOK
	if s.archive != nil {
		if err := s.archive.HealthCheck(r.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			health["database"] = "ok"
		}
	}
	s.sendJSON(w, health, code)
}

func runResponse(run Run) RunResponse {
	resp := RunResponse{Run: run}
	if run.Result != nil {
		stats := run.Result.Statistics
		resp.Statistics = &stats
	}
	return resp
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"code": code}).Error("encoding response failed")
	}
}

func (s *Server) sendError(w http.ResponseWriter, msg string, code int) {
	s.sendJSON(w, errorResponse{Error: msg, Code: code}, code)
}
