// Package api exposes the simulation service over HTTP: run management,
// result export, weather quality checks, health and metrics.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"pvsimulator/internal/metrics"
	"pvsimulator/internal/simulation"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/storage"
	"pvsimulator/internal/weather"
	"pvsimulator/internal/ws"
)

// LiveWeather is a feed of live observations, typically the MQTT source.
type LiveWeather interface {
	Latest() (weather.Row, bool)
	Snapshot() (*weather.Table, error)
}

// RunStatus tracks one simulation run through its lifecycle.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusComplete RunStatus = "complete"
	StatusFailed   RunStatus = "failed"
)

// Run is the server-side record of one simulation request.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`

	Result *simulation.Result `json:"-"`
}

// Server holds the API's collaborators and the in-memory run registry.
// The registry is authoritative for live runs; the archive, when
// configured, additionally persists completed ones.
type Server struct {
	engine  *simulation.Engine
	solar   solar.Service
	archive *storage.Archive // nil when persistence is disabled
	stream  *ws.Handler
	live    LiveWeather // nil when no broker is configured
	log     *logrus.Entry
	metrics *metrics.Collector

	mu    sync.RWMutex
	runs  map[string]*Run
	order []string // insertion order, newest last
}

// NewServer wires the API over its collaborators. archive, stream, live
// and collector may all be nil.
func NewServer(engine *simulation.Engine, svc solar.Service, archive *storage.Archive,
	stream *ws.Handler, live LiveWeather, collector *metrics.Collector, log *logrus.Entry) *Server {

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		engine:  engine,
		solar:   svc,
		archive: archive,
		stream:  stream,
		live:    live,
		log:     log.WithField("component", "api"),
		metrics: collector,
		runs:    make(map[string]*Run),
	}
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r *mux.Router) {
	r.HandleFunc("/api/simulations", s.instrument("/api/simulations", s.handleCreateSimulation)).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations", s.instrument("/api/simulations", s.handleListSimulations)).Methods(http.MethodGet)
	r.HandleFunc("/api/simulations/{id}", s.instrument("/api/simulations/{id}", s.handleGetSimulation)).Methods(http.MethodGet)
	r.HandleFunc("/api/simulations/{id}/export.csv", s.instrument("/api/simulations/{id}/export.csv", s.handleExportCSV)).Methods(http.MethodGet)
	r.HandleFunc("/api/weather/quality", s.instrument("/api/weather/quality", s.handleWeatherQuality)).Methods(http.MethodPost)
	r.HandleFunc("/api/weather/live", s.instrument("/api/weather/live", s.handleLiveWeather)).Methods(http.MethodGet)
	r.HandleFunc("/api/weather/live/history.csv", s.instrument("/api/weather/live/history.csv", s.handleLiveWeatherHistory)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// instrument wraps a handler with request counting and latency metrics.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
			s.metrics.HTTPRequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) addRun(run *Run) {
	s.mu.Lock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	s.mu.Unlock()
}

// getRun returns a copy; the registry entry keeps being mutated by the
// run's background goroutine.
func (s *Server) getRun(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// listRuns returns shallow copies, newest first.
func (s *Server) listRuns() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.runs[s.order[i]])
	}
	return out
}

func (s *Server) setProgress(id string, fraction float64) {
	s.mu.Lock()
	if run, ok := s.runs[id]; ok {
		run.Progress = fraction
	}
	s.mu.Unlock()
}

func (s *Server) finishRun(id string, res *simulation.Result, runErr error) {
	s.mu.Lock()
	run, ok := s.runs[id]
	if ok {
		if runErr != nil {
			run.Status = StatusFailed
			run.Error = runErr.Error()
		} else {
			run.Status = StatusComplete
			run.Progress = 1.0
			run.Result = res
		}
	}
	s.mu.Unlock()
}
