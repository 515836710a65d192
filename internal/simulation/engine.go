package simulation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pvsimulator/internal/model"
	"pvsimulator/internal/power"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/weather"
)

// WeatherSource selects where per-step weather comes from.
type WeatherSource string

const (
	// ClearSky runs the whole year on modeled clear-sky irradiance with
	// the configured constant ambient conditions.
	ClearSky WeatherSource = "clear_sky"
	// TableSource merges a pre-loaded weather table into each step with
	// last-observation-carried-forward semantics.
	TableSource WeatherSource = "table"
)

// progressEvery is the step cadence of progress callbacks. Completion is
// always reported once with 1.0 regardless of cadence rounding.
const progressEvery = 1000

// Config holds one simulation run's parameters.
type Config struct {
	Year            int
	IntervalMinutes int // 1-60

	WeatherSource WeatherSource
	Weather       *weather.Table // required when WeatherSource == TableSource

	// Options carries the model selectors, loss factors and the constant
	// ambient conditions used where the weather table has no coverage.
	Options power.Options

	// Progress, when set, is called with a completion fraction at a
	// coarse cadence and exactly once with 1.0 at the end.
	Progress func(fraction float64)

	// Workers > 1 spreads steps over a worker pool. Results are written
	// back by index, so output order is deterministic either way.
	Workers int
}

func (c *Config) validate() error {
	if c.IntervalMinutes < 1 || c.IntervalMinutes > 60 {
		return fmt.Errorf("simulation interval must be 1-60 minutes, got %d", c.IntervalMinutes)
	}
	switch c.WeatherSource {
	case ClearSky, "":
	case TableSource:
		if c.Weather == nil {
			return fmt.Errorf("weather source %q requires a weather table", TableSource)
		}
	default:
		return fmt.Errorf("invalid weather source %q, valid options: %s, %s",
			c.WeatherSource, ClearSky, TableSource)
	}
	return nil
}

// Engine runs annual simulations over an injected solar service.
type Engine struct {
	calc *power.Calculator
	log  *logrus.Entry
}

// NewEngine returns an Engine over the given solar service.
func NewEngine(svc solar.Service, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		calc: power.NewCalculator(svc),
		log:  log.WithField("component", "simulation"),
	}
}

// Run simulates one full year. Each step is a pure function of its own
// inputs, so the only ordering requirement is that the result table comes
// back in timestamp order before aggregation.
func (e *Engine) Run(ctx context.Context, loc model.Location, sys model.PVSystem, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	timestamps, err := GenerateYear(cfg.Year, cfg.IntervalMinutes, loc.TZ())
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"year":     cfg.Year,
		"interval": cfg.IntervalMinutes,
		"steps":    len(timestamps),
		"source":   cfg.WeatherSource,
		"workers":  cfg.Workers,
	}).Info("starting annual simulation")
	started := time.Now()

	steps := make([]Step, len(timestamps))
	if cfg.Workers > 1 {
		err = e.runParallel(ctx, loc, sys, cfg, timestamps, steps)
	} else {
		err = e.runSequential(ctx, loc, sys, cfg, timestamps, steps)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Progress != nil {
		cfg.Progress(1.0)
	}

	stats := Aggregate(steps, cfg.IntervalMinutes, sys)
	e.log.WithFields(logrus.Fields{
		"elapsed":          time.Since(started).String(),
		"total_energy_kwh": fmt.Sprintf("%.1f", stats.TotalEnergyKWh),
		"capacity_factor":  fmt.Sprintf("%.3f", stats.CapacityFactor),
	}).Info("simulation complete")

	return &Result{
		Location:        loc,
		System:          sys,
		Year:            cfg.Year,
		IntervalMinutes: cfg.IntervalMinutes,
		Steps:           steps,
		Statistics:      stats,
	}, nil
}

func (e *Engine) runSequential(ctx context.Context, loc model.Location, sys model.PVSystem,
	cfg Config, timestamps []time.Time, steps []Step) error {

	total := len(timestamps)
	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.step(loc, sys, cfg, ts)
		if err != nil {
			return fmt.Errorf("step %s: %w", ts.Format(time.RFC3339), err)
		}
		steps[i] = Step{Timestamp: ts, Result: res}

		if cfg.Progress != nil && i > 0 && i%progressEvery == 0 {
			cfg.Progress(float64(i) / float64(total))
		}
	}
	return nil
}

func (e *Engine) runParallel(ctx context.Context, loc model.Location, sys model.PVSystem,
	cfg Config, timestamps []time.Time, steps []Step) error {

	total := len(timestamps)
	indices := make(chan int)
	errs := make(chan error, cfg.Workers)
	var done int64
	var progressMu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				res, err := e.step(loc, sys, cfg, timestamps[i])
				if err != nil {
					errs <- fmt.Errorf("step %s: %w", timestamps[i].Format(time.RFC3339), err)
					return
				}
				steps[i] = Step{Timestamp: timestamps[i], Result: res}

				if cfg.Progress != nil {
					progressMu.Lock()
					done++
					if done%progressEvery == 0 {
						cfg.Progress(float64(done) / float64(total))
					}
					progressMu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range timestamps {
		select {
		case <-ctx.Done():
			break feed
		case err := <-errs:
			close(indices)
			wg.Wait()
			return err
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}
	return ctx.Err()
}

// step resolves weather for one timestamp and runs the power model.
// Ambient conditions left nil in the options fall back to the
// calculator's 25 °C / 1 m/s defaults; an explicit 0 is honored.
func (e *Engine) step(loc model.Location, sys model.PVSystem, cfg Config, ts time.Time) (power.Result, error) {
	opts := cfg.Options
	if cfg.WeatherSource == TableSource {
		if row, ok := cfg.Weather.AsOf(ts); ok {
			applyRow(&opts, row)
		}
		// No prior observation: clear-sky defaults stand.
	}

	return e.calc.Calculate(loc, sys, ts, opts)
}

// applyRow copies a weather observation into the step options. Absent
// values leave the configured defaults in place; the step falls back to
// clear-sky irradiance unless all three components are observed.
func applyRow(opts *power.Options, row weather.Row) {
	if !math.IsNaN(row.TempAir) {
		temp := row.TempAir
		opts.AmbientTemp = &temp
	}
	if !math.IsNaN(row.WindSpeed) {
		wind := row.WindSpeed
		opts.WindSpeed = &wind
	}
	if !math.IsNaN(row.CloudCover) {
		opts.CloudCover = row.CloudCover
	}
	if row.HasIrradiance() {
		ghi, dni, dhi := row.GHI, row.DNI, row.DHI
		opts.GHI, opts.DNI, opts.DHI = &ghi, &dni, &dhi
	}
}
