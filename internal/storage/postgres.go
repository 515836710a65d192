// Package storage archives simulation runs and weather tables in
// PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"pvsimulator/internal/simulation"
	"pvsimulator/internal/weather"
)

// Config holds the database connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// ConfigFromEnv reads PG_* environment variables with local-development
// defaults.
func ConfigFromEnv() Config {
	return Config{
		Host:         envOr("PG_HOST", "localhost"),
		Port:         envIntOr("PG_PORT", 5432),
		User:         envOr("PG_USER", "pvsim"),
		Password:     envOr("PG_PASSWORD", ""),
		Database:     envOr("PG_DATABASE", "pvsim"),
		SSLMode:      envOr("PG_SSLMODE", "disable"),
		MaxOpenConns: envIntOr("PG_MAX_OPEN_CONNS", 10),
		MaxIdleConns: envIntOr("PG_MAX_IDLE_CONNS", 5),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Archive persists runs and weather datasets.
type Archive struct {
	db  *sqlx.DB
	log *logrus.Entry
}

// Open connects, configures the pool and verifies the connection.
func Open(cfg Config, log *logrus.Entry) (*Archive, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log = log.WithField("component", "storage")
	log.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("connected to PostgreSQL")

	return &Archive{db: db, log: log}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() error { return a.db.Close() }

// HealthCheck pings the database with a short deadline.
func (a *Archive) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS simulation_runs (
	id               TEXT PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	year             INTEGER NOT NULL,
	interval_minutes INTEGER NOT NULL,
	latitude         DOUBLE PRECISION NOT NULL,
	longitude        DOUBLE PRECISION NOT NULL,
	altitude         DOUBLE PRECISION NOT NULL,
	timezone         TEXT NOT NULL,
	panel_area       DOUBLE PRECISION NOT NULL,
	panel_efficiency DOUBLE PRECISION NOT NULL,
	tilt             DOUBLE PRECISION NOT NULL,
	azimuth          DOUBLE PRECISION NOT NULL,
	temp_coefficient DOUBLE PRECISION NOT NULL,
	statistics       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS simulation_steps (
	run_id           TEXT NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
	ts               TIMESTAMPTZ NOT NULL,
	power_w          DOUBLE PRECISION NOT NULL,
	power_ac_w       DOUBLE PRECISION,
	poa_irradiance   DOUBLE PRECISION NOT NULL,
	cell_temperature DOUBLE PRECISION NOT NULL,
	ghi              DOUBLE PRECISION NOT NULL,
	dni              DOUBLE PRECISION NOT NULL,
	dhi              DOUBLE PRECISION NOT NULL,
	solar_elevation  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, ts)
);

CREATE TABLE IF NOT EXISTS weather_observations (
	dataset     TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	ghi         DOUBLE PRECISION,
	dni         DOUBLE PRECISION,
	dhi         DOUBLE PRECISION,
	temp_air    DOUBLE PRECISION,
	wind_speed  DOUBLE PRECISION,
	cloud_cover DOUBLE PRECISION,
	PRIMARY KEY (dataset, ts)
);`

// EnsureSchema creates the tables if they do not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// RunRecord is one archived simulation run's metadata.
type RunRecord struct {
	ID              string    `db:"id" json:"id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	Year            int       `db:"year" json:"year"`
	IntervalMinutes int       `db:"interval_minutes" json:"interval_minutes"`
	Latitude        float64   `db:"latitude" json:"latitude"`
	Longitude       float64   `db:"longitude" json:"longitude"`
	Altitude        float64   `db:"altitude" json:"altitude"`
	Timezone        string    `db:"timezone" json:"timezone"`
	PanelArea       float64   `db:"panel_area" json:"panel_area"`
	PanelEfficiency float64   `db:"panel_efficiency" json:"panel_efficiency"`
	Tilt            float64   `db:"tilt" json:"tilt"`
	Azimuth         float64   `db:"azimuth" json:"azimuth"`
	TempCoefficient float64   `db:"temp_coefficient" json:"temp_coefficient"`
	StatisticsJSON  []byte    `db:"statistics" json:"-"`

	Statistics simulation.AnnualStatistics `db:"-" json:"statistics"`
}

// SaveResult archives a run with all of its steps in one transaction.
func (a *Archive) SaveResult(ctx context.Context, id string, res *simulation.Result) error {
	statsJSON, err := json.Marshal(res.Statistics)
	if err != nil {
		return fmt.Errorf("marshaling statistics: %w", err)
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulation_runs
			(id, year, interval_minutes, latitude, longitude, altitude, timezone,
			 panel_area, panel_efficiency, tilt, azimuth, temp_coefficient, statistics)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		id, res.Year, res.IntervalMinutes,
		res.Location.Latitude, res.Location.Longitude, res.Location.Altitude, res.Location.Timezone,
		res.System.PanelArea, res.System.PanelEfficiency, res.System.Tilt, res.System.Azimuth,
		res.System.TempCoefficient, statsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", id, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO simulation_steps
			(run_id, ts, power_w, power_ac_w, poa_irradiance, cell_temperature,
			 ghi, dni, dhi, solar_elevation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`)
	if err != nil {
		return fmt.Errorf("preparing step insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range res.Steps {
		var ac sql.NullFloat64
		if s.Result.PowerACW != nil {
			ac = sql.NullFloat64{Float64: *s.Result.PowerACW, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, id, s.Timestamp,
			s.Result.PowerW, ac, s.Result.POAGlobal, s.Result.CellTemperature,
			s.Result.GHI, s.Result.DNI, s.Result.DHI, s.Result.SolarElevation)
		if err != nil {
			return fmt.Errorf("inserting step at %s: %w", s.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", id, err)
	}
	a.log.WithFields(logrus.Fields{"run_id": id, "steps": len(res.Steps)}).Info("archived simulation run")
	return nil
}

// GetRun loads one run's metadata and statistics.
func (a *Archive) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	err := a.db.GetContext(ctx, &rec,
		`SELECT * FROM simulation_runs WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if err := json.Unmarshal(rec.StatisticsJSON, &rec.Statistics); err != nil {
		return nil, fmt.Errorf("unmarshaling statistics for run %s: %w", id, err)
	}
	return &rec, nil
}

// ListRuns returns run metadata, newest first.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []RunRecord
	err := a.db.SelectContext(ctx, &recs,
		`SELECT * FROM simulation_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	for i := range recs {
		if err := json.Unmarshal(recs[i].StatisticsJSON, &recs[i].Statistics); err != nil {
			return nil, fmt.Errorf("unmarshaling statistics for run %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

// SaveWeather upserts a weather table under a dataset name. NaN values
// become NULL columns; later saves of the same instant win.
func (a *Archive) SaveWeather(ctx context.Context, dataset string, t *weather.Table) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO weather_observations
			(dataset, ts, ghi, dni, dhi, temp_air, wind_speed, cloud_cover)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (dataset, ts) DO UPDATE SET
			ghi = EXCLUDED.ghi, dni = EXCLUDED.dni, dhi = EXCLUDED.dhi,
			temp_air = EXCLUDED.temp_air, wind_speed = EXCLUDED.wind_speed,
			cloud_cover = EXCLUDED.cloud_cover`)
	if err != nil {
		return fmt.Errorf("preparing weather upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		_, err := stmt.ExecContext(ctx, dataset, row.Timestamp,
			nullable(row.GHI), nullable(row.DNI), nullable(row.DHI),
			nullable(row.TempAir), nullable(row.WindSpeed), nullable(row.CloudCover))
		if err != nil {
			return fmt.Errorf("upserting observation at %s: %w", row.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing weather dataset %s: %w", dataset, err)
	}
	a.log.WithFields(logrus.Fields{"dataset": dataset, "rows": t.Len()}).Info("archived weather dataset")
	return nil
}

type weatherRow struct {
	TS         time.Time       `db:"ts"`
	GHI        sql.NullFloat64 `db:"ghi"`
	DNI        sql.NullFloat64 `db:"dni"`
	DHI        sql.NullFloat64 `db:"dhi"`
	TempAir    sql.NullFloat64 `db:"temp_air"`
	WindSpeed  sql.NullFloat64 `db:"wind_speed"`
	CloudCover sql.NullFloat64 `db:"cloud_cover"`
}

// LoadWeather reconstructs a weather table from an archived dataset.
func (a *Archive) LoadWeather(ctx context.Context, dataset string) (*weather.Table, error) {
	var dbRows []weatherRow
	err := a.db.SelectContext(ctx, &dbRows, `
		SELECT ts, ghi, dni, dhi, temp_air, wind_speed, cloud_cover
		FROM weather_observations WHERE dataset = $1 ORDER BY ts`, dataset)
	if err != nil {
		return nil, fmt.Errorf("loading weather dataset %s: %w", dataset, err)
	}
	if len(dbRows) == 0 {
		return nil, fmt.Errorf("weather dataset %s not found", dataset)
	}

	rows := make([]weather.Row, 0, len(dbRows))
	for _, dr := range dbRows {
		row := weather.EmptyRow(dr.TS)
		row.GHI = floatOrNaN(dr.GHI)
		row.DNI = floatOrNaN(dr.DNI)
		row.DHI = floatOrNaN(dr.DHI)
		row.TempAir = floatOrNaN(dr.TempAir)
		row.WindSpeed = floatOrNaN(dr.WindSpeed)
		row.CloudCover = floatOrNaN(dr.CloudCover)
		rows = append(rows, row)
	}
	return weather.New(rows)
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
