package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"pvsimulator/internal/model"
)

// DefaultOpenMeteoURL is the Open-Meteo historical archive endpoint.
const DefaultOpenMeteoURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteoClient fetches hourly historical weather from the Open-Meteo
// archive API, optionally through a file cache.
type OpenMeteoClient struct {
	BaseURL string
	HTTP    *http.Client
	Cache   *Cache
	Log     *logrus.Entry
}

// NewOpenMeteoClient returns a client with a 30 s timeout. cache may be
// nil to fetch uncached.
func NewOpenMeteoClient(cache *Cache, log *logrus.Entry) *OpenMeteoClient {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OpenMeteoClient{
		BaseURL: DefaultOpenMeteoURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Cache:   cache,
		Log:     log.WithField("component", "openmeteo"),
	}
}

// hourly variables requested, in the order Open-Meteo echoes them back.
var openMeteoVariables = "shortwave_radiation,direct_normal_irradiance,diffuse_radiation," +
	"temperature_2m,wind_speed_10m,cloud_cover"

type openMeteoResponse struct {
	Hourly struct {
		Time                   []string   `json:"time"`
		ShortwaveRadiation     []*float64 `json:"shortwave_radiation"`
		DirectNormalIrradiance []*float64 `json:"direct_normal_irradiance"`
		DiffuseRadiation       []*float64 `json:"diffuse_radiation"`
		Temperature2M          []*float64 `json:"temperature_2m"`
		WindSpeed10M           []*float64 `json:"wind_speed_10m"`
		CloudCover             []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// FetchHistorical returns an hourly weather table for the location over
// [start, end] (dates, inclusive). Timestamps come back in UTC.
func (c *OpenMeteoClient) FetchHistorical(ctx context.Context, loc model.Location, start, end time.Time) (*Table, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("hourly", openMeteoVariables)
	q.Set("wind_speed_unit", "ms")
	q.Set("timezone", "UTC")
	reqURL := c.BaseURL + "?" + q.Encode()

	var resp openMeteoResponse
	if c.Cache != nil && c.Cache.Get(reqURL, &resp) {
		c.Log.WithField("url", reqURL).Debug("cache hit")
		return openMeteoToTable(resp)
	}

	body, err := c.fetchWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing Open-Meteo response: %w", err)
	}
	if c.Cache != nil {
		if err := c.Cache.Put(reqURL, &resp); err != nil {
			c.Log.WithError(err).Warn("failed to cache response")
		}
	}
	return openMeteoToTable(resp)
}

type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.message)
}

func isRetryable(err error) bool {
	ae, ok := err.(*apiError)
	if !ok {
		return true // network errors are retryable
	}
	return ae.statusCode == 429 || ae.statusCode >= 500
}

func (c *OpenMeteoClient) fetchWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var body []byte
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		body, err = c.doRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		c.Log.WithError(err).WithField("wait", wait.String()).Warn("retrying Open-Meteo request")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("after 5 attempts: %w", err)
}

func (c *OpenMeteoClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apiError{statusCode: resp.StatusCode, message: string(body)}
	}
	return body, nil
}

func openMeteoToTable(resp openMeteoResponse) (*Table, error) {
	h := resp.Hourly
	rows := make([]Row, 0, len(h.Time))
	for i, tstr := range h.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", tstr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing Open-Meteo timestamp %q: %w", tstr, err)
		}
		row := EmptyRow(ts)
		row.GHI = deref(h.ShortwaveRadiation, i)
		row.DNI = deref(h.DirectNormalIrradiance, i)
		row.DHI = deref(h.DiffuseRadiation, i)
		row.TempAir = deref(h.Temperature2M, i)
		row.WindSpeed = deref(h.WindSpeed10M, i)
		row.CloudCover = deref(h.CloudCover, i)
		rows = append(rows, row)
	}
	return New(rows, AllColumns...)
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}
