package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-timeline/internal/metrics"
	"github.com/i474232898/weather-timeline/internal/weather"
	"github.com/sony/gobreaker"
)

// Weatherstack endpoint names.
const (
	EndpointCurrent    = "current"
	EndpointHistorical = "historical"
	EndpointForecast   = "forecast"
)

// WeatherstackProvider implements weather.Source for the weatherstack API.
// Every call is attempted exactly once.
type WeatherstackProvider struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ weather.Source = (*WeatherstackProvider)(nil)

func NewWeatherstackProvider(client *http.Client, baseURL, apiKey string) *WeatherstackProvider {
	return &WeatherstackProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breakers: map[string]*gobreaker.CircuitBreaker{
			EndpointCurrent:    newBreaker("weatherstack-" + EndpointCurrent),
			EndpointHistorical: newBreaker("weatherstack-" + EndpointHistorical),
			EndpointForecast:   newBreaker("weatherstack-" + EndpointForecast),
		},
	}
}

// envelope is the union of all weatherstack response shapes. A response is
// a failure only when success is explicitly false or error is populated.
type envelope struct {
	Success *bool `json:"success,omitempty"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error,omitempty"`

	Location   *weather.Place               `json:"location,omitempty"`
	Current    *weather.CurrentWeather      `json:"current,omitempty"`
	Historical map[string]weather.DayRecord `json:"historical,omitempty"`
	Forecast   map[string]weather.DayRecord `json:"forecast,omitempty"`
}

func (e envelope) apiError() error {
	if e.Error != nil {
		return &APIError{Code: e.Error.Code, Type: e.Error.Type, Info: e.Error.Info}
	}
	if e.Success != nil && !*e.Success {
		return &APIError{}
	}
	return nil
}

func (p *WeatherstackProvider) Current(ctx context.Context, query string) (weather.CurrentReport, error) {
	env, err := p.call(ctx, EndpointCurrent, url.Values{"query": {query}})
	if err != nil {
		return weather.CurrentReport{}, err
	}
	return weather.CurrentReport{Location: env.Location, Current: env.Current}, nil
}

func (p *WeatherstackProvider) Historical(ctx context.Context, query, start, end string) (map[string]weather.DayRecord, error) {
	env, err := p.call(ctx, EndpointHistorical, url.Values{
		"query":                 {query},
		"historical_date_start": {start},
		"historical_date_end":   {end},
		"hourly":                {"1"},
		"interval":              {"1"},
	})
	if err != nil {
		return nil, err
	}
	return env.Historical, nil
}

func (p *WeatherstackProvider) Forecast(ctx context.Context, query string, days int) (map[string]weather.DayRecord, error) {
	env, err := p.call(ctx, EndpointForecast, url.Values{
		"query":         {query},
		"forecast_days": {strconv.Itoa(days)},
		"hourly":        {"1"},
		"interval":      {"1"},
	})
	if err != nil {
		return nil, err
	}
	return env.Forecast, nil
}

func (p *WeatherstackProvider) call(ctx context.Context, endpoint string, params url.Values) (env envelope, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordUpstream(endpoint, outcome(err), time.Since(start))
	}()

	params.Set("access_key", p.apiKey)
	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, params.Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return env, &NetworkError{Endpoint: endpoint, Err: redact(err)}
	}

	resp, err := doRequest(ctx, p.client, p.breakers[endpoint], req)
	if err != nil {
		return env, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil {
			if apiErr := env.apiError(); apiErr != nil {
				return env, apiErr
			}
		}
		return env, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if decodeErr != nil {
		return env, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if apiErr := env.apiError(); apiErr != nil {
		return env, apiErr
	}
	return env, nil
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "network_error"
	}
}
