package weather

import (
	"context"
)

// HourlySnapshot is one hourly entry of an upstream day record.
// Every field is optional; absent values normalize to zero or "".
type HourlySnapshot struct {
	Time         string   `json:"time,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Precip       *float64 `json:"precip,omitempty"`
	Descriptions []string `json:"weather_descriptions,omitempty"`
	Icons        []string `json:"weather_icons,omitempty"`
	WindSpeed    *float64 `json:"wind_speed,omitempty"`
	Pressure     *float64 `json:"pressure,omitempty"`
}

// DayRecord is an upstream historical or forecast day keyed by date.
type DayRecord struct {
	Date    string           `json:"date,omitempty"`
	AvgTemp *float64         `json:"avgtemp,omitempty"`
	MinTemp *float64         `json:"mintemp,omitempty"`
	MaxTemp *float64         `json:"maxtemp,omitempty"`
	Hourly  []HourlySnapshot `json:"hourly,omitempty"`
}

// CurrentReport is the payload of a current-conditions lookup.
type CurrentReport struct {
	Location *Place          `json:"location,omitempty"`
	Current  *CurrentWeather `json:"current,omitempty"`
}

// Source abstracts the upstream weather API (e.g. weatherstack).
// Each call is independent; implementations must not retry.
type Source interface {
	Current(ctx context.Context, query string) (CurrentReport, error)
	Historical(ctx context.Context, query, start, end string) (map[string]DayRecord, error)
	Forecast(ctx context.Context, query string, days int) (map[string]DayRecord, error)
}

// FetchResult is the settled outcome of a single sub-call.
type FetchResult[T any] struct {
	Value T
	Err   error
}

// OK reports whether the sub-call succeeded.
func (r FetchResult[T]) OK() bool {
	return r.Err == nil
}

func settle[T any](v T, err error) FetchResult[T] {
	return FetchResult[T]{Value: v, Err: err}
}
