package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-timeline/internal/weather"
)

var validate = validator.New()

// Looker serves combined weather for a query.
type Looker interface {
	Lookup(ctx context.Context, query string) (weather.CombinedWeather, error)
}

// Fetcher produces uncached combined weather for a query.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (weather.CombinedWeather, error)
}

// weatherResponse is the combined weather plus the day selected for display.
type weatherResponse struct {
	weather.CombinedWeather
	SelectedDate string              `json:"selectedDate,omitempty"`
	Selected     *weather.DaySummary `json:"selected,omitempty"`
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. today supplies
// the current date used to pick the default selected day.
func RegisterRoutes(app *fiber.App, cached Looker, live Fetcher, today func() time.Time) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		combined, err := cached.Lookup(c.UserContext(), q.Query)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(respond(combined, q.Date, today()))
	})

	v1.Get("/weather/live", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		combined, err := live.Fetch(c.UserContext(), q.Query)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(respond(combined, q.Date, today()))
	})
}

// RegisterMetrics exposes Prometheus metrics at /metrics.
func RegisterMetrics(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func respond(combined weather.CombinedWeather, date string, today time.Time) weatherResponse {
	resp := weatherResponse{CombinedWeather: combined}
	if day, ok := weather.SelectDay(combined, date, today); ok {
		resp.SelectedDate = day.Date
		resp.Selected = &day
	}
	return resp
}

// weatherQuery holds query parameters for the weather endpoints.
type weatherQuery struct {
	Query string `validate:"required,max=200"`
	Date  string `validate:"omitempty,datetime=2006-01-02"`
}

func parseWeatherQuery(c *fiber.Ctx) (weatherQuery, error) {
	q := weatherQuery{
		Query: strings.TrimSpace(c.Query("query")),
		Date:  c.Query("date"),
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
