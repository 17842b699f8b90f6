package weather

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// middayIndex picks the hourly entry used as a day's representative sample.
const middayIndex = 12

// synthOffsets are the day offsets filled from the current snapshot when
// neither history nor forecast is available.
var synthOffsets = []int{-3, -2, -1, 1, 2, 3}

// ErrCurrentFailed is the fallback failure when the current-conditions call
// failed without a usable message.
var ErrCurrentFailed = errors.New("Current weather API failed")

// dayOf formats the calendar date offset days from today, in today's location.
func dayOf(today time.Time, offset int) string {
	y, m, d := today.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, today.Location()).Format(DateLayout)
}

// Summarize normalizes an upstream day record using its midday hourly entry.
func Summarize(date string, rec DayRecord) DaySummary {
	day := DaySummary{
		Date:    date,
		AvgTemp: deref(rec.AvgTemp),
	}
	if len(rec.Hourly) > middayIndex {
		h := rec.Hourly[middayIndex]
		day.Precip = deref(h.Precip)
		day.Description = first(h.Descriptions)
		day.Icon = first(h.Icons)
		day.Wind = deref(h.WindSpeed)
		day.Pressure = deref(h.Pressure)
	}
	return day
}

// summarizeCurrent builds a day entry from the current snapshot.
func summarizeCurrent(date string, c CurrentWeather) DaySummary {
	return DaySummary{
		Date:        date,
		AvgTemp:     c.Temperature,
		Precip:      c.Precip,
		Description: c.Description(),
		Icon:        c.Icon(),
		Wind:        c.WindSpeed,
		Pressure:    c.Pressure,
	}
}

// timeline accumulates days keyed by date.
type timeline struct {
	days  []DaySummary
	index map[string]int
}

func newTimeline() *timeline {
	return &timeline{index: make(map[string]int)}
}

func (t *timeline) has(date string) bool {
	_, ok := t.index[date]
	return ok
}

// add appends day unless its date is already present.
func (t *timeline) add(day DaySummary) {
	if t.has(day.Date) {
		return
	}
	t.index[day.Date] = len(t.days)
	t.days = append(t.days, day)
}

// put appends day, replacing any existing entry with the same date.
func (t *timeline) put(day DaySummary) {
	if i, ok := t.index[day.Date]; ok {
		t.days[i] = day
		return
	}
	t.add(day)
}

func (t *timeline) sorted() []DaySummary {
	out := make([]DaySummary, len(t.days))
	copy(out, t.days)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// sortedDates returns the keys of recs in ascending order.
func sortedDates(recs map[string]DayRecord) []string {
	dates := make([]string, 0, len(recs))
	for d := range recs {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Merge combines the three settled sub-call outcomes into a CombinedWeather.
// The current-conditions outcome decides success; history and forecast
// failures only mark the result as partial.
func Merge(
	query string,
	today time.Time,
	current FetchResult[CurrentReport],
	history FetchResult[map[string]DayRecord],
	forecast FetchResult[map[string]DayRecord],
) (CombinedWeather, error) {
	if !current.OK() {
		if msg := current.Err.Error(); strings.TrimSpace(msg) != "" {
			return CombinedWeather{}, current.Err
		}
		return CombinedWeather{}, ErrCurrentFailed
	}

	todayKey := dayOf(today, 0)
	tl := newTimeline()

	if history.OK() {
		for _, date := range sortedDates(history.Value) {
			tl.add(Summarize(date, history.Value[date]))
		}
	}

	cur := current.Value.Current
	if cur != nil {
		tl.put(summarizeCurrent(todayKey, *cur))
	}

	if forecast.OK() {
		for _, date := range sortedDates(forecast.Value) {
			tl.add(Summarize(date, forecast.Value[date]))
		}
	}

	if len(tl.days) == 1 && cur != nil {
		for _, offset := range synthOffsets {
			day := summarizeCurrent(dayOf(today, offset), *cur)
			day.Synthetic = true
			tl.add(day)
		}
	}

	return CombinedWeather{
		Location: LocationLabel(current.Value.Location, query),
		Current:  cur,
		Days:     tl.sorted(),
		Partial:  !history.OK() || !forecast.OK(),
	}, nil
}

// LocationLabel renders "name[, region][, country]", skipping empty parts.
// It falls back to query when the place is missing or blank.
func LocationLabel(p *Place, query string) string {
	if p == nil {
		return query
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Region, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return query
	}
	return strings.Join(parts, ", ")
}

// SelectDay picks the day to display: the requested date when present,
// otherwise today, otherwise the middle entry. It returns false for an
// empty timeline.
func SelectDay(c CombinedWeather, requested string, today time.Time) (DaySummary, bool) {
	if len(c.Days) == 0 {
		return DaySummary{}, false
	}
	if requested != "" {
		if d, ok := c.Day(requested); ok {
			return d, true
		}
	}
	if d, ok := c.Day(dayOf(today, 0)); ok {
		return d, true
	}
	return c.Days[len(c.Days)/2], true
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
