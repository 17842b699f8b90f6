package weather

// DateLayout is the calendar date format used for day keys.
const DateLayout = "2006-01-02"

// CurrentWeather is an instantaneous conditions snapshot.
type CurrentWeather struct {
	Temperature  float64  `json:"temperature"`
	FeelsLike    float64  `json:"feelslike"`
	Descriptions []string `json:"weather_descriptions"`
	Icons        []string `json:"weather_icons"`
	WindSpeed    float64  `json:"wind_speed"` // km/h
	WindDir      string   `json:"wind_dir"`
	Humidity     float64  `json:"humidity"`
	Pressure     float64  `json:"pressure"` // mb
	Precip       float64  `json:"precip"`   // mm
	UVIndex      float64  `json:"uv_index"`
	Visibility   float64  `json:"visibility"`
}

// Description returns the first description, or "" when none.
func (c CurrentWeather) Description() string {
	if len(c.Descriptions) == 0 {
		return ""
	}
	return c.Descriptions[0]
}

// Icon returns the first icon reference, or "" when none.
func (c CurrentWeather) Icon() string {
	if len(c.Icons) == 0 {
		return ""
	}
	return c.Icons[0]
}

// DaySummary is one calendar day of weather.
type DaySummary struct {
	Date        string  `json:"date"`
	AvgTemp     float64 `json:"avgtemp"`
	Precip      float64 `json:"precip"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Wind        float64 `json:"wind"`
	Pressure    float64 `json:"pressure"`

	// Synthetic marks placeholder days built from the current snapshot.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Place is the location record reported by the upstream.
type Place struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// CombinedWeather is the merged day-by-day view for one query.
// Days are sorted ascending by Date with no duplicates.
type CombinedWeather struct {
	Location string          `json:"location"`
	Current  *CurrentWeather `json:"current"`
	Days     []DaySummary    `json:"days"`

	// Partial is set when historical or forecast data could not be fetched.
	Partial bool `json:"partial"`
}

// Day returns the summary for date, if present.
func (c CombinedWeather) Day(date string) (DaySummary, bool) {
	for _, d := range c.Days {
		if d.Date == date {
			return d, true
		}
	}
	return DaySummary{}, false
}
