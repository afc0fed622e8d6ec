package weather

import (
	"context"
	"math"
	"time"
)

// AgeUnknown is returned by AgeMinutes when the observation carries no
// timestamp. It compares larger than any real age.
const AgeUnknown int64 = math.MaxInt64

const (
	kelvinOffset      = 273.15
	knotsPerMPS       = 1.942615
	kmhPerKnot        = 1.85
	windChillMaxTempC = 10.0
	windChillMinKmh   = 4.8
)

type Provider interface {
	Get(ctx context.Context) (*Observation, error)
}

// Observation is a single parsed weather reading. It is never mutated after
// construction.
type Observation struct {
	celsius    float64
	windKnots  float64
	station    string
	hasStation bool
	observedAt time.Time
	hasTime    bool
}

type Option func(*Observation)

// WithStation sets the station name. Empty names are ignored.
func WithStation(name string) Option {
	return func(o *Observation) {
		if name == "" {
			return
		}
		o.station = name
		o.hasStation = true
	}
}

func WithObservedAt(t time.Time) Option {
	return func(o *Observation) {
		o.observedAt = t
		o.hasTime = true
	}
}

func NewObservation(celsius, windKnots float64, opts ...Option) *Observation {
	o := &Observation{celsius: celsius, windKnots: windKnots}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Observation) Celsius() float64   { return o.celsius }
func (o *Observation) WindKnots() float64 { return o.windKnots }

func (o *Observation) Station() (string, bool) {
	return o.station, o.hasStation
}

func (o *Observation) ObservedAt() (time.Time, bool) {
	return o.observedAt, o.hasTime
}

// AgeMinutes returns whole minutes between the observation time and now,
// rounded towards negative infinity. Negative values mean the server clock
// is ahead of ours.
func (o *Observation) AgeMinutes(now time.Time) int64 {
	if !o.hasTime {
		return AgeUnknown
	}
	d := now.Sub(o.observedAt)
	minutes := int64(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		minutes--
	}
	return minutes
}

// WindChilledCelsius returns the temperature adjusted for wind chill.
func (o *Observation) WindChilledCelsius() float64 {
	return WindChill(o.celsius, o.windKnots)
}

func (o *Observation) celsiusValue(windChill bool) float64 {
	if windChill {
		return o.WindChilledCelsius()
	}
	return o.celsius
}

func (o *Observation) Centigrades(windChill bool) int {
	return int(math.Round(o.celsiusValue(windChill)))
}

// Fahrenheit converts after any wind chill adjustment, which is always
// computed on Celsius values.
func (o *Observation) Fahrenheit(windChill bool) int {
	return int(math.Round(CelsiusToFahrenheit(o.celsiusValue(windChill))))
}

// WindChill applies the Environment Canada wind chill index. Outside its
// valid range the temperature is returned unchanged.
func WindChill(celsius, windKnots float64) float64 {
	windKmh := kmhPerKnot * windKnots
	if celsius > windChillMaxTempC || windKmh < windChillMinKmh {
		return celsius
	}
	v := math.Pow(windKmh, 0.16)
	return 13.12 + 0.6215*celsius - 11.37*v + 0.3965*celsius*v
}

func CelsiusToFahrenheit(celsius float64) float64 {
	return celsius*9/5 + 32
}

// TryReplace returns candidate if it is strictly fresher than current,
// otherwise current.
func TryReplace(current, candidate *Observation, now time.Time) *Observation {
	if candidate == nil {
		return current
	}
	if current == nil {
		return candidate
	}
	if candidate.AgeMinutes(now) < current.AgeMinutes(now) {
		return candidate
	}
	return current
}
