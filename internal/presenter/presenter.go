// Package presenter turns an observation into the two strings shown on the
// widget: a short temperature and a status line.
package presenter

import (
	"strconv"
	"time"

	"weather-widget/internal/weather"
)

// StaleAfterMinutes is the age beyond which the excuse replaces the subtext.
const StaleAfterMinutes = 150

const (
	degreeMark    = "°"
	windChillMark = "*"
	noTemperature = "--"
)

type Options struct {
	ShowMetadata   bool `json:"show_metadata"`
	Use24HourClock bool `json:"use_24h_clock"`
	UseCelsius     bool `json:"use_celsius"`
	ApplyWindChill bool `json:"wind_chill"`
	ForceExcuse    bool `json:"force_excuse"`
}

func DefaultOptions() Options {
	return Options{
		Use24HourClock: true,
		UseCelsius:     true,
	}
}

type Result struct {
	Temperature string `json:"temperature"`
	Subtext     string `json:"subtext"`
}

// Present computes what the widget should show. obs may be nil.
func Present(obs *weather.Observation, excuse string, opts Options, now time.Time) Result {
	if obs == nil {
		return Result{
			Temperature: noTemperature + degreeMark,
			Subtext:     excuse,
		}
	}

	subtext := ""
	if opts.ShowMetadata {
		subtext = metadata(obs, opts.Use24HourClock, now.Location())
	}
	if obs.AgeMinutes(now) > StaleAfterMinutes || opts.ForceExcuse {
		subtext = excuse
	}

	return Result{
		Temperature: temperature(obs, opts),
		Subtext:     subtext,
	}
}

func temperature(obs *weather.Observation, opts Options) string {
	degrees := func(windChill bool) int {
		if opts.UseCelsius {
			return obs.Centigrades(windChill)
		}
		return obs.Fahrenheit(windChill)
	}

	shown := degrees(opts.ApplyWindChill)
	mark := degreeMark
	if shown != degrees(false) {
		mark = windChillMark
	}
	return strconv.Itoa(shown) + mark
}

func metadata(obs *weather.Observation, use24h bool, loc *time.Location) string {
	text := ""
	if at, ok := obs.ObservedAt(); ok {
		text = FormatClock(at.In(loc), use24h)
	}
	if station, ok := obs.Station(); ok {
		if text != "" {
			text += " "
		}
		text += station
	}
	return text
}

// FormatClock renders t as "15:04", or "3:04 PM" for a 12 hour clock.
func FormatClock(t time.Time, use24h bool) string {
	if use24h {
		return t.Format("15:04")
	}
	return t.Format("3:04 PM")
}
