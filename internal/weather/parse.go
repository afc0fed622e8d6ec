package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	notFoundCityMessage = "Error: Not found city"
	noStationsMessage   = "No weather stations nearby"
	upstreamErrorPrefix = "Error: "
	serviceErrorPrefix  = "Weather service error: "
)

type object map[string]json.RawMessage

// ParseJSON turns an OpenWeatherMap style current-weather payload into an
// Observation. Timestamps are converted into loc; a nil loc means
// time.Local. All failures are returned as *ParseError.
func ParseJSON(data []byte, loc *time.Location) (*Observation, error) {
	if loc == nil {
		loc = time.Local
	}

	root, err := decodeObject(data)
	if err != nil {
		return nil, newMalformedPayload(err)
	}

	if raw, ok := root.field("message"); ok {
		return nil, classifyMessage(textValue(raw))
	}

	var opts []Option

	if raw, ok := root.field("dt"); ok {
		seconds, ok := numberValue(raw)
		if !ok {
			return nil, newMalformedPayload(fmt.Errorf("dt: not a number: %s", raw))
		}
		opts = append(opts, WithObservedAt(time.Unix(int64(seconds), 0).In(loc)))
	}

	station := ""
	if raw, ok := root.field("name"); ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, newMalformedPayload(fmt.Errorf("name: %w", err))
		}
		if pretty, ok := PrettifyStationName(name); ok {
			station = pretty
			opts = append(opts, WithStation(pretty))
		}
	}

	celsius, perr := parseTemperature(root, station)
	if perr != nil {
		return nil, perr
	}

	knots := 0.0
	if raw, ok := root.field("wind"); ok {
		wind, err := decodeObject(raw)
		if err != nil {
			return nil, newMalformedPayload(fmt.Errorf("wind: %w", err))
		}
		if speed, ok := wind.field("speed"); ok {
			mps, ok := numberValue(speed)
			if !ok {
				return nil, newMalformedPayload(fmt.Errorf("wind.speed: not a number: %s", speed))
			}
			knots = mps * knotsPerMPS
		}
	}

	return NewObservation(celsius, knots, opts...), nil
}

func parseTemperature(root object, station string) (float64, *ParseError) {
	raw, ok := root.field("main")
	if !ok {
		return 0, newMissingTemperature(station)
	}
	main, err := decodeObject(raw)
	if err != nil {
		return 0, newMalformedPayload(fmt.Errorf("main: %w", err))
	}
	temp, ok := main.field("temp")
	if !ok {
		return 0, newMissingTemperature(station)
	}
	kelvin, ok := numberValue(temp)
	if !ok {
		return 0, newMalformedTemperature(textValue(temp), station)
	}
	return kelvin - kelvinOffset, nil
}

func classifyMessage(message string) *ParseError {
	if message == notFoundCityMessage {
		return &ParseError{Kind: NoStationsNearby, Message: noStationsMessage}
	}
	if strings.HasPrefix(message, upstreamErrorPrefix) {
		message = serviceErrorPrefix + strings.TrimPrefix(message, upstreamErrorPrefix)
	}
	return &ParseError{Kind: UpstreamMessage, Message: message}
}

func decodeObject(data []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	return obj, nil
}

// field returns the named member, treating JSON null as absent.
func (o object) field(name string) (json.RawMessage, bool) {
	raw, ok := o[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// numberValue accepts JSON numbers and strings holding a finite number.
func numberValue(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// textValue returns the string content of raw, or the raw JSON text when it
// is not a string.
func textValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
