package weather

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	NoStationsNearby ErrorKind = iota + 1
	UpstreamMessage
	MissingTemperature
	MalformedTemperature
	MalformedPayload
)

var (
	ErrNoStationsNearby     = errors.New("no weather stations nearby")
	ErrUpstream             = errors.New("weather service error")
	ErrMissingTemperature   = errors.New("missing temperature")
	ErrMalformedTemperature = errors.New("malformed temperature")
	ErrMalformedPayload     = errors.New("malformed payload")
)

func (k ErrorKind) String() string {
	switch k {
	case NoStationsNearby:
		return "no_stations_nearby"
	case UpstreamMessage:
		return "upstream_message"
	case MissingTemperature:
		return "missing_temperature"
	case MalformedTemperature:
		return "malformed_temperature"
	case MalformedPayload:
		return "malformed_payload"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case NoStationsNearby:
		return ErrNoStationsNearby
	case UpstreamMessage:
		return ErrUpstream
	case MissingTemperature:
		return ErrMissingTemperature
	case MalformedTemperature:
		return ErrMalformedTemperature
	case MalformedPayload:
		return ErrMalformedPayload
	default:
		return nil
	}
}

// ParseError is a classified failure to turn a payload into an Observation.
// Error returns text suitable for showing to the user as-is.
type ParseError struct {
	Kind    ErrorKind
	Message string
	// Raw is the unparsable temperature value for MalformedTemperature.
	Raw string
	// Station is the prettified station name, when known.
	Station string
	Err     error
}

func (e *ParseError) Error() string {
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func fromStation(station string) string {
	if station == "" {
		return ""
	}
	return " from " + station
}

func newMissingTemperature(station string) *ParseError {
	return &ParseError{
		Kind:    MissingTemperature,
		Message: "No temperature in weather data" + fromStation(station),
		Station: station,
	}
}

func newMalformedTemperature(raw, station string) *ParseError {
	return &ParseError{
		Kind:    MalformedTemperature,
		Message: fmt.Sprintf("Unparsable temperature %q", raw) + fromStation(station),
		Raw:     raw,
		Station: station,
	}
}

func newMalformedPayload(err error) *ParseError {
	return &ParseError{
		Kind:    MalformedPayload,
		Message: "Malformed weather data",
		Err:     err,
	}
}
