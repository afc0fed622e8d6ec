package storage

import (
	"time"

	"gorm.io/gorm"
)

type ObservationRecord struct {
	gorm.Model
	FetchedAt time.Time `gorm:"index" json:"fetched_at"`

	TemperatureC float64 `json:"temperature_c"`
	WindKnots    float64 `json:"wind_knots"`

	// Optional fields are nullable so absent and zero stay distinct.
	StationName *string    `json:"station_name,omitempty"`
	ObservedAt  *time.Time `gorm:"index" json:"observed_at,omitempty"`

	// What the widget showed when this observation was accepted
	Temperature string `json:"temperature"`
	Subtext     string `json:"subtext"`
}

type LogEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}
