package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"weather-widget/internal/presenter"
	"weather-widget/internal/weather"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ObservationRecord{}, &LogEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) SaveObservation(obs *weather.Observation, shown presenter.Result, fetchedAt time.Time) error {
	record := &ObservationRecord{
		FetchedAt:    fetchedAt,
		TemperatureC: obs.Celsius(),
		WindKnots:    obs.WindKnots(),
		Temperature:  shown.Temperature,
		Subtext:      shown.Subtext,
	}
	if station, ok := obs.Station(); ok {
		record.StationName = &station
	}
	if at, ok := obs.ObservedAt(); ok {
		record.ObservedAt = &at
	}

	return d.db.Create(record).Error
}

func (d *Database) GetLatestObservation() (*ObservationRecord, error) {
	var record ObservationRecord
	result := d.db.Order("fetched_at desc").First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

func (d *Database) GetObservationsWithLimit(limit int) ([]ObservationRecord, error) {
	var records []ObservationRecord
	result := d.db.Order("fetched_at desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (d *Database) CleanOldObservations(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return d.db.Where("fetched_at < ?", cutoff).Delete(&ObservationRecord{}).Error
}

func (d *Database) AddLog(level, message string) error {
	return d.db.Create(&LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}).Error
}

// GetLogs returns the newest entries first.
func (d *Database) GetLogs(limit int) ([]LogEntry, error) {
	var entries []LogEntry
	result := d.db.Order("timestamp desc, id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

func (d *Database) CleanOldLogs(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return d.db.Where("timestamp < ?", cutoff).Delete(&LogEntry{}).Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Observation rebuilds the domain value from a stored record.
func (r *ObservationRecord) Observation() *weather.Observation {
	var opts []weather.Option
	if r.StationName != nil {
		opts = append(opts, weather.WithStation(*r.StationName))
	}
	if r.ObservedAt != nil {
		opts = append(opts, weather.WithObservedAt(r.ObservedAt.In(time.Local)))
	}
	return weather.NewObservation(r.TemperatureC, r.WindKnots, opts...)
}
