package weather

import (
	"math"
	"testing"
	"time"
)

var referenceTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestAgeMinutes(t *testing.T) {
	tests := []struct {
		name     string
		observed time.Time
		want     int64
	}{
		{"same instant", referenceTime, 0},
		{"just under a minute", referenceTime.Add(-59 * time.Second), 0},
		{"ten minutes", referenceTime.Add(-10 * time.Minute), 10},
		{"ten and a half minutes", referenceTime.Add(-10*time.Minute - 30*time.Second), 10},
		{"server ahead by seconds", referenceTime.Add(30 * time.Second), -1},
		{"server ahead by five minutes", referenceTime.Add(5 * time.Minute), -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewObservation(0, 0, WithObservedAt(tt.observed))
			if got := obs.AgeMinutes(referenceTime); got != tt.want {
				t.Errorf("AgeMinutes() = %d; want %d", got, tt.want)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		obs := NewObservation(0, 0)
		if got := obs.AgeMinutes(referenceTime); got != AgeUnknown {
			t.Errorf("AgeMinutes() = %d; want AgeUnknown", got)
		}
	})
}

func TestWindChill(t *testing.T) {
	tests := []struct {
		name    string
		celsius float64
		knots   float64
		want    float64
	}{
		{"too warm", 10.5, 30, 10.5},
		{"calm", 10, 0, 10},
		{"below wind threshold", -5, 2.59, -5},
		{"ten knots at ten degrees", 10, 10, 7.524384},
		{"ten m/s at ten degrees", 10, 10 * knotsPerMPS, 6.200474},
		{"ten m/s at zero", 0, 10 * knotsPerMPS, -7.047396},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindChill(tt.celsius, tt.knots); math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("WindChill(%v, %v) = %v; want %v", tt.celsius, tt.knots, got, tt.want)
			}
		})
	}
}

func TestObservationDegrees(t *testing.T) {
	obs := NewObservation(0, 10*knotsPerMPS)

	if got := obs.Centigrades(false); got != 0 {
		t.Errorf("Centigrades(false) = %d; want 0", got)
	}
	if got := obs.Centigrades(true); got != -7 {
		t.Errorf("Centigrades(true) = %d; want -7", got)
	}
	if got := obs.Fahrenheit(false); got != 32 {
		t.Errorf("Fahrenheit(false) = %d; want 32", got)
	}
	// -7.047 C is 19.31 F; converting first would give a different number.
	if got := obs.Fahrenheit(true); got != 19 {
		t.Errorf("Fahrenheit(true) = %d; want 19", got)
	}
}

func TestCentigradesRoundsHalfAwayFromZero(t *testing.T) {
	if got := NewObservation(2.5, 0).Centigrades(false); got != 3 {
		t.Errorf("Centigrades(2.5) = %d; want 3", got)
	}
	if got := NewObservation(-2.5, 0).Centigrades(false); got != -3 {
		t.Errorf("Centigrades(-2.5) = %d; want -3", got)
	}
}

func TestTryReplace(t *testing.T) {
	fresh := NewObservation(1, 0, WithObservedAt(referenceTime.Add(-5*time.Minute)))
	older := NewObservation(2, 0, WithObservedAt(referenceTime.Add(-20*time.Minute)))
	sameAge := NewObservation(3, 0, WithObservedAt(referenceTime.Add(-5*time.Minute)))
	undated := NewObservation(4, 0)

	tests := []struct {
		name      string
		current   *Observation
		candidate *Observation
		want      *Observation
	}{
		{"nothing held", nil, older, older},
		{"nil candidate", fresh, nil, fresh},
		{"fresher wins", older, fresh, fresh},
		{"older loses", fresh, older, fresh},
		{"equal age loses", fresh, sameAge, fresh},
		{"undated never replaces", fresh, undated, fresh},
		{"dated replaces undated", undated, older, older},
		{"undated does not replace undated", undated, NewObservation(5, 0), undated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TryReplace(tt.current, tt.candidate, referenceTime); got != tt.want {
				t.Errorf("TryReplace() = %p; want %p", got, tt.want)
			}
		})
	}
}

func TestWithStationIgnoresEmpty(t *testing.T) {
	if _, ok := NewObservation(0, 0, WithStation("")).Station(); ok {
		t.Error("Station() ok = true after WithStation(\"\"); want false")
	}
}
