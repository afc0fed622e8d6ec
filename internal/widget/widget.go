package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-widget/internal/presenter"
	"weather-widget/internal/weather"
)

var ErrFetchInProgress = errors.New("weather fetch already in progress")

const (
	waitingExcuse     = "Waiting for weather data"
	fetchFailedExcuse = "Weather fetch failed"
	unknownAgeExcuse  = "Observation time unknown"
)

type Publisher interface {
	Publish(shown presenter.Result, obs *weather.Observation) error
}

type Store interface {
	SaveObservation(obs *weather.Observation, shown presenter.Result, fetchedAt time.Time) error
	AddLog(level, message string) error
}

type Widget struct {
	provider  weather.Provider
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	tickInterval    time.Duration
	minValidity     time.Duration
	maxValidity     time.Duration
	failureCooldown time.Duration

	fetchMu sync.Mutex
	// publishMu orders renders so the last published result is w.shown.
	publishMu sync.Mutex

	mu            sync.RWMutex
	state         State
	cooldownUntil time.Time
	options       presenter.Options
	current       *weather.Observation
	lastErr       error
	lastFetch     time.Time
	shown         presenter.Result
	hasShown      bool
	isRunning     bool
}

type Config struct {
	Provider  weather.Provider
	Store     Store
	Publisher Publisher
	Options   presenter.Options
	// Initial is an observation restored from storage, may be nil.
	Initial *weather.Observation

	TickInterval    time.Duration
	MinValidity     time.Duration
	MaxValidity     time.Duration
	FailureCooldown time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Status is a consistent snapshot of the widget.
type Status struct {
	State         string               `json:"state"`
	CooldownUntil *time.Time           `json:"cooldown_until,omitempty"`
	Shown         presenter.Result     `json:"shown"`
	Excuse        string               `json:"excuse"`
	Options       presenter.Options    `json:"options"`
	LastFetch     *time.Time           `json:"last_fetch,omitempty"`
	LastError     string               `json:"last_error,omitempty"`
	AgeMinutes    *int64               `json:"age_minutes,omitempty"`
	Running       bool                 `json:"running"`
	Observation   *weather.Observation `json:"-"`
}

func New(cfg Config) *Widget {
	w := &Widget{
		provider:        cfg.Provider,
		store:           cfg.Store,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		now:             cfg.Now,
		tickInterval:    cfg.TickInterval,
		minValidity:     cfg.MinValidity,
		maxValidity:     cfg.MaxValidity,
		failureCooldown: cfg.FailureCooldown,
		options:         cfg.Options,
		current:         cfg.Initial,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.tickInterval <= 0 {
		w.tickInterval = time.Minute
	}
	if w.minValidity <= 0 {
		w.minValidity = 30 * time.Minute
	}
	if w.maxValidity < w.minValidity {
		w.maxValidity = w.minValidity
	}
	if w.failureCooldown <= 0 {
		w.failureCooldown = 5 * time.Minute
	}
	return w
}

// Start runs the fetch and refresh loop until ctx is cancelled.
func (w *Widget) Start(ctx context.Context) error {
	w.mu.Lock()
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("starting widget scheduler", "tick", w.tickInterval)

	w.Tick(ctx)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("widget scheduler stopped")
			w.mu.Lock()
			w.isRunning = false
			w.mu.Unlock()
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick advances the state machine: an expired cooldown returns to idle, and
// an idle widget starts a fetch. The presentation is refreshed either way so
// that age based text stays current.
func (w *Widget) Tick(ctx context.Context) {
	now := w.now()

	w.mu.Lock()
	if w.state == Cooldown && !now.Before(w.cooldownUntil) {
		w.state = Idle
		w.cooldownUntil = time.Time{}
	}
	shouldFetch := w.state == Idle
	w.mu.Unlock()

	if shouldFetch {
		if err := w.fetch(ctx); err != nil && !errors.Is(err, ErrFetchInProgress) {
			w.logger.Warn("weather fetch failed", "err", err)
		}
		return
	}

	w.render()
}

// Refresh fetches now regardless of any cooldown.
func (w *Widget) Refresh(ctx context.Context) error {
	return w.fetch(ctx)
}

func (w *Widget) fetch(ctx context.Context) error {
	if !w.fetchMu.TryLock() {
		return ErrFetchInProgress
	}
	defer w.fetchMu.Unlock()

	if w.provider == nil {
		return fmt.Errorf("no weather provider configured")
	}

	w.mu.Lock()
	w.state = Fetching
	w.mu.Unlock()

	obs, err := w.provider.Get(ctx)
	now := w.now()

	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.lastFetch = now
		w.state = Cooldown
		w.cooldownUntil = now.Add(w.failureCooldown)
		w.mu.Unlock()

		w.addLog("warn", fmt.Sprintf("Fetch failed: %v", err))
		w.render()
		return err
	}

	w.mu.Lock()
	previous := w.current
	w.current = weather.TryReplace(previous, obs, now)
	accepted := w.current == obs && previous != obs
	validity := ValidityFor(w.current.AgeMinutes(now), w.minValidity, w.maxValidity)
	w.lastErr = nil
	w.lastFetch = now
	w.state = Cooldown
	w.cooldownUntil = now.Add(validity)
	w.mu.Unlock()

	shown := w.render()

	if !accepted {
		w.logger.Info("ignoring observation not newer than the current one",
			"age_minutes", obs.AgeMinutes(now))
		w.addLog("info", "Ignored observation that was not newer than the current one")
		return nil
	}

	station, _ := obs.Station()
	w.logger.Info("observation accepted",
		"celsius", obs.Celsius(),
		"wind_knots", obs.WindKnots(),
		"station", station,
		"valid_for", validity,
	)
	w.addLog("info", fmt.Sprintf("Got %s from %q, next fetch in %s", shown.Temperature, station, validity))

	if w.store != nil {
		if err := w.store.SaveObservation(obs, shown, now); err != nil {
			w.logger.Error("failed to save observation", "err", err)
		}
	}
	return nil
}

// SetOptions replaces the display options and re-renders.
func (w *Widget) SetOptions(opts presenter.Options) presenter.Result {
	w.mu.Lock()
	w.options = opts
	w.mu.Unlock()
	return w.render()
}

// UpdateOptions applies fn to the current options atomically and re-renders.
func (w *Widget) UpdateOptions(fn func(presenter.Options) presenter.Options) (presenter.Options, presenter.Result) {
	w.mu.Lock()
	opts := fn(w.options)
	w.options = opts
	w.mu.Unlock()
	return opts, w.render()
}

func (w *Widget) Options() presenter.Options {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.options
}

func (w *Widget) Observation() *weather.Observation {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Widget) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

func (w *Widget) Status() Status {
	now := w.now()

	w.mu.RLock()
	defer w.mu.RUnlock()

	excuse := w.excuseLocked(now)
	status := Status{
		State:       w.state.String(),
		Shown:       presenter.Present(w.current, excuse, w.options, now),
		Excuse:      excuse,
		Options:     w.options,
		Running:     w.isRunning,
		Observation: w.current,
	}
	if w.state == Cooldown {
		until := w.cooldownUntil
		status.CooldownUntil = &until
	}
	if !w.lastFetch.IsZero() {
		at := w.lastFetch
		status.LastFetch = &at
	}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	if w.current != nil {
		if age := w.current.AgeMinutes(now); age != weather.AgeUnknown {
			status.AgeMinutes = &age
		}
	}
	return status
}

// render recomputes the presentation and publishes it when it changed.
func (w *Widget) render() presenter.Result {
	w.publishMu.Lock()
	defer w.publishMu.Unlock()

	now := w.now()

	w.mu.Lock()
	obs := w.current
	shown := presenter.Present(obs, w.excuseLocked(now), w.options, now)
	changed := !w.hasShown || shown != w.shown
	w.shown = shown
	w.hasShown = true
	w.mu.Unlock()

	if changed && w.publisher != nil {
		if err := w.publisher.Publish(shown, obs); err != nil {
			w.logger.Warn("failed to publish widget state", "err", err)
		}
	}
	return shown
}

func (w *Widget) excuseLocked(now time.Time) string {
	if w.lastErr != nil {
		return Excuse(w.lastErr)
	}
	if w.current == nil {
		return waitingExcuse
	}
	return AgeExcuse(w.current, now)
}

// AgeExcuse describes how old obs is, e.g. "3 hours old".
func AgeExcuse(obs *weather.Observation, now time.Time) string {
	age := obs.AgeMinutes(now)
	if age == weather.AgeUnknown {
		return unknownAgeExcuse
	}
	return presenter.TimeOldString(age)
}

// Excuse turns a fetch error into a short status line. Parse errors are
// already worded for users; anything else gets a generic text.
func Excuse(err error) string {
	var pe *weather.ParseError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return fetchFailedExcuse
}

func (w *Widget) addLog(level, message string) {
	if w.store == nil {
		return
	}
	if err := w.store.AddLog(level, message); err != nil {
		w.logger.Error("failed to write event log", "err", err)
	}
}
