package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"weather-widget/internal/presenter"
	"weather-widget/internal/storage"
	"weather-widget/internal/weather"
	"weather-widget/internal/widget"

	"github.com/gin-gonic/gin"
)

const maxPreviewBytes = 1 << 20

type Server struct {
	router         *gin.Engine
	server         *http.Server
	widget         *widget.Widget
	db             *storage.Database
	port           int
	persistDisplay func(presenter.Options) error
	logger         *slog.Logger
}

type ServerConfig struct {
	Port     int
	Widget   *widget.Widget
	Database *storage.Database
	// PersistDisplay saves changed display options, may be nil.
	PersistDisplay func(presenter.Options) error
	Logger         *slog.Logger
}

// ObservationView is the JSON form of an observation.
type ObservationView struct {
	TemperatureC float64    `json:"temperature_c"`
	WindKnots    float64    `json:"wind_knots"`
	Station      *string    `json:"station,omitempty"`
	ObservedAt   *time.Time `json:"observed_at,omitempty"`
	AgeMinutes   *int64     `json:"age_minutes,omitempty"`
	AgeText      string     `json:"age_text"`
}

type DisplayConfigRequest struct {
	ShowMetadata   *bool `json:"show_metadata"`
	Use24HourClock *bool `json:"use_24h_clock"`
	UseCelsius     *bool `json:"use_celsius"`
	ApplyWindChill *bool `json:"wind_chill"`
	ForceExcuse    *bool `json:"force_excuse"`
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         router,
		widget:         cfg.Widget,
		db:             cfg.Database,
		port:           cfg.Port,
		persistDisplay: cfg.PersistDisplay,
		logger:         logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/widget", s.widgetHandler)
		api.GET("/observation", s.observationHandler)
		api.GET("/observations", s.observationsHandler)
		api.GET("/logs", s.logsHandler)
		api.POST("/refresh", s.refreshHandler)
		api.POST("/preview", s.previewHandler)

		api.GET("/config/display", s.getDisplayConfigHandler)
		api.PUT("/config/display", s.updateDisplayConfigHandler)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Info("API server starting", "port", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	status := s.widget.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"running":         status.Running,
		"state":           status.State,
		"has_observation": status.Observation != nil,
		"timestamp":       time.Now(),
	})
}

func (s *Server) widgetHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.widget.Status())
}

func (s *Server) observationHandler(c *gin.Context) {
	obs := s.widget.Observation()
	if obs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No observation available yet",
		})
		return
	}
	c.JSON(http.StatusOK, NewObservationView(obs, time.Now()))
}

func (s *Server) observationsHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History is not available"})
		return
	}
	records, err := s.db.GetObservationsWithLimit(queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) logsHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event log is not available"})
		return
	}
	entries, err := s.db.GetLogs(queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) refreshHandler(c *gin.Context) {
	err := s.widget.Refresh(c.Request.Context())
	if errors.Is(err, widget.ErrFetchInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"excuse": widget.Excuse(err),
		})
		return
	}
	c.JSON(http.StatusOK, s.widget.Status())
}

// previewHandler parses a posted payload and presents it with the current
// options, overridden by any boolean query parameters.
func (s *Server) previewHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPreviewBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, err := optionsFromQuery(c, s.widget.Options())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	obs, err := weather.ParseJSON(body, time.Local)
	if err != nil {
		var pe *weather.ParseError
		if errors.As(err, &pe) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": pe.Error(),
				"kind":  pe.Kind.String(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	excuse := c.DefaultQuery("excuse", "")
	c.JSON(http.StatusOK, gin.H{
		"observation": NewObservationView(obs, now),
		"shown":       presenter.Present(obs, excuse, opts, now),
		"options":     opts,
	})
}

func (s *Server) getDisplayConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.widget.Options())
}

func (s *Server) updateDisplayConfigHandler(c *gin.Context) {
	var req DisplayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, shown := s.widget.UpdateOptions(req.apply)

	if s.persistDisplay != nil {
		if err := s.persistDisplay(opts); err != nil {
			s.logger.Warn("failed to save display options", "err", err)
			c.JSON(http.StatusOK, gin.H{
				"message": "Configuration applied but not persisted to file",
				"warning": err.Error(),
				"options": opts,
				"shown":   shown,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Display configuration updated successfully",
		"options": opts,
		"shown":   shown,
	})
}

func (r DisplayConfigRequest) apply(opts presenter.Options) presenter.Options {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&opts.ShowMetadata, r.ShowMetadata)
	set(&opts.Use24HourClock, r.Use24HourClock)
	set(&opts.UseCelsius, r.UseCelsius)
	set(&opts.ApplyWindChill, r.ApplyWindChill)
	set(&opts.ForceExcuse, r.ForceExcuse)
	return opts
}

func optionsFromQuery(c *gin.Context, opts presenter.Options) (presenter.Options, error) {
	flags := map[string]*bool{
		"show_metadata": &opts.ShowMetadata,
		"use_24h_clock": &opts.Use24HourClock,
		"use_celsius":   &opts.UseCelsius,
		"wind_chill":    &opts.ApplyWindChill,
		"force_excuse":  &opts.ForceExcuse,
	}
	for name, dst := range flags {
		raw, ok := c.GetQuery(name)
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid value for %s: %q", name, raw)
		}
		*dst = v
	}
	return opts, nil
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func NewObservationView(obs *weather.Observation, now time.Time) ObservationView {
	view := ObservationView{
		TemperatureC: obs.Celsius(),
		WindKnots:    obs.WindKnots(),
	}
	if station, ok := obs.Station(); ok {
		view.Station = &station
	}
	if at, ok := obs.ObservedAt(); ok {
		view.ObservedAt = &at
	}
	if age := obs.AgeMinutes(now); age != weather.AgeUnknown {
		view.AgeMinutes = &age
		view.AgeText = presenter.TimeOldString(age)
	} else {
		view.AgeText = "unknown"
	}
	return view
}
