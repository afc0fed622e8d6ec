package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"weather-widget/config"
	"weather-widget/internal/api"
	"weather-widget/internal/logging"
	"weather-widget/internal/mqtt"
	"weather-widget/internal/presenter"
	"weather-widget/internal/storage"
	"weather-widget/internal/weather"
	"weather-widget/internal/widget"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "weather-widget",
		Short: "Current weather widget",
		Long:  "Fetches current weather for a fixed location and renders a short temperature and status line",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(parseCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) (weather.Provider, error) {
	switch strings.ToLower(cfg.Weather.Provider) {
	case "", "openweathermap", "openweather":
		return weather.NewOpenWeatherClient(weather.ClientConfig{
			APIKey:     cfg.Weather.APIKey,
			BaseURL:    cfg.Weather.BaseURL,
			Latitude:   cfg.Weather.Latitude,
			Longitude:  cfg.Weather.Longitude,
			Timeout:    cfg.Weather.Timeout,
			Attempts:   cfg.Weather.Attempts,
			RetryDelay: cfg.Weather.RetryDelay,
			Logger:     logger,
		}), nil
	case "openmeteo", "open-meteo":
		return weather.NewOpenMeteoClient(weather.OpenMeteoConfig{
			BaseURL:    cfg.Weather.BaseURL,
			City:       cfg.Weather.City,
			Country:    cfg.Weather.Country,
			Latitude:   cfg.Weather.Latitude,
			Longitude:  cfg.Weather.Longitude,
			Timeout:    cfg.Weather.Timeout,
			Attempts:   cfg.Weather.Attempts,
			RetryDelay: cfg.Weather.RetryDelay,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", cfg.Weather.Provider)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the widget service",
		Long:  "Start the fetch scheduler, API server, and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			logger.Info("database opened", "path", cfg.Database.Path)

			if cfg.Database.Retention > 0 {
				if err := db.CleanOldObservations(cfg.Database.Retention); err != nil {
					logger.Warn("failed to clean old observations", "err", err)
				}
				if err := db.CleanOldLogs(cfg.Database.Retention); err != nil {
					logger.Warn("failed to clean old log entries", "err", err)
				}
			}

			var initial *weather.Observation
			if record, err := db.GetLatestObservation(); err == nil {
				initial = record.Observation()
				logger.Info("restored last observation", "fetched_at", record.FetchedAt)
			}

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
				Logger:      logger,
			})
			if err != nil {
				logger.Warn("MQTT connection failed, publishing disabled", "err", err)
				publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false, Logger: logger})
			} else if cfg.MQTT.Enabled {
				if err := publisher.PublishHomeAssistantDiscovery(); err != nil {
					logger.Warn("Home Assistant discovery failed", "err", err)
				}
			}
			defer publisher.Close()

			w := widget.New(widget.Config{
				Provider:        provider,
				Store:           db,
				Publisher:       publisher,
				Options:         cfg.Display.Options(),
				Initial:         initial,
				TickInterval:    cfg.Scheduler.TickInterval,
				MinValidity:     cfg.Scheduler.MinValidity,
				MaxValidity:     cfg.Scheduler.MaxValidity,
				FailureCooldown: cfg.Scheduler.FailureCooldown,
				Logger:          logger,
			})

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := w.Start(ctx); err != nil {
					logger.Error("widget scheduler error", "err", err)
				}
			}()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:     cfg.API.Port,
					Widget:   w,
					Database: db,
					PersistDisplay: func(opts presenter.Options) error {
						return config.SaveDisplay(configFile, config.DisplayFromOptions(opts))
					},
					Logger: logger,
				})

				go func() {
					if err := server.Start(); err != nil {
						logger.Info("API server stopped", "err", err)
					}
				}()
			}

			logger.Info("weather widget started, press Ctrl+C to stop")

			<-ctx.Done()
			logger.Info("shutting down")

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					logger.Warn("API server shutdown failed", "err", err)
				}
			}
			<-done

			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the current weather once",
		Long:  "Fetch the current weather and print what the widget would show",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}

			obs, err := provider.Get(ctx)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n",
					presenter.Present(nil, widget.Excuse(err), cfg.Display.Options(), time.Now()).Temperature,
					widget.Excuse(err))
				return fmt.Errorf("failed to fetch weather: %w", err)
			}

			return printObservation(cmd.OutOrStdout(), obs, cfg.Display.Options())
		},
	}
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a saved weather payload",
		Long:  "Parse a saved OpenWeatherMap JSON payload (or - for stdin) and print what the widget would show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			obs, err := weather.ParseJSON(data, time.Local)
			if err != nil {
				return err
			}

			return printObservation(cmd.OutOrStdout(), obs, cfg.Display.Options())
		},
	}
}

func printObservation(w io.Writer, obs *weather.Observation, opts presenter.Options) error {
	now := time.Now()
	output, err := json.MarshalIndent(struct {
		Observation api.ObservationView `json:"observation"`
		Shown       presenter.Result    `json:"shown"`
	}{
		Observation: api.NewObservationView(obs, now),
		Shown:       presenter.Present(obs, widget.AgeExcuse(obs, now), opts, now),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(output))
	return nil
}
