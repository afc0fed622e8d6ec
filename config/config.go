package config

import (
	"time"

	"weather-widget/internal/presenter"

	"github.com/spf13/viper"
)

type Config struct {
	Display   DisplayConfig   `mapstructure:"display"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	API       APIConfig       `mapstructure:"api"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

type DisplayConfig struct {
	ShowMetadata bool `mapstructure:"show_metadata"`
	Use24HClock  bool `mapstructure:"use_24h_clock"`
	UseCelsius   bool `mapstructure:"use_celsius"`
	WindChill    bool `mapstructure:"wind_chill"`
	ForceExcuse  bool `mapstructure:"force_excuse"`
}

type WeatherConfig struct {
	// Provider is "openweathermap" or "openmeteo".
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Latitude   float64       `mapstructure:"latitude"`
	Longitude  float64       `mapstructure:"longitude"`
	City       string        `mapstructure:"city"`
	Country    string        `mapstructure:"country"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type SchedulerConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	MinValidity     time.Duration `mapstructure:"min_validity"`
	MaxValidity     time.Duration `mapstructure:"max_validity"`
	FailureCooldown time.Duration `mapstructure:"failure_cooldown"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type DatabaseConfig struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (d DisplayConfig) Options() presenter.Options {
	return presenter.Options{
		ShowMetadata:   d.ShowMetadata,
		Use24HourClock: d.Use24HClock,
		UseCelsius:     d.UseCelsius,
		ApplyWindChill: d.WindChill,
		ForceExcuse:    d.ForceExcuse,
	}
}

func DisplayFromOptions(opts presenter.Options) DisplayConfig {
	return DisplayConfig{
		ShowMetadata: opts.ShowMetadata,
		Use24HClock:  opts.Use24HourClock,
		UseCelsius:   opts.UseCelsius,
		WindChill:    opts.ApplyWindChill,
		ForceExcuse:  opts.ForceExcuse,
	}
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/weather-widget")
	}

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := presenter.DefaultOptions()
	v.SetDefault("display.show_metadata", defaults.ShowMetadata)
	v.SetDefault("display.use_24h_clock", defaults.Use24HourClock)
	v.SetDefault("display.use_celsius", defaults.UseCelsius)
	v.SetDefault("display.wind_chill", defaults.ApplyWindChill)
	v.SetDefault("display.force_excuse", defaults.ForceExcuse)
	v.SetDefault("weather.provider", "openweathermap")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "")
	v.SetDefault("weather.latitude", 0)
	v.SetDefault("weather.longitude", 0)
	v.SetDefault("weather.city", "")
	v.SetDefault("weather.country", "")
	v.SetDefault("weather.timeout", "10s")
	v.SetDefault("weather.attempts", 3)
	v.SetDefault("weather.retry_delay", "5s")
	v.SetDefault("scheduler.tick_interval", "1m")
	v.SetDefault("scheduler.min_validity", "30m")
	v.SetDefault("scheduler.max_validity", "60m")
	v.SetDefault("scheduler.failure_cooldown", "5m")
	v.SetDefault("api.port", 8046)
	v.SetDefault("api.enabled", true)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "weather")
	v.SetDefault("mqtt.client_id", "weather-widget")
	v.SetDefault("database.path", "./weather-widget.db")
	v.SetDefault("database.retention", "720h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SaveDisplay writes the display options back to the config file.
func SaveDisplay(configPath string, display DisplayConfig) error {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else if viper.ConfigFileUsed() == "" {
		viper.SetConfigFile("config.yaml")
	}

	viper.Set("display.show_metadata", display.ShowMetadata)
	viper.Set("display.use_24h_clock", display.Use24HClock)
	viper.Set("display.use_celsius", display.UseCelsius)
	viper.Set("display.wind_chill", display.WindChill)
	viper.Set("display.force_excuse", display.ForceExcuse)

	return viper.WriteConfig()
}
