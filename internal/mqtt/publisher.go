package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"weather-widget/internal/presenter"
	"weather-widget/internal/weather"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const deviceName = "widget"

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
	logger      *slog.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
	Logger      *slog.Logger
}

type statusPayload struct {
	Temperature  string     `json:"temperature"`
	Subtext      string     `json:"subtext"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	WindKnots    *float64   `json:"wind_knots,omitempty"`
	Station      string     `json:"station,omitempty"`
	ObservedAt   *time.Time `json:"observed_at,omitempty"`
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "err", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("mqtt connected", "broker", cfg.Broker)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
		logger:      logger,
	}, nil
}

func (p *Publisher) topic(name string) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, deviceName, name)
}

// Publish sends the rendered widget strings and, when present, the
// underlying observation values.
func (p *Publisher) Publish(shown presenter.Result, obs *weather.Observation) error {
	if !p.enabled {
		return nil
	}

	for name, value := range topicValues(shown, obs) {
		topic := p.topic(name)
		token := p.client.Publish(topic, 0, true, value)
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn("mqtt publish failed", "topic", topic, "err", token.Error())
		}
	}

	statusJSON, err := json.Marshal(newStatusPayload(shown, obs))
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	token := p.client.Publish(p.topic("status"), 0, true, statusJSON)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish status: %w", token.Error())
	}

	return nil
}

func topicValues(shown presenter.Result, obs *weather.Observation) map[string]string {
	values := map[string]string{
		"temperature": shown.Temperature,
		"subtext":     shown.Subtext,
	}
	if obs == nil {
		return values
	}
	values["celsius"] = strconv.FormatFloat(obs.Celsius(), 'f', 1, 64)
	values["wind_knots"] = strconv.FormatFloat(obs.WindKnots(), 'f', 1, 64)
	// An empty retained payload clears a station left by an earlier reading.
	values["station"], _ = obs.Station()
	return values
}

func newStatusPayload(shown presenter.Result, obs *weather.Observation) statusPayload {
	payload := statusPayload{
		Temperature: shown.Temperature,
		Subtext:     shown.Subtext,
	}
	if obs == nil {
		return payload
	}
	celsius, knots := obs.Celsius(), obs.WindKnots()
	payload.TemperatureC = &celsius
	payload.WindKnots = &knots
	payload.Station, _ = obs.Station()
	if at, ok := obs.ObservedAt(); ok {
		payload.ObservedAt = &at
	}
	return payload
}

func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}

	sensors := []struct {
		Name        string
		ID          string
		Unit        string
		DeviceClass string
	}{
		{"Temperature Text", "temperature", "", ""},
		{"Status", "subtext", "", ""},
		{"Temperature", "celsius", "°C", "temperature"},
		{"Wind Speed", "wind_knots", "kn", "wind_speed"},
		{"Station", "station", "", ""},
	}

	for _, sensor := range sensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/weather_widget/%s/config", sensor.ID)

		config := map[string]interface{}{
			"name":        fmt.Sprintf("Weather Widget %s", sensor.Name),
			"unique_id":   fmt.Sprintf("weather_widget_%s", sensor.ID),
			"state_topic": p.topic(sensor.ID),
			"device": map[string]interface{}{
				"identifiers": []string{"weather_widget"},
				"name":        "Weather Widget",
			},
		}

		if sensor.Unit != "" {
			config["unit_of_measurement"] = sensor.Unit
		}
		if sensor.DeviceClass != "" {
			config["device_class"] = sensor.DeviceClass
		}

		payload, _ := json.Marshal(config)
		token := p.client.Publish(discoveryTopic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", sensor.ID, token.Error())
		}
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
