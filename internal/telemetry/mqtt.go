// Package telemetry republishes parameter and avatar change events to
// an MQTT broker so external dashboards can follow the exchange.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/oscbridge-project/oscbridge/internal/config"
	"github.com/oscbridge-project/oscbridge/internal/events"
	"github.com/oscbridge-project/oscbridge/internal/util"
)

// MQTTHandler manages the broker connection and publishes change events
// as they arrive on the bus.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: map[string]interface{}{
			"hostname": sysInfo.Hostname,
			"platform": sysInfo.OS,
		},
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("oscbridge-%s", sysInfo.Hostname))
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

// Start connects to the MQTT broker, subscribes to bus events, and
// blocks until the context is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.eventBus.Subscribe(events.EventParameterChanged, "mqtt.parameterChanged", h.onParameterChanged)
	h.eventBus.Subscribe(events.EventAvatarChanged, "mqtt.avatarChanged", h.onAvatarChanged)

	<-ctx.Done()

	h.eventBus.Unsubscribe(events.EventParameterChanged, "mqtt.parameterChanged")
	h.eventBus.Unsubscribe(events.EventAvatarChanged, "mqtt.avatarChanged")
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// topic joins the configured prefix with a suffix.
func (h *MQTTHandler) topic(suffix string) string {
	prefix := h.cfg.TopicPrefix
	if prefix == "" {
		prefix = "oscbridge"
	}
	return prefix + "/" + suffix
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (h *MQTTHandler) onParameterChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ParameterChangedPayload)
	if !ok {
		return nil
	}
	h.publish(h.topic("parameters"), map[string]interface{}{
		"name":  p.Name,
		"type":  p.Value.Kind().String(),
		"value": p.Value.Interface(),
	})
	return nil
}

func (h *MQTTHandler) onAvatarChanged(ctx context.Context, event events.Event) error {
	h.publish(h.topic("avatar"), event.Payload)
	return nil
}
