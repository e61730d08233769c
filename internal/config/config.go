// Package config handles configuration loading, validation, and
// persistence for the oscbridge client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"

	// Default OSC endpoints: send to the peer on 9000, receive
	// parameter updates on 9001, both on loopback.
	DefaultSendHost    = "127.0.0.1"
	DefaultSendPort    = 9000
	DefaultReceiveHost = "127.0.0.1"
	DefaultReceivePort = 9001

	DefaultAPIPort = 9080
)

// Config is the root configuration structure for oscbridge.
type Config struct {
	mu   sync.RWMutex
	path string

	OSC     OSCConfig     `json:"osc"`
	API     APIConfig     `json:"api"`
	MQTT    MQTTConfig    `json:"mqtt"`
	History HistoryConfig `json:"history"`
	Logging LoggingConfig `json:"logging"`
}

// OSCConfig describes the UDP endpoints of the parameter exchange.
type OSCConfig struct {
	SendHost    string `json:"send_host"`
	SendPort    int    `json:"send_port"`
	ReceiveHost string `json:"receive_host"`
	ReceivePort int    `json:"receive_port"`
}

// SendAddr returns the peer endpoint in host:port form.
func (o OSCConfig) SendAddr() string {
	return fmt.Sprintf("%s:%d", o.SendHost, o.SendPort)
}

// ReceiveAddr returns the local bind endpoint in host:port form.
func (o OSCConfig) ReceiveAddr() string {
	return fmt.Sprintf("%s:%d", o.ReceiveHost, o.ReceivePort)
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// MQTTConfig holds telemetry broker settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	TopicPrefix string `json:"topic_prefix"`
}

// HistoryConfig holds the change-history database settings.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultConfig returns a configuration populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		OSC: OSCConfig{
			SendHost:    DefaultSendHost,
			SendPort:    DefaultSendPort,
			ReceiveHost: DefaultReceiveHost,
			ReceivePort: DefaultReceivePort,
		},
		API: APIConfig{
			Enabled: true,
			Port:    DefaultAPIPort,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        1883,
			TopicPrefix: "oscbridge",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "data/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Load reads configuration from a JSON file, creating a default one if
// none exists yet.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().Str("path", configPath).Msg("configuration loaded")
	return cfg, nil
}

// validate rejects endpoint settings the client cannot bind or reach.
func (c *Config) validate() error {
	if c.OSC.SendPort <= 0 || c.OSC.SendPort > 65535 {
		return fmt.Errorf("invalid osc send_port: %d", c.OSC.SendPort)
	}
	if c.OSC.ReceivePort < 0 || c.OSC.ReceivePort > 65535 {
		return fmt.Errorf("invalid osc receive_port: %d", c.OSC.ReceivePort)
	}
	if c.OSC.SendHost == "" || c.OSC.ReceiveHost == "" {
		return fmt.Errorf("osc send_host and receive_host must not be empty")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	return nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetOSC returns a copy of the OSC endpoint configuration.
func (c *Config) GetOSC() OSCConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.OSC
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
