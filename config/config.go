package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/c360/sembridge/oracle"
	"github.com/c360/sembridge/pkg/security"
)

// Config is the complete application configuration: process-level
// settings plus the paths of the three contract documents (sensor
// types, rules, device capabilities) that the core packages parse
// themselves.
type Config struct {
	Version   string          `json:"version,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Security  security.Config `json:"security,omitempty"`
	Oracle    OracleConfig    `json:"oracle"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Safety    SafetyConfig    `json:"safety"`
	MQTT      MQTTConfig      `json:"mqtt"`
	NATS      NATSConfig      `json:"nats"`
	HTTP      HTTPConfig      `json:"http"`
	Documents DocumentsConfig `json:"documents"`
}

// LoggingConfig selects handler and level for slog.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// OracleConfig configures the inference endpoint client.
type OracleConfig struct {
	BaseURL           string                 `json:"base_url"`
	Model             string                 `json:"model"`
	FallbackModels    []string               `json:"fallback_models,omitempty"`
	APIKey            string                 `json:"api_key,omitempty"`
	Timeout           time.Duration          `json:"timeout,omitempty"`
	RequestsPerSecond float64                `json:"requests_per_second,omitempty"`
	Burst             int                    `json:"burst,omitempty"`
	Params            oracle.InferenceParams `json:"params"`
	PromptTemplate    string                 `json:"prompt_template,omitempty"`
}

// PipelineConfig sizes the evaluation loop and its worker pool.
type PipelineConfig struct {
	Interval        time.Duration `json:"interval"`
	Workers         int           `json:"workers,omitempty"`
	QueueSize       int           `json:"queue_size,omitempty"`
	PendingCapacity int           `json:"pending_capacity,omitempty"`
	PendingTTL      time.Duration `json:"pending_ttl,omitempty"`
	// HistorySize bounds the retained ring of cycle summaries served
	// over the operational API. Negative disables retention.
	HistorySize int `json:"history_size,omitempty"`
}

// SafetyConfig feeds the command validator.
type SafetyConfig struct {
	// AllowedCommands is the global whitelist; a command type not
	// listed here is rejected.
	AllowedCommands []string      `json:"allowed_commands"`
	RateLimit       int           `json:"rate_limit,omitempty"`
	RateWindow      time.Duration `json:"rate_window,omitempty"`
}

// MQTTConfig configures the sensor-reading ingest.
type MQTTConfig struct {
	Enabled        bool          `json:"enabled"`
	BrokerURL      string        `json:"broker_url,omitempty"` // tcp://, ssl://, ws://
	ClientID       string        `json:"client_id,omitempty"`
	Topic          string        `json:"topic,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	QoS            byte          `json:"qos,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	KeepAlive      time.Duration `json:"keep_alive,omitempty"`
}

// NATSConfig configures the command dispatch connection.
type NATSConfig struct {
	Enabled        bool          `json:"enabled"`
	URLs           []string      `json:"urls,omitempty"`
	MaxReconnects  int           `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration `json:"reconnect_wait,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	Token          string        `json:"token,omitempty"`
	CommandSubject string        `json:"command_subject,omitempty"`
	AuditSubject   string        `json:"audit_subject,omitempty"`
}

// HTTPConfig configures the operational HTTP endpoint (metrics, health).
type HTTPConfig struct {
	Addr string `json:"addr,omitempty"`
}

// DocumentsConfig points at the three contract documents. All three are
// required to run the pipeline.
type DocumentsConfig struct {
	SensorTypes string `json:"sensor_types"`
	Rules       string `json:"rules"`
	Devices     string `json:"devices"`
}

// Validate checks the configuration and reports the first problem. It
// checks referenced TLS files exist but does not open the contract
// documents; those are loaded and schema-checked separately.
func (c *Config) Validate() error {
	if err := validateChoice("logging.level", c.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := validateChoice("logging.format", c.Logging.Format, "json", "text"); err != nil {
		return err
	}

	if c.Oracle.BaseURL == "" {
		return stderrors.New("oracle.base_url is required")
	}
	if u, err := url.Parse(c.Oracle.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("oracle.base_url %q is not a valid URL", c.Oracle.BaseURL)
	}
	if c.Oracle.Model == "" {
		return stderrors.New("oracle.model is required")
	}
	if c.Oracle.Timeout < 0 {
		return stderrors.New("oracle.timeout must not be negative")
	}
	if c.Oracle.RequestsPerSecond < 0 {
		return stderrors.New("oracle.requests_per_second must not be negative")
	}

	if c.Pipeline.Interval <= 0 {
		return stderrors.New("pipeline.interval must be positive")
	}
	if c.Pipeline.Workers < 0 {
		return stderrors.New("pipeline.workers must not be negative")
	}
	if c.Pipeline.QueueSize < 0 {
		return stderrors.New("pipeline.queue_size must not be negative")
	}

	if len(c.Safety.AllowedCommands) == 0 {
		return stderrors.New("safety.allowed_commands is empty; every command would be rejected")
	}
	if c.Safety.RateLimit < 0 {
		return stderrors.New("safety.rate_limit must not be negative")
	}

	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return stderrors.New("mqtt.broker_url is required when mqtt is enabled")
		}
		if !hasScheme(c.MQTT.BrokerURL, "tcp", "ssl", "tls", "ws", "wss") {
			return fmt.Errorf("mqtt.broker_url %q must use a tcp, ssl, tls, ws, or wss scheme", c.MQTT.BrokerURL)
		}
		if c.MQTT.Topic == "" {
			return stderrors.New("mqtt.topic is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos %d outside 0..2", c.MQTT.QoS)
		}
	}

	if c.NATS.Enabled && len(c.NATS.URLs) == 0 {
		return stderrors.New("nats.urls is required when nats is enabled")
	}

	if c.Documents.SensorTypes == "" {
		return stderrors.New("documents.sensor_types is required")
	}
	if c.Documents.Rules == "" {
		return stderrors.New("documents.rules is required")
	}
	if c.Documents.Devices == "" {
		return stderrors.New("documents.devices is required")
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}
	return nil
}

func validateChoice(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be one of %s", field, value, strings.Join(allowed, ", "))
}

func hasScheme(rawURL string, schemes ...string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

// validateSecurity checks the TLS sections and that referenced
// certificate files exist.
func (c *Config) validateSecurity() error {
	server := c.Security.TLS.Server
	if server.Enabled {
		if server.CertFile == "" {
			return stderrors.New("tls.server.cert_file is required when server TLS is enabled")
		}
		if server.KeyFile == "" {
			return stderrors.New("tls.server.key_file is required when server TLS is enabled")
		}
		if _, err := os.Stat(server.CertFile); err != nil {
			return fmt.Errorf("tls.server.cert_file: %w", err)
		}
		if _, err := os.Stat(server.KeyFile); err != nil {
			return fmt.Errorf("tls.server.key_file: %w", err)
		}
		if err := validateTLSVersion(server.MinVersion); err != nil {
			return fmt.Errorf("tls.server.min_version: %w", err)
		}
	}

	client := c.Security.TLS.Client
	for i, caFile := range client.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("tls.client.ca_files[%d]: %w", i, err)
		}
	}
	if client.InsecureSkipVerify {
		fmt.Fprintln(os.Stderr,
			"WARNING: TLS certificate verification is disabled (insecure_skip_verify=true); development use only")
	}
	if err := validateTLSVersion(client.MinVersion); err != nil {
		return fmt.Errorf("tls.client.min_version: %w", err)
	}
	return nil
}

func validateTLSVersion(version string) error {
	switch version {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns an indented JSON rendering with credentials masked,
// for startup logging.
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Oracle.APIKey != "" {
		clone.Oracle.APIKey = "***"
	}
	if clone.MQTT.Password != "" {
		clone.MQTT.Password = "***"
	}
	if clone.NATS.Password != "" {
		clone.NATS.Password = "***"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}

// SaveToFile writes the configuration as indented JSON, owner
// read/write only.
func (c *Config) SaveToFile(path string) error {
	if err := validateConfigPath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
