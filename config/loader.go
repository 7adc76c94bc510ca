package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c360/sembridge/oracle"
)

const (
	maxConfigSize = 10 << 20
	maxJSONDepth  = 100
	maxPathLen    = 4096

	// EnvPrefix is the prefix of every environment override.
	EnvPrefix = "SEMBRIDGE"
)

// Loader loads configuration as layers: built-in defaults, then each
// added file in order, then environment overrides. Later layers win
// per field; omitted fields keep the value beneath.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader returns a loader with validation enabled.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  EnvPrefix,
	}
}

// AddLayer appends a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation toggles Validate() on the merged result.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads a single file over the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, file layers, and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, raw)
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// Defaults returns the built-in configuration: a local Ollama endpoint,
// a 30 second evaluation interval, and everything optional disabled.
// The safety whitelist and document paths have no safe default and must
// come from a layer.
func Defaults() *Config {
	return &Config{
		Version: "1.0.0",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Oracle: OracleConfig{
			BaseURL:           "http://localhost:11434/v1",
			Model:             "llama3.1",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             1,
			Params:            oracle.DefaultInferenceParams(),
		},
		Pipeline: PipelineConfig{
			Interval:        30 * time.Second,
			Workers:         4,
			QueueSize:       64,
			PendingCapacity: 100,
			PendingTTL:      5 * time.Minute,
			HistorySize:     32,
		},
		Safety: SafetyConfig{
			RateLimit:  60,
			RateWindow: time.Minute,
		},
		MQTT: MQTTConfig{
			ClientID:       "sembridge",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
			KeepAlive:      30 * time.Second,
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			CommandSubject: "sembridge.commands.released",
			AuditSubject:   "sembridge.audit",
		},
		HTTP: HTTPConfig{
			Addr: ":9090",
		},
	}
}

// durationFields lists the duration-typed keys per top-level section so
// layer files can write "30s" instead of nanosecond integers.
var durationFields = map[string][]string{
	"oracle":   {"timeout"},
	"pipeline": {"interval", "pending_ttl"},
	"safety":   {"rate_window"},
	"mqtt":     {"connect_timeout", "keep_alive"},
	"nats":     {"reconnect_wait"},
}

func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations rewrites duration strings in a raw layer map into
// nanosecond numbers so they unmarshal into time.Duration.
func parseDurations(raw map[string]any) error {
	for section, keys := range durationFields {
		sectionMap, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			str, ok := sectionMap[key].(string)
			if !ok {
				continue
			}
			d, err := parseDurationWithDays(str)
			if err != nil {
				return fmt.Errorf("%s.%s: invalid duration %q: %w", section, key, str, err)
			}
			sectionMap[key] = d.Nanoseconds()
		}
	}
	return nil
}

// parseDurationWithDays accepts the standard duration syntax plus a
// plain day suffix ("14d") for long TTLs.
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err == nil {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

// mergeFromMap merges a raw layer over the base config, overriding only
// the keys present in the layer.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	merged := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return base
	}
	var out Config
	if err := json.Unmarshal(mergedJSON, &out); err != nil {
		return base
	}
	return &out
}

// deepMergeMaps merges override into base recursively; override wins on
// scalar and array values, nested maps merge key by key.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies SEMBRIDGE_* environment variables over the
// merged configuration. Only operational knobs are exposed this way;
// structural settings come from files.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(suffix string, target *string) {
		if val := os.Getenv(l.envPrefix + suffix); val != "" {
			*target = val
		}
	}

	str("_LOG_LEVEL", &cfg.Logging.Level)
	str("_LOG_FORMAT", &cfg.Logging.Format)

	str("_ORACLE_BASE_URL", &cfg.Oracle.BaseURL)
	str("_ORACLE_MODEL", &cfg.Oracle.Model)
	str("_ORACLE_API_KEY", &cfg.Oracle.APIKey)
	if val := os.Getenv(l.envPrefix + "_ORACLE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s_ORACLE_TIMEOUT: invalid duration %q: %w", l.envPrefix, val, err)
		}
		cfg.Oracle.Timeout = d
	}

	if val := os.Getenv(l.envPrefix + "_PIPELINE_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s_PIPELINE_INTERVAL: invalid duration %q: %w", l.envPrefix, val, err)
		}
		cfg.Pipeline.Interval = d
	}

	str("_MQTT_BROKER_URL", &cfg.MQTT.BrokerURL)
	str("_MQTT_USERNAME", &cfg.MQTT.Username)
	str("_MQTT_PASSWORD", &cfg.MQTT.Password)

	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	str("_NATS_USERNAME", &cfg.NATS.Username)
	str("_NATS_PASSWORD", &cfg.NATS.Password)
	str("_NATS_TOKEN", &cfg.NATS.Token)

	str("_HTTP_ADDR", &cfg.HTTP.Addr)
	return nil
}

// validateConfigPath rejects traversal attempts and non-JSON files.
func validateConfigPath(path string) error {
	if path == "" {
		return stderrors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("only JSON config files allowed: %s", path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	if filepath.IsAbs(path) {
		if strings.Contains(filepath.ToSlash(absPath), "..") {
			return fmt.Errorf("path traversal not allowed: %s", path)
		}
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot get working directory: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
	}
	return nil
}

// safeReadFile reads a config or contract document with size and path
// checks.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return data, nil
}

// validateJSONDepth bounds nesting before unmarshaling untrusted
// documents.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		b := data[i]
		if escaped {
			escaped = false
			continue
		}
		if b == '\\' && inString {
			escaped = true
			continue
		}
		if b == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch b {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return stderrors.New("malformed JSON: unbalanced brackets")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
