// Package mqtt provides the MQTT input component for ingesting sensor readings
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/component"
	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/pipeline"
	"github.com/c360/sembridge/pkg/timestamp"
)

// Metrics holds Prometheus metrics for the MQTT input component
type Metrics struct {
	readingsReceived prometheus.Counter
	readingsRejected prometheus.Counter
	bytesReceived    prometheus.Counter
	connected        prometheus.Gauge
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers MQTT input metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		readingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "mqtt",
			Name:      "readings_received_total",
			Help:      "Total sensor readings accepted from the reading topic",
		}),
		readingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "mqtt",
			Name:      "readings_rejected_total",
			Help:      "Readings discarded as unparseable or invalid",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "mqtt",
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received from the broker",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "Broker connection state (1=connected, 0=disconnected)",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "mqtt",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of last received payload",
		}),
	}

	registry.RegisterCounter("mqtt_input", "readings_received", metrics.readingsReceived)
	registry.RegisterCounter("mqtt_input", "readings_rejected", metrics.readingsRejected)
	registry.RegisterCounter("mqtt_input", "bytes_received", metrics.bytesReceived)
	registry.RegisterGauge("mqtt_input", "connected", metrics.connected)
	registry.RegisterGauge("mqtt_input", "last_activity", metrics.lastActivity)

	return metrics
}

// validBrokerSchemes lists the transport schemes paho accepts.
var validBrokerSchemes = map[string]bool{
	"tcp": true, "ssl": true, "tls": true, "ws": true, "wss": true,
}

// InputConfig holds configuration for the MQTT input component
type InputConfig struct {
	BrokerURL      string        `json:"broker_url"`
	ClientID       string        `json:"client_id,omitempty"`
	Topic          string        `json:"topic"`
	QoS            byte          `json:"qos,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	KeepAlive      time.Duration `json:"keep_alive,omitempty"`

	// TLS is used for ssl:// and tls:// brokers; nil means the paho default.
	TLS *tls.Config `json:"-"`
}

// Validate implements component.Validatable for secure config validation
func (c *InputConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: broker URL is empty", errors.ErrInvalidConfig),
			"mqtt-input", "Validate", "broker validation")
	}

	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("invalid broker URL %q: %w", c.BrokerURL, err),
			"mqtt-input", "Validate", "broker validation")
	}
	if !validBrokerSchemes[u.Scheme] || u.Host == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: broker URL %q must be tcp://, ssl://, tls://, ws:// or wss:// with a host",
				errors.ErrInvalidConfig, c.BrokerURL),
			"mqtt-input", "Validate", "broker validation")
	}

	if c.Topic == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: reading topic is empty", errors.ErrInvalidConfig),
			"mqtt-input", "Validate", "topic validation")
	}

	if c.QoS > 2 {
		return errors.WrapInvalid(fmt.Errorf("%w: qos %d out of range 0-2", errors.ErrInvalidConfig, c.QoS),
			"mqtt-input", "Validate", "qos validation")
	}

	return nil
}

// DefaultConfig returns sensible defaults for the MQTT input
func DefaultConfig() InputConfig {
	return InputConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "sembridge-input",
		Topic:          "sensors/readings",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      30 * time.Second,
	}
}

// ClientFactory builds an MQTT client from prepared options. Tests inject
// a fake; production uses paho's constructor.
type ClientFactory func(*pahomqtt.ClientOptions) pahomqtt.Client

// InputDeps holds runtime dependencies for the MQTT input component
type InputDeps struct {
	Name            string                  // Instance name
	Config          InputConfig             // Business logic configuration
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
	NewClient       ClientFactory           // Client constructor override
}

// Input subscribes to a reading topic and keeps the latest reading per
// sensor for the pipeline to collect at cycle time.
type Input struct {
	name      string
	config    InputConfig
	newClient ClientFactory
	logger    *slog.Logger

	// Lifecycle management
	mu          sync.RWMutex
	client      pahomqtt.Client
	latest      map[string]pipeline.Reading
	initialized bool
	running     atomic.Bool
	startTime   time.Time

	// Metrics (atomic for thread safety)
	readingsReceived atomic.Int64
	bytesReceived    atomic.Int64
	errors           atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a new MQTT input component
func NewInput(deps InputDeps) *Input {
	cfg := deps.Config
	if cfg.ClientID == "" {
		cfg.ClientID = "sembridge-input"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "mqtt-input", "topic", cfg.Topic)
	}

	factory := deps.NewClient
	if factory == nil {
		factory = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
			return pahomqtt.NewClient(opts)
		}
	}

	in := &Input{
		name:      deps.Name,
		config:    cfg,
		newClient: factory,
		logger:    logger,
		latest:    make(map[string]pipeline.Reading),
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	in.lastActivity.Store(time.Time{})
	return in
}

// Meta returns the component metadata
func (in *Input) Meta() component.Metadata {
	name := in.name
	if name == "" {
		name = "mqtt-input"
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("MQTT subscriber on %s collecting readings from %s", in.config.BrokerURL, in.config.Topic),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (in *Input) Health() component.HealthStatus {
	in.mu.RLock()
	client := in.client
	in.mu.RUnlock()

	running := in.running.Load()
	connected := client != nil && client.IsConnected()
	errorCount := in.errors.Load()

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(errorCount),
		LastError:  "",
		Uptime:     time.Since(in.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (in *Input) DataFlow() component.FlowMetrics {
	readings := in.readingsReceived.Load()
	bytes := in.bytesReceived.Load()
	errorCount := in.errors.Load()
	lastActivity, _ := in.lastActivity.Load().(time.Time)

	var readingsPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(in.startTime).Seconds(); uptime > 0 {
		readingsPerSecond = float64(readings) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if readings > 0 {
		errorRate = float64(errorCount) / float64(readings)
	}

	return component.FlowMetrics{
		MessagesPerSecond: readingsPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration but does not touch the broker
func (in *Input) Initialize() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.config.Validate(); err != nil {
		return err
	}

	if in.latest == nil {
		in.latest = make(map[string]pipeline.Reading)
	}
	in.initialized = true
	return nil
}

// Start connects to the broker. The subscription is established by the
// on-connect handler so it survives paho's automatic reconnects.
func (in *Input) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "mqtt-input", "Start", "context check")
	}

	if !in.initialized {
		return errors.WrapInvalid(fmt.Errorf("component not initialized"),
			"mqtt-input", "Start", "state check")
	}

	if in.running.Load() {
		return nil // Already running, idempotent
	}

	client := in.newClient(in.buildOptions())

	token := client.Connect()
	if !token.WaitTimeout(in.config.ConnectTimeout) {
		client.Disconnect(0)
		return errors.WrapTransient(
			fmt.Errorf("connect to %s timed out after %s", in.config.BrokerURL, in.config.ConnectTimeout),
			"mqtt-input", "Start", "broker connect")
	}
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "mqtt-input", "Start", "broker connect")
	}

	in.client = client
	in.running.Store(true)
	in.startTime = time.Now()

	if in.metrics != nil {
		in.metrics.connected.Set(1)
	}
	in.logger.Info("MQTT input started",
		"broker", in.config.BrokerURL,
		"topic", in.config.Topic,
		"qos", in.config.QoS)
	return nil
}

// buildOptions translates InputConfig into paho client options
func (in *Input) buildOptions() *pahomqtt.ClientOptions {
	cfg := in.config

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS != nil {
		opts.SetTLSConfig(cfg.TLS)
	}
	opts.SetOnConnectHandler(in.handleConnect)
	opts.SetConnectionLostHandler(in.handleConnectionLost)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	return opts
}

// handleConnect subscribes to the reading topic. Paho invokes it after
// every successful connect, including reconnects, which keeps the
// subscription alive across broker restarts.
func (in *Input) handleConnect(client pahomqtt.Client) {
	token := client.Subscribe(in.config.Topic, in.config.QoS, in.handleMessage)
	if !token.WaitTimeout(in.config.ConnectTimeout) {
		in.errors.Add(1)
		in.logger.Error("Subscribe timed out", "topic", in.config.Topic)
		return
	}
	if err := token.Error(); err != nil {
		in.errors.Add(1)
		in.logger.Error("Subscribe failed", "topic", in.config.Topic, "error", err)
		return
	}

	if in.metrics != nil {
		in.metrics.connected.Set(1)
	}
	in.logger.Info("Subscribed to reading topic", "topic", in.config.Topic, "qos", in.config.QoS)
}

// handleConnectionLost records the drop; paho's auto-reconnect redials
func (in *Input) handleConnectionLost(_ pahomqtt.Client, err error) {
	in.errors.Add(1)
	if in.metrics != nil {
		in.metrics.connected.Set(0)
	}
	in.logger.Warn("MQTT connection lost", "error", err)
}

// wireReading is the decoded payload shape. The timestamp field is kept
// loose: fleets mix RFC3339 strings, epoch seconds, and epoch
// milliseconds, and pkg/timestamp normalizes all of them.
type wireReading struct {
	SensorID   string  `json:"sensor_id"`
	SensorType string  `json:"sensor_type"`
	Value      float64 `json:"value"`
	Timestamp  any     `json:"timestamp,omitempty"`
}

// handleMessage decodes one payload into a reading and stores it as the
// latest value for its sensor. Invalid payloads are counted and dropped.
func (in *Input) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	payload := msg.Payload()
	now := time.Now()

	in.bytesReceived.Add(int64(len(payload)))
	in.lastActivity.Store(now)
	if in.metrics != nil {
		in.metrics.bytesReceived.Add(float64(len(payload)))
		in.metrics.lastActivity.Set(float64(now.Unix()))
	}

	var wire wireReading
	if err := json.Unmarshal(payload, &wire); err != nil {
		in.errors.Add(1)
		if in.metrics != nil {
			in.metrics.readingsRejected.Inc()
		}
		in.logger.Warn("Discarding unparseable reading", "topic", msg.Topic(), "error", err)
		return
	}

	reading := pipeline.Reading{
		SensorID:   wire.SensorID,
		SensorType: wire.SensorType,
		Value:      wire.Value,
		Timestamp:  timestamp.ToTime(timestamp.Parse(wire.Timestamp)),
	}

	// Sensors without clocks omit the timestamp; stamp on arrival.
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}

	if err := reading.Validate(); err != nil {
		in.errors.Add(1)
		if in.metrics != nil {
			in.metrics.readingsRejected.Inc()
		}
		in.logger.Warn("Discarding invalid reading",
			"sensor_id", reading.SensorID,
			"sensor_type", reading.SensorType,
			"error", err)
		return
	}

	in.readingsReceived.Add(1)
	if in.metrics != nil {
		in.metrics.readingsReceived.Inc()
	}

	in.mu.Lock()
	in.latest[reading.SensorID] = reading
	in.mu.Unlock()
}

// Snapshot returns the latest reading per sensor, ordered by sensor ID.
// It satisfies pipeline.ReadingSource so the coordinator can collect the
// current sensor state at the top of each cycle.
func (in *Input) Snapshot(ctx context.Context) ([]pipeline.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapTransient(err, "mqtt-input", "Snapshot", "context check")
	}
	if !in.running.Load() {
		return nil, errors.WrapTransient(errors.ErrNotStarted, "mqtt-input", "Snapshot", "state check")
	}

	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]pipeline.Reading, 0, len(in.latest))
	for _, r := range in.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

// Stop disconnects from the broker with the specified timeout
func (in *Input) Stop(timeout time.Duration) error {
	if !in.running.Load() {
		return nil
	}
	in.running.Store(false)

	in.mu.Lock()
	client := in.client
	in.client = nil
	in.mu.Unlock()

	if client != nil {
		if token := client.Unsubscribe(in.config.Topic); !token.WaitTimeout(timeout) {
			in.logger.Warn("Unsubscribe timed out", "topic", in.config.Topic)
		}
		client.Disconnect(disconnectQuiesce(timeout))
	}

	if in.metrics != nil {
		in.metrics.connected.Set(0)
	}
	in.logger.Info("MQTT input stopped", "topic", in.config.Topic)
	return nil
}

// disconnectQuiesce converts a stop timeout into paho's quiesce
// milliseconds, keeping a small floor so in-flight acks can finish.
func disconnectQuiesce(timeout time.Duration) uint {
	ms := timeout.Milliseconds()
	if ms < 250 {
		return 250
	}
	return uint(ms)
}
