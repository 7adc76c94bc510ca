// Package metric provides Prometheus-based metrics collection and an HTTP
// server for pipeline monitoring and observability.
//
// The package offers a centralized metrics registry managing both core platform
// metrics (service status, message flow, NATS health) and custom
// service-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Service Registry: Extensible registration for service-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (pipeline-stage metrics) while providing a unified metrics endpoint
// for monitoring systems. Pipeline stages such as the fuzzifier, the oracle
// client and the validator register their own metrics through the registrar;
// the core set stays domain-free.
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	securityCfg := security.Config{} // Platform security config
//	server := metric.NewServer(":9090", "/metrics", registry, securityCfg)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("pipeline", 2)
//	coreMetrics.RecordMessageReceived("mqtt-input", "sensor_reading")
//	coreMetrics.RecordNATSStatus(true)
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// The package automatically registers core platform metrics tracking:
//
//   - Service lifecycle: sembridge_service_status (0=stopped ... 4=failed)
//   - Message flow: sembridge_messages_received_total, _processed_total, _published_total
//   - Processing performance: sembridge_processing_duration_seconds
//   - Error tracking: sembridge_errors_total
//   - Health: sembridge_health_status
//   - NATS connectivity: sembridge_nats_connected, _rtt_milliseconds, _reconnects_total
//
// Access core metrics through the registry:
//
//	coreMetrics := registry.CoreMetrics()
//
//	// Service lifecycle tracking
//	coreMetrics.RecordServiceStatus("pipeline", 2) // 2 = running
//
//	// Message flow metrics
//	coreMetrics.RecordMessageReceived("mqtt-input", "sensor_reading")
//	coreMetrics.RecordMessageProcessed("pipeline", "sensor_reading", "success")
//	coreMetrics.RecordMessagePublished("nats-output", "sembridge.commands.released")
//	coreMetrics.RecordProcessingDuration("pipeline", "evaluate", 150*time.Millisecond)
//
//	// Error tracking
//	coreMetrics.RecordError("oracle", "timeout")
//
//	// NATS connectivity
//	coreMetrics.RecordNATSStatus(true)
//	coreMetrics.RecordNATSRTT(3 * time.Millisecond)
//	coreMetrics.RecordNATSReconnect()
//
// # Service-Specific Metrics
//
// Services register custom metrics through the registry:
//
//	consultCounter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "sembridge",
//	    Subsystem: "oracle",
//	    Name:      "consultations_total",
//	    Help:      "Total oracle consultations",
//	})
//	err := registry.RegisterCounter("oracle", "consultations_total", consultCounter)
//
// Vector metrics carry labels for multi-dimensional data:
//
//	verdicts := prometheus.NewCounterVec(
//	    prometheus.CounterOpts{
//	        Namespace: "sembridge",
//	        Subsystem: "validator",
//	        Name:      "verdicts_total",
//	        Help:      "Validation verdicts by stage and outcome",
//	    },
//	    []string{"stage", "outcome"},
//	)
//	err = registry.RegisterCounterVec("validator", "verdicts_total", verdicts)
//
//	verdicts.WithLabelValues("rate_limit", "rejected").Inc()
//
// Registration keys are "service.metric", so two services can never silently
// share a collector. Underneath, prometheus still enforces global metric name
// uniqueness; a second registration of the same prometheus name fails with a
// conflict error.
//
// # HTTP Server
//
// The server provides three endpoints of its own:
//
//   - GET / - plain-text index of mounted endpoints
//   - GET /metrics - Prometheus-formatted metrics (default path, configurable)
//   - GET /health - plain OK liveness check
//
// The binary mounts additional operational handlers before Start:
//
//	server := metric.NewServer(":9090", "/metrics", registry, securityCfg)
//	server.HandleFunc("/status", statusHandler)
//	server.HandleFunc("/trigger", triggerHandler)
//
// Server configuration:
//
//	// Default configuration (addr :9090, path /metrics)
//	server := metric.NewServer("", "", registry, securityCfg)
//
//	// Custom configuration
//	server := metric.NewServer("127.0.0.1:8080", "/prometheus", registry, securityCfg)
//
//	// Start server (blocking; returns nil after Stop)
//	if err := server.Start(); err != nil {
//	    log.Fatalf("Failed to start metrics server: %v", err)
//	}
//
// When the platform security config enables server TLS, the endpoint serves
// HTTPS using the configured certificate (see the tlsutil package).
//
// # MetricsRegistrar Interface
//
// Components accept the MetricsRegistrar interface for dependency injection:
//
//	type Validator struct {
//	    metrics metric.MetricsRegistrar
//	}
//
//	func NewValidator(metrics metric.MetricsRegistrar) *Validator {
//	    counter := prometheus.NewCounter(prometheus.CounterOpts{
//	        Name: "commands_validated_total",
//	        Help: "Total commands validated",
//	    })
//	    metrics.RegisterCounter("validator", "commands_validated_total", counter)
//
//	    return &Validator{metrics: metrics}
//	}
//
// This enables testing with mock registrars and provides loose coupling.
//
// # Thread Safety
//
// All registry operations are thread-safe:
//   - Registration methods use mutex protection
//   - Metric recording is lock-free (Prometheus guarantee)
//   - CoreMetrics() returns a thread-safe shared instance
//   - PrometheusRegistry() is safe for concurrent access
//
// # Error Handling
//
// Registration methods return classified errors for:
//
//   - Duplicate registration: same service.metric key registered twice (invalid)
//   - Prometheus conflicts: same prometheus metric name registered twice (invalid)
//   - Internal registration failures (fatal)
//
// The Server.Start() method returns errors for a server that is already
// running, a nil registry, TLS configuration failures, and HTTP listener
// failures (port in use, permission denied).
//
// # Design Decisions
//
// Centralized Registry: a single registry per process ensures a consistent
// metric namespace, prevents duplication, and gives the HTTP server one
// gather point.
//
// Core vs Service Metrics: platform-level metrics (core) are separated from
// pipeline-stage metrics so infrastructure health is distinguishable from
// evaluation health. The core registry never carries domain metrics like
// cycle counts or oracle latencies; those belong to the stages that own them.
//
// Prometheus Direct Integration: the official Prometheus client is used
// rather than an abstraction to leverage native features and stay compatible
// with the Prometheus ecosystem.
//
// No Context in Server.Start(): Start() blocks like http.ListenAndServe.
// Callers run it in a goroutine and use Stop() for shutdown.
package metric
