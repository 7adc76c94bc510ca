// Package main implements the entry point for the SemBridge daemon.
// SemBridge turns raw sensor readings into fuzzy linguistic state,
// consults an LLM oracle rule by rule, and dispatches the validated
// device commands that survive safety checks and arbitration.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/c360/sembridge/command"
	"github.com/c360/sembridge/component"
	"github.com/c360/sembridge/config"
	"github.com/c360/sembridge/devices"
	"github.com/c360/sembridge/fuzzy"
	mqttinput "github.com/c360/sembridge/input/mqtt"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/natsclient"
	"github.com/c360/sembridge/oracle"
	natsoutput "github.com/c360/sembridge/output/nats"
	"github.com/c360/sembridge/pipeline"
	"github.com/c360/sembridge/pkg/tlsutil"
	"github.com/c360/sembridge/rules"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sembridge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Env file must load before flags read their env fallbacks
	loadEnvFile()

	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Assemble the pipeline and its components
	ctx := context.Background()
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	// Run application with signal handling
	return app.runWithSignalHandling(ctx, cliCfg.ShutdownTimeout)
}

// loadEnvFile loads environment from a dotenv file. SEMBRIDGE_ENV_FILE
// selects the file; otherwise a .env in the working directory is
// loaded when present.
func loadEnvFile() {
	if path := os.Getenv("SEMBRIDGE_ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "WARNING: env file %s not loaded: %v\n", path, err)
		}
		return
	}
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: .env not loaded: %v\n", err)
	}
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting SemBridge (fuzzy semantics to device commands)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// application bundles everything the daemon runs: the evaluation
// pipeline, its ingest and dispatch components, and the operational
// HTTP endpoint.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	engine     *fuzzy.Engine
	store      *rules.MemoryStore
	oracle     *oracle.OpenAIClient
	natsClient *natsclient.Client // nil when NATS dispatch is disabled
	input      *mqttinput.Input   // nil when MQTT ingest is disabled
	coord      *pipeline.Coordinator
	server     *metric.Server

	// busLog mirrors lifecycle milestones onto sembridge.logs.app for
	// remote tailing. It carries no local handler; the slog lines next
	// to each call remain the local record.
	busLog *component.Logger

	// components in start order; stopped in reverse
	components []component.LifecycleComponent

	// trigger runs a cycle outside the timer, fed by POST /trigger
	trigger chan struct{}
}

// buildApplication loads the contract documents and assembles the
// pipeline: dispatch first, then the coordinator, ingest last, so
// start order matches dependency order.
func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	registry := metric.NewMetricsRegistry()

	engine, store, deviceRegistry, err := loadContracts(ctx, cfg, logger, registry)
	if err != nil {
		return nil, err
	}

	oracleClient, err := buildOracle(cfg, logger, registry)
	if err != nil {
		return nil, err
	}

	validator, err := command.NewValidator(command.ValidatorConfig{
		Registry:        deviceRegistry,
		AllowedCommands: cfg.Safety.AllowedCommands,
		RateLimit:       cfg.Safety.RateLimit,
		RateWindow:      cfg.Safety.RateWindow,
		Logger:          logger.With("component", "validator"),
		Metrics:         registry,
	})
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}

	app := &application{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		engine:   engine,
		store:    store,
		oracle:   oracleClient,
		trigger:  make(chan struct{}, 1),
	}

	dispatcher, err := app.buildDispatcher()
	if err != nil {
		return nil, err
	}

	// The nil-publisher branch avoids handing a typed nil client to the
	// Publisher interface.
	if app.natsClient != nil {
		app.busLog = component.NewLogger("app", app.natsClient, nil)
	} else {
		app.busLog = component.NewLogger("app", nil, nil)
	}

	coord, err := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Engine:          engine,
		Selector:        rules.NewSelector(store),
		Oracle:          oracleClient,
		Validator:       validator,
		Dispatcher:      dispatcher,
		PendingCapacity: cfg.Pipeline.PendingCapacity,
		PendingTTL:      cfg.Pipeline.PendingTTL,
		Workers:         cfg.Pipeline.Workers,
		QueueSize:       cfg.Pipeline.QueueSize,
		HistorySize:     cfg.Pipeline.HistorySize,
		Logger:          logger.With("component", "coordinator"),
		Metrics:         registry,
	})
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}
	app.coord = coord
	app.components = append(app.components, coord)

	if err := app.buildInput(); err != nil {
		return nil, err
	}

	app.server = metric.NewServer(cfg.HTTP.Addr, "", registry, cfg.Security)
	app.mountHandlers()

	return app, nil
}

// loadContracts reads the three contract documents and builds the
// fuzzy engine, the rule store, and the device registry from them.
func loadContracts(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*fuzzy.Engine, *rules.MemoryStore, *devices.StaticRegistry, error) {
	fuzzyCfg, err := config.LoadSensorTypes(cfg.Documents.SensorTypes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load sensor types: %w", err)
	}
	engine, err := fuzzy.NewEngine(ctx, fuzzyCfg,
		fuzzy.WithMetricsRegistry(registry),
		fuzzy.WithLogger(logger.With("component", "fuzzy-engine")))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build fuzzy engine: %w", err)
	}

	ruleRecords, err := config.LoadRules(cfg.Documents.Rules)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load rules: %w", err)
	}
	store, err := rules.NewMemoryStore(ruleRecords...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build rule store: %w", err)
	}

	deviceRegistry, err := config.LoadDevices(cfg.Documents.Devices)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load devices: %w", err)
	}

	slog.Info("Contract documents loaded",
		"sensor_types", len(engine.SensorTypes()),
		"rules", len(ruleRecords),
		"devices", deviceRegistry.Len())

	return engine, store, deviceRegistry, nil
}

// buildOracle creates the inference client from config. Construction
// is offline; reachability is checked at startup by verifyOracle.
func buildOracle(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*oracle.OpenAIClient, error) {
	client, err := oracle.NewOpenAIClient(oracle.Config{
		BaseURL:           cfg.Oracle.BaseURL,
		Model:             cfg.Oracle.Model,
		FallbackModels:    cfg.Oracle.FallbackModels,
		APIKey:            cfg.Oracle.APIKey,
		Timeout:           cfg.Oracle.Timeout,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
		Burst:             cfg.Oracle.Burst,
		Params:            cfg.Oracle.Params,
		PromptTemplate:    cfg.Oracle.PromptTemplate,
		Logger:            logger.With("component", "oracle"),
		Registry:          registry,
	})
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}
	return client, nil
}

// buildDispatcher wires command dispatch. Without NATS the pipeline
// still evaluates and audits; released commands go nowhere.
func (app *application) buildDispatcher() (pipeline.Dispatcher, error) {
	if !app.cfg.NATS.Enabled {
		app.logger.Warn("NATS dispatch disabled; released commands will be dropped")
		return pipeline.NoopDispatcher{}, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(app.logger.With("component", "natsclient")),
		natsclient.WithMetrics(app.registry),
	}
	if app.cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(app.cfg.NATS.MaxReconnects))
	}
	if app.cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(app.cfg.NATS.ReconnectWait))
	}
	if app.cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(app.cfg.NATS.Username, app.cfg.NATS.Password))
	}
	if app.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(app.cfg.NATS.Token))
	}
	if hasClientTLS(app.cfg) {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(app.cfg.Security.TLS.Client)
		if err != nil {
			return nil, fmt.Errorf("load NATS TLS config: %w", err)
		}
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}

	client, err := natsclient.NewClient(app.cfg.NATS.URLs, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	app.natsClient = client

	output := natsoutput.NewOutput(natsoutput.OutputDeps{
		Name: "nats-output",
		Config: natsoutput.OutputConfig{
			CommandSubject: app.cfg.NATS.CommandSubject,
			AuditSubject:   app.cfg.NATS.AuditSubject,
		},
		Publisher:       client,
		MetricsRegistry: app.registry,
		Logger:          app.logger.With("component", "nats-output"),
	})
	app.components = append(app.components, output)

	return output, nil
}

// buildInput wires MQTT ingest when enabled.
func (app *application) buildInput() error {
	if !app.cfg.MQTT.Enabled {
		app.logger.Warn("MQTT ingest disabled; evaluation cycles will see no readings")
		return nil
	}

	inputCfg := mqttinput.InputConfig{
		BrokerURL:      app.cfg.MQTT.BrokerURL,
		ClientID:       app.cfg.MQTT.ClientID,
		Topic:          app.cfg.MQTT.Topic,
		QoS:            app.cfg.MQTT.QoS,
		Username:       app.cfg.MQTT.Username,
		Password:       app.cfg.MQTT.Password,
		ConnectTimeout: app.cfg.MQTT.ConnectTimeout,
		KeepAlive:      app.cfg.MQTT.KeepAlive,
	}
	if needsTLS(inputCfg.BrokerURL) {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(app.cfg.Security.TLS.Client)
		if err != nil {
			return fmt.Errorf("load MQTT TLS config: %w", err)
		}
		inputCfg.TLS = tlsConfig
	}

	input := mqttinput.NewInput(mqttinput.InputDeps{
		Name:            "mqtt-input",
		Config:          inputCfg,
		MetricsRegistry: app.registry,
		Logger:          app.logger.With("component", "mqtt-input"),
	})
	app.input = input
	app.components = append(app.components, input)

	return nil
}

// needsTLS reports whether the broker URL uses a TLS scheme.
func needsTLS(brokerURL string) bool {
	return strings.HasPrefix(brokerURL, "ssl://") ||
		strings.HasPrefix(brokerURL, "tls://") ||
		strings.HasPrefix(brokerURL, "wss://")
}

// hasClientTLS reports whether any client-side TLS settings are
// configured.
func hasClientTLS(cfg *config.Config) bool {
	client := cfg.Security.TLS.Client
	return len(client.CAFiles) > 0 || client.CertFile != "" ||
		client.InsecureSkipVerify || client.MinVersion != ""
}

// runWithSignalHandling starts everything and runs until a shutdown
// signal arrives or a fatal component error.
func (app *application) runWithSignalHandling(ctx context.Context, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if app.natsClient != nil {
		if err := connectToNATS(signalCtx, app.natsClient); err != nil {
			return err
		}
	}
	app.verifyOracle(signalCtx)

	if err := app.startComponents(signalCtx, shutdownTimeout); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		return app.server.Start()
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return app.server.Stop()
	})
	group.Go(func() error {
		return app.coord.RunLoopTriggered(groupCtx,
			app.cfg.Pipeline.Interval, app.readingSource(), app.trigger)
	})

	slog.Info("SemBridge started",
		"interval", app.cfg.Pipeline.Interval,
		"http", app.server.Address(),
		"mqtt", app.cfg.MQTT.Enabled,
		"nats", app.cfg.NATS.Enabled)
	app.busLog.InfoContext(signalCtx, "SemBridge started")

	err := group.Wait()
	slog.Info("Shutting down")
	// The signal context is done by now; mirror over the background
	// context while the NATS connection is still open.
	app.busLog.Info("Shutting down")

	if stopErr := app.stopComponents(shutdownTimeout); stopErr != nil && err == nil {
		err = stopErr
	}

	slog.Info("SemBridge shutdown complete")
	app.busLog.Info("SemBridge shutdown complete")
	return err
}

// connectToNATS establishes the NATS connection and waits for it to be
// ready.
func connectToNATS(ctx context.Context, client *natsclient.Client) error {
	slog.Info("Connecting to NATS")
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// verifyOracle checks inference endpoint reachability at startup. A
// failure is logged, not fatal; the endpoint can come up later and
// cycle evaluations classify their own errors.
func (app *application) verifyOracle(ctx context.Context) {
	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.oracle.Verify(verifyCtx); err != nil {
		slog.Warn("Oracle verification failed", "error", err)
		return
	}
	slog.Info("Oracle reachable", "model", app.oracle.Model())
}

// readingSource picks where cycle readings come from. Without MQTT the
// source is empty and every tick skips.
func (app *application) readingSource() pipeline.ReadingSource {
	if app.input != nil {
		return app.input.Snapshot
	}
	return func(context.Context) ([]pipeline.Reading, error) {
		return nil, nil
	}
}

// startComponents initializes and starts components in dependency
// order, unwinding the already-started ones on failure.
func (app *application) startComponents(ctx context.Context, stopTimeout time.Duration) error {
	for i, comp := range app.components {
		meta := comp.Meta()
		if err := comp.Initialize(); err != nil {
			app.stopStarted(i, stopTimeout)
			return fmt.Errorf("initialize %s: %w", meta.Name, err)
		}
		if err := comp.Start(ctx); err != nil {
			app.stopStarted(i, stopTimeout)
			return fmt.Errorf("start %s: %w", meta.Name, err)
		}
		slog.Info("Component started", "component", meta.Name, "type", meta.Type)
	}
	return nil
}

// stopStarted unwinds components [0, n) in reverse after a failed
// startup.
func (app *application) stopStarted(n int, timeout time.Duration) {
	for i := n - 1; i >= 0; i-- {
		if err := app.components[i].Stop(timeout); err != nil {
			slog.Error("Component stop failed",
				"component", app.components[i].Meta().Name,
				"error", err)
		}
	}
}

// stopComponents stops everything in reverse start order.
func (app *application) stopComponents(timeout time.Duration) error {
	var firstErr error
	for i := len(app.components) - 1; i >= 0; i-- {
		comp := app.components[i]
		if err := comp.Stop(timeout); err != nil {
			slog.Error("Component stop failed",
				"component", comp.Meta().Name,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			slog.Info("Component stopped", "component", comp.Meta().Name)
		}
	}
	return firstErr
}

// close releases resources that outlive the component lifecycle.
func (app *application) close(ctx context.Context) {
	if app.engine != nil {
		_ = app.engine.Close()
	}
	if app.natsClient != nil {
		if err := app.natsClient.Close(ctx); err != nil {
			slog.Error("NATS close failed", "error", err)
		}
	}
}
