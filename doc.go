// Package sembridge turns raw IoT sensor readings into validated device
// commands, combining fuzzy-logic interpretation with large language model
// reasoning behind a deterministic safety perimeter.
//
// # Philosophy: Deterministic Rails Around a Probabilistic Core
//
// SemBridge treats the language model as an untrusted reasoning oracle.
// The model is consulted, never obeyed:
//
// Deterministic layer (owns every decision that reaches a device):
//   - Fuzzification: numeric readings become linguistic states via fixed
//     membership functions declared in contract documents
//   - Validation: structural checks, device capabilities, parameter
//     constraints, command whitelist, rate limits
//   - Arbitration: per-device conflict resolution by rule priority
//   - Confirmation: critical commands park in a pending queue until an
//     operator confirms or rejects them
//
// Probabilistic layer (proposes, cannot dispose):
//   - Oracle: one chat completion per enabled rule, answering whether the
//     current linguistic state satisfies the rule and which device action
//     follows
//
// SemBridge MUST NOT contain:
//   - Direct device actuation (commands are published; actuators subscribe)
//   - Model hosting or fine-tuning (any OpenAI-compatible endpoint serves)
//   - Domain vocabularies baked into code (sensor semantics, rules, and
//     device capabilities live in JSON contract documents)
//
// # Architecture
//
// Each evaluation cycle flows through a fixed pipeline:
//
//	┌─────────────────────────────────────┐
//	│          MQTT Ingest                │  batched sensor readings,
//	│      (input/mqtt.Input)             │  snapshot per cycle
//	└─────────────────────────────────────┘
//	           ↓ readings
//	┌─────────────────────────────────────┐
//	│         Fuzzy Engine                │  membership functions,
//	│        (fuzzy.Engine)               │  linguistic interpretation
//	└─────────────────────────────────────┘
//	           ↓ world state
//	┌─────────────────────────────────────┐
//	│   Rule Selection + LLM Oracle       │  enabled rules fan out to a
//	│  (rules.Selector, oracle package)   │  worker pool, one consult each
//	└─────────────────────────────────────┘
//	           ↓ verdicts
//	┌─────────────────────────────────────┐
//	│   Synthesis, Validation,            │  whitelist, capabilities,
//	│   Arbitration (command package)     │  rate limits, conflicts
//	└─────────────────────────────────────┘
//	           ↓ released commands
//	┌─────────────────────────────────────┐
//	│     NATS Dispatch + Audit           │  sembridge.commands.released,
//	│      (output/nats.Output)           │  sembridge.audit
//	└─────────────────────────────────────┘
//
// The pipeline.Coordinator orchestrates the cycle: it guards against
// overlapping runs, feeds the oracle worker pool, routes critical commands
// into the pending queue, and records an audit event for every verdict.
// Cycles fire on a timer or on demand via the operational HTTP surface.
//
// # Packages
//
// Evaluation pipeline:
//   - fuzzy: membership functions, linguistic variables, world state
//   - rules: rule model, in-memory store, enabled-rule selection
//   - oracle: OpenAI-compatible chat client with fallback models and
//     rate limiting
//   - command: command synthesis, validation chain, conflict resolution
//   - pipeline: cycle coordinator, pending-confirmation queue, audit trail
//   - devices: device registry, capabilities, parameter constraints
//
// Transport:
//   - input/mqtt: MQTT subscriber batching readings between cycles
//   - output/nats: command dispatch and audit publishing over NATS
//   - natsclient: NATS connection management
//
// Infrastructure:
//   - component: component lifecycle, metadata, health reporting
//   - config: configuration and contract-document loading
//   - metric: Prometheus metrics and the operational HTTP server
//   - errors: structured error handling with severity classification
//   - pkg/buffer: bounded ring buffers with overflow policies
//   - pkg/cache: LRU caching
//   - pkg/retry: retry policies
//   - pkg/timestamp: loose sensor timestamp normalization
//   - pkg/worker: bounded worker pools
//   - pkg/security, pkg/tlsutil: TLS configuration
//
// # Usage Patterns
//
// Assembling an evaluation pipeline:
//
//	// Load contract documents
//	fuzzyCfg, _ := config.LoadSensorTypes("configs/sensor_types.json")
//	engine, _ := fuzzy.NewEngine(ctx, fuzzyCfg)
//
//	ruleList, _ := config.LoadRules("configs/rules.json")
//	store, _ := rules.NewMemoryStore(ruleList...)
//
//	registry, _ := config.LoadDevices("configs/devices.json")
//
//	// Deterministic perimeter
//	validator, _ := command.NewValidator(command.ValidatorConfig{
//	    Registry:        registry,
//	    AllowedCommands: []string{"set_temperature", "lock"},
//	})
//
//	// Coordinator ties the stages together
//	coord, _ := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
//	    Engine:    engine,
//	    Selector:  rules.NewSelector(store),
//	    Oracle:    oracleClient,
//	    Validator: validator,
//	})
//
//	// One cycle over a snapshot of readings
//	summary, _ := coord.RunCycle(ctx, readings)
//
// Continuous operation with a manual trigger channel:
//
//	trigger := make(chan struct{}, 1)
//	go coord.RunLoopTriggered(ctx, time.Minute, input.Snapshot, trigger)
//
// Operator review of parked critical commands:
//
//	for _, p := range coord.PendingCommands() {
//	    fmt.Println(p.Command.CommandID, p.Command.DeviceID)
//	}
//	coord.ConfirmPending(ctx, commandID) // dispatch now
//	coord.RejectPending(ctx, commandID, "door is propped open")
//
// # Design Principles
//
// Contracts Over Code:
//   - Sensor semantics, rules, and device capabilities are JSON documents
//   - Operators edit documents and toggle rules at runtime; code changes
//     are reserved for new pipeline stages
//
// Propose/Validate Split:
//   - The oracle proposes actions in constrained plain text
//   - Every proposal passes the full validation chain before dispatch
//   - Unparseable or off-whitelist proposals reject with an audit record
//
// Bounded Everything:
//   - Worker pools cap oracle concurrency
//   - Rate limiters cap both oracle calls and per-device command rates
//   - The pending queue evicts by TTL and capacity, never grows unbounded
//
// Testability:
//   - Explicit dependencies, no globals
//   - The oracle client points at any OpenAI-compatible URL, so tests run
//     hermetically against httptest stubs
//
// # Binary
//
// Build and run the daemon:
//
//	# Build
//	go build ./cmd/sembridge
//
//	# Validate configuration and contract documents, then exit
//	./sembridge --config configs/sembridge.json --validate
//
//	# Run with timer-driven cycles and the operational HTTP surface
//	./sembridge --config configs/sembridge.json
//
// The operational HTTP server exposes Prometheus metrics, component
// status, pending-command review, runtime rule toggles, and a manual
// cycle trigger.
//
// # Version
//
// Current: v0.1.0 (single-node evaluation daemon)
package sembridge
