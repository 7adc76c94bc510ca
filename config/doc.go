// Package config provides configuration management for the sembridge
// process.
//
// This package handles loading and validation of the application
// configuration from JSON files and environment variables, and the
// schema-checked loading of the three contract documents the core
// packages consume: sensor type configuration, rule records, and device
// capability descriptors.
//
// # Core Components
//
// Config: Main configuration structure covering logging, the oracle
// endpoint, pipeline sizing, safety limits, broker connections, the
// operational HTTP endpoint, and contract document paths.
//
// Loader: Loads configuration with layer merging (defaults + files in
// order) and SEMBRIDGE_* environment overrides for deployment knobs.
//
// Contract loaders: LoadSensorTypes, LoadRules, and LoadDevices read a
// document, validate it against an embedded JSON Schema, and hand the
// result to the owning package's parser.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json") // Overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Loading the contract documents:
//
//	fuzzyCfg, err := config.LoadSensorTypes(cfg.Documents.SensorTypes)
//	ruleSet, err := config.LoadRules(cfg.Documents.Rules)
//	registry, err := config.LoadDevices(cfg.Documents.Devices)
//
// Configuration errors at load time are fatal: the process refuses to
// start rather than run against a partial or malformed document.
package config
