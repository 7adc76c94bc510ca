// Package testutil provides shared test doubles and fixtures for the
// pipeline's tests.
//
// # Overview
//
// The package contains an in-memory oracle, an in-memory publisher, and
// the canonical configuration documents, so tests across packages agree
// on one small domain (a living-room temperature setup) instead of each
// inventing its own. Nothing here talks to a network.
//
// # Stub Oracle
//
// StubOracle implements oracle.Client with scripted replies per rule id:
//
//	o := testutil.NewStubOracle()
//	o.Script("rule-ac", "ACTION: ac_living_room, set_temperature, temperature=22")
//	o.Fail("rule-heater", errors.ErrOracleUnreachable)
//
// Unscripted rules reply NO_ACTION, so a test only describes the rules
// it exercises. Call counts and the last linguistic state per rule are
// recorded for verification.
//
// # Recording Publisher
//
// RecordingPublisher satisfies the NATS output's Publisher interface and
// stores payloads per subject:
//
//	pub := testutil.NewRecordingPublisher()
//	...
//	msgs := pub.Messages("sembridge.commands.released")
//
// # Canonical Documents
//
// SensorTypesDoc, RulesDoc, and DevicesDoc are loadable configuration
// documents covering the common cases: a sensor type with three
// linguistic terms, enabled and disabled rules at distinct priorities,
// and devices with constraints including a critical lock.
// WriteDocuments writes all three into a directory, typically t.TempDir().
package testutil
