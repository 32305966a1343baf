// Package services implements the driving ports: source registry,
// ingest lifecycle orchestration, similarity search and audit recording.
//
// Services depend only on domain types and driven ports, never on
// concrete adapters.
package services
