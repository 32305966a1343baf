// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): persistent stores, the vector index
// and the audit log sink.
package driven
