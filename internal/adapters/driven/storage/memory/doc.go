// Package memory provides in-memory implementations of the driven store
// ports. Used by service tests and as a lightweight backend for tooling
// that does not need persistence.
package memory
