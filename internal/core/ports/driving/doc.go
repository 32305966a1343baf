// Package driving provides interfaces for use-case entry points
// (primary/inbound ports) consumed by the external pipeline binaries.
package driving
