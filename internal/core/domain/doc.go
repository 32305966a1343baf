// Package domain defines the core business entities for Normadex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A catalogued origin site for normative texts
//   - Document: One complete norm (law, decree, resolution, ruling)
//   - Article: A numbered subdivision of a Document
//   - Embedding: A vector representation of an Article per model
//   - AuditEntry: An append-only pipeline operation record
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
