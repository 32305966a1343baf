// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - SourceStore: Source catalog persistence
//   - DocumentStore: Document and article persistence plus FTS5 full-text search
//   - EmbeddingStore: Per-model article vectors with dimension enforcement
//   - AuditLog: Append-only pipeline operation records
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Embeddings are stored as little-endian float32 BLOBs.
// Cascade deletes Document → Article → Embedding are declared as foreign keys
// and executed inside one transaction, so readers never observe a partial
// cascade.
//
// # Data Location
//
// By default, the database is stored at ~/.normadex/data/normadex.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
