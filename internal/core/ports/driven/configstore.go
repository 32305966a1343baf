package driven

// ConfigStore provides persistent engine configuration.
// Keys used by the core:
//
//	active_model           — embedding model the vectorize stage targets
//	similarity_threshold   — default minimum cosine similarity (0.7)
//	search_limit           — default result cap (10)
//	segmentation_tolerance — allowed |declared − persisted| article count (0)
//	replace_on_conflict    — extractionComplete policy for existing documents
//	hybrid_text_weight     — text leg weight in hybrid merge (0.4)
//	hybrid_vector_weight   — vector leg weight in hybrid merge (0.6)
type ConfigStore interface {
	// Get retrieves a raw configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value, "" when absent.
	GetString(key string) string

	// GetInt retrieves an integer value, 0 when absent.
	GetInt(key string) int

	// GetFloat retrieves a float value, 0 when absent.
	GetFloat(key string) float64

	// GetBool retrieves a boolean value, false when absent.
	GetBool(key string) bool

	// Set stores a configuration value.
	Set(key string, value any) error

	// Save persists the configuration.
	Save() error
}
