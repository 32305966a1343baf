package services

import "github.com/lexdata-bo/normadex/internal/core/ports/driven"

// Configuration keys shared by the ingest and search services.
const (
	keyActiveModel           = "active_model"
	keySimilarityThreshold   = "similarity_threshold"
	keySearchLimit           = "search_limit"
	keySegmentationTolerance = "segmentation_tolerance"
	keyReplaceOnConflict     = "replace_on_conflict"
	keyHybridTextWeight      = "hybrid_text_weight"
	keyHybridVectorWeight    = "hybrid_vector_weight"
)

// Engine defaults, used when the config store is nil or a key is unset.
const (
	defaultModel     = "text-embedding-3-small"
	defaultThreshold = 0.7
	defaultLimit     = 10
	defaultTolerance = 0
	defaultTextW     = 0.4
	defaultVectorW   = 0.6
)

func cfgString(c driven.ConfigStore, key, def string) string {
	if c == nil {
		return def
	}
	if v := c.GetString(key); v != "" {
		return v
	}
	return def
}

func cfgInt(c driven.ConfigStore, key string, def int) int {
	if c == nil {
		return def
	}
	if _, ok := c.Get(key); !ok {
		return def
	}
	return c.GetInt(key)
}

func cfgFloat(c driven.ConfigStore, key string, def float64) float64 {
	if c == nil {
		return def
	}
	if _, ok := c.Get(key); !ok {
		return def
	}
	return c.GetFloat(key)
}

func cfgBool(c driven.ConfigStore, key string, def bool) bool {
	if c == nil {
		return def
	}
	if _, ok := c.Get(key); !ok {
		return def
	}
	return c.GetBool(key)
}
