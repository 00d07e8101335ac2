package domain

import "time"

// CacheStats reports cache health and effectiveness.
type CacheStats struct {
	Backend string `json:"backend"`
	Healthy bool   `json:"healthy"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Engine names used in status reports and cache fingerprints.
const (
	EngineRecommend = "recommend"
	EngineSearch    = "search"
	EngineAssistant = "assistant"
)

// EngineStatus reports whether an engine can serve requests.
type EngineStatus struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	Generation uint64 `json:"generation_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ArtifactSummary condenses the current manifest entry of one artifact.
type ArtifactSummary struct {
	ArtifactName string    `json:"artifact_name"`
	Version      string    `json:"version"`
	RowCount     int       `json:"row_count"`
	BuiltAt      time.Time `json:"built_at"`
	Model        string    `json:"model,omitempty"`
}

// Status is the operational snapshot of the retrieval core.
type Status struct {
	Healthy    bool                 `json:"healthy"`
	CheckedAt  time.Time            `json:"checked_at"`
	Cache      CacheStats           `json:"cache"`
	Manifest   []ArtifactSummary    `json:"manifest"`
	Violations []IntegrityViolation `json:"violations,omitempty"`
	Engines    []EngineStatus       `json:"engines"`
	Builds     []BuildRecord        `json:"recent_builds,omitempty"`
}
