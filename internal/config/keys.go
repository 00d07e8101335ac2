package config

import (
	"slices"
	"strconv"
	"strings"
)

var knownKeys = []string{
	KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey,
	KeyEmbedDimensions, KeyEmbedTimeout, KeyEmbedAttempts, KeyEmbedRPS, KeyEmbedBatchSize,
	KeyLLMProvider, KeyLLMModel, KeyLLMBaseURL, KeyLLMAPIKey, KeyLLMTimeout,
	KeyLLMAttempts, KeyLLMMaxTokens, KeyLLMTemperature, KeyLLMLanguage,
	KeyRecOverFetch, KeyRecMMRLambda, KeyRecMinSimilarity,
	KeySearchSemantic, KeySearchLexical, KeySearchOverFetch, KeySearchMinSim, KeySearchExpansions,
	KeyAskTopN, KeyAskMinSimilarity, KeyAskDirectScore, KeyAskExcerpt, KeyAskChunkSize, KeyAskChunkOverlap,
	KeyTextLanguage, KeyCacheEnabled, KeyCacheTTL, KeyCacheMaxEntries,
	KeyBuildMinInterval, KeyBuildAttempts, KeyBuildBackoff,
	KeyDataDir, KeyArtifactDir, KeyPromptDir,
	KeyCatalogDriver, KeyCatalogDSN, KeyCatalogPath, KeyCatalogWatch,
	KeyDocumentsDir, KeyServerAddr, KeyServerRateLimit, KeyVerbose,
	KeySchedEnabled, KeySchedRebuild, KeySchedCachePurge,
}

// KnownKeys returns every key Load reads, sorted.
func KnownKeys() []string {
	keys := slices.Clone(knownKeys)
	slices.Sort(keys)
	return keys
}

// IsKnownKey reports whether Load reads key.
func IsKnownKey(key string) bool {
	return slices.Contains(knownKeys, key)
}

// IsSecretKey reports whether the value of key should be masked when shown.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key") || key == KeyCatalogDSN
}

// ParseValue converts a command line value to the TOML type it reads as:
// booleans, integers and floats are typed, anything else stays a string.
// Durations stay strings ("30m").
func ParseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if b, err := strconv.ParseBool(raw); err == nil && strings.ContainsAny(raw[:1], "tfTF") {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
