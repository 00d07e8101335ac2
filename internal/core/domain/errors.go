package domain

import "errors"

// Domain errors represent business logic failures.
// Every failure that reaches a caller wraps exactly one of these.
var (
	// ErrValidation indicates malformed query or parameters.
	// Not retried; surfaced to the caller immediately.
	ErrValidation = errors.New("validation error")

	// ErrUnknownItem indicates the referenced item is absent from the live generation.
	ErrUnknownItem = errors.New("unknown item")

	// ErrUnknownArtifact indicates the referenced artifact has no registered entry.
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrBuildInProgress indicates a build of the same artifact is already running.
	// The caller may retry later.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrIntegrityViolation indicates a checksum, row count or dependency mismatch.
	// The affected generation is never served.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrUpstreamTimeout indicates an embedding or generation service did not answer in time.
	// Retryable with backoff.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrNotFound indicates a requested record does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrNoGeneration indicates no validated generation is live for a corpus yet.
	ErrNoGeneration = errors.New("no index generation available")

	// ErrEmbeddingUnavailable indicates the embedding backend is not configured or failed.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates no text generation backend is configured.
	// The assistant falls back to extractive answers.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrUnsupportedType indicates an unknown provider or corpus name.
	ErrUnsupportedType = errors.New("unsupported type")
)

// IsRetryable reports whether a failed operation may succeed if repeated later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrBuildInProgress)
}

// IsNotFound reports whether err is one of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrUnknownArtifact) ||
		errors.Is(err, ErrNotFound)
}
