// Package services is the retrieval core: the embedder, index generations
// and the manifest, the recommendation, search and assistant engines, the
// result cache, rebuilds and their scheduler. Services reach storage and
// model backends only through internal/core/ports/driven.
package services
