// Package driven declares what the retrieval core needs from the outside:
// model backends (EmbeddingService, LLMService), storage (ArtifactStore,
// ManifestStore, CacheStore, SchedulerStore, ConfigStore), inputs
// (CatalogSource, DocumentSource) and the per-generation VectorIndexBuilder.
//
// LLMService and ChangeNotifier may be absent. The assistant then answers
// extractively and rebuilds only follow the schedule.
package driven
