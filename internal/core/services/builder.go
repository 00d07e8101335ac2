package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// Verify interface compliance.
var _ driving.RebuildService = (*Rebuilder)(nil)

// errEmptyCorpus marks a build with nothing to index.
var errEmptyCorpus = errors.New("corpus is empty")

// RebuilderDeps holds the collaborators of a Rebuilder.
type RebuilderDeps struct {
	Manifest  *Manifest
	Artifacts driven.ArtifactStore
	Embedder  *Embedder
	Catalog   driven.CatalogSource
	Documents driven.DocumentSource
	Pipeline  driven.PostProcessorPipeline
	Products  *IndexStore
	Knowledge *IndexStore
	Cache     *Cache
}

// Rebuilder builds, validates and promotes index generations.
// A build either registers one complete generation or leaves the
// previous one serving.
type Rebuilder struct {
	deps     RebuilderDeps
	settings domain.BuildSettings
	onChange func(ctx context.Context)
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRebuilder creates a rebuilder.
func NewRebuilder(deps RebuilderDeps, settings domain.BuildSettings) *Rebuilder {
	return &Rebuilder{
		deps:     deps,
		settings: settings,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// OnCatalogChange sets the hook run by CatalogChanged, typically a
// scheduler trigger. Without a hook a forced product rebuild runs in the background.
func (r *Rebuilder) OnCatalogChange(hook func(ctx context.Context)) {
	r.onChange = hook
}

// Store returns the index store of a corpus.
func (r *Rebuilder) Store(corpus domain.CorpusType) *IndexStore {
	switch corpus {
	case domain.CorpusProducts:
		return r.deps.Products
	case domain.CorpusDocuments:
		return r.deps.Knowledge
	default:
		return nil
	}
}

// TriggerRebuild builds a new generation of an index artifact.
// Non-forced requests are skipped while the live generation is younger
// than the configured minimum interval.
func (r *Rebuilder) TriggerRebuild(ctx context.Context, artifact string, force bool) (*domain.BuildRecord, error) {
	corpus, err := domain.CorpusForArtifact(artifact)
	if err != nil {
		return nil, err
	}
	artifact = corpus.Artifact()
	store := r.Store(corpus)
	if store == nil {
		return nil, fmt.Errorf("%w: %s has no index store", domain.ErrUnknownArtifact, artifact)
	}

	if cur := store.Current(); cur != nil && !force && r.settings.MinInterval > 0 {
		if age := r.now().Sub(cur.Info().BuiltAt); age < r.settings.MinInterval {
			logger.Info("rebuild %s: skipped, generation %d is %s old", artifact, cur.ID(), age.Round(time.Second))
			return &domain.BuildRecord{
				ArtifactName: artifact,
				Generation:   cur.ID(),
				Status:       domain.BuildSkipped,
				RowCount:     cur.Len(),
				StartedAt:    r.now().UTC(),
				EndedAt:      r.now().UTC(),
				Error:        "recent generation",
			}, nil
		}
	}

	if err := r.deps.Manifest.EnsureModel(ctx, r.deps.Embedder.ModelVersion(), r.deps.Embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", artifact, err)
	}

	rec, err := r.deps.Manifest.BeginBuild(ctx, artifact)
	if err != nil {
		return nil, err
	}
	logger.Section("Rebuild " + artifact)

	gen, buildErr := r.build(ctx, corpus, store, rec.Generation)
	switch {
	case errors.Is(buildErr, errEmptyCorpus):
		rec.Status = domain.BuildSkipped
		rec.Error = buildErr.Error()
		buildErr = nil
		logger.Warn("rebuild %s: nothing to index, previous generation keeps serving", artifact)
	case buildErr != nil:
		rec.Status = domain.BuildFailed
		rec.Error = buildErr.Error()
		logger.Error("rebuild %s generation %d failed: %v", artifact, rec.Generation, buildErr)
	default:
		rec.Status = domain.BuildSucceeded
		rec.RowCount = gen.Len()
	}

	if err := r.deps.Manifest.EndBuild(ctx, *rec); err != nil {
		logger.Error("rebuild %s: %v", artifact, err)
	}
	if buildErr != nil {
		return rec, fmt.Errorf("rebuild %s: %w", artifact, buildErr)
	}
	return rec, nil
}

// TriggerWithRetry runs TriggerRebuild, retrying retryable failures with
// exponential backoff up to the configured attempt budget.
func (r *Rebuilder) TriggerWithRetry(ctx context.Context, artifact string, force bool) (*domain.BuildRecord, error) {
	attempts := max(r.settings.MaxAttempts, 1)
	var (
		rec *domain.BuildRecord
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		rec, err = r.TriggerRebuild(ctx, artifact, force)
		if err == nil || !domain.IsRetryable(err) || attempt == attempts {
			return rec, err
		}
		delay := r.settings.RetryBackoff << (attempt - 1)
		logger.Warn("rebuild %s: attempt %d/%d: %v, retrying in %s", artifact, attempt, attempts, err, delay)
		if serr := r.sleep(ctx, delay); serr != nil {
			return rec, err
		}
	}
	return rec, err
}

// build collects the corpus, builds the generation, persists it, checks it
// and promotes it.
func (r *Rebuilder) build(ctx context.Context, corpus domain.CorpusType, store *IndexStore, genID uint64) (*Generation, error) {
	var (
		entries []domain.IndexedEntry
		lexical *LexicalModel
		err     error
	)
	switch corpus {
	case domain.CorpusProducts:
		entries, lexical, err = r.collectProducts(ctx)
	case domain.CorpusDocuments:
		entries, lexical, err = r.collectDocuments(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errEmptyCorpus
	}

	gen, err := store.Build(ctx, BuildInput{
		ID:           genID,
		ModelVersion: r.deps.Embedder.ModelVersion(),
		Dimensions:   r.deps.Embedder.Dimensions(),
		Entries:      entries,
		Lexical:      lexical,
	})
	if err != nil {
		return nil, err
	}

	artifact := corpus.Artifact()
	if err := r.deps.Artifacts.Save(ctx, artifact, gen.Artifact()); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	// Sanity check on what was written, not on what is in memory.
	entry := EntryFor(artifact, gen.Info())
	saved, err := r.deps.Artifacts.Load(ctx, artifact, genID)
	if err != nil {
		r.discard(ctx, artifact, genID)
		return nil, fmt.Errorf("reload artifact: %w", err)
	}
	if violations := r.deps.Manifest.Check(ctx, entry, saved); len(violations) > 0 {
		r.discard(ctx, artifact, genID)
		return nil, joinViolations(violations)
	}

	if err := r.deps.Manifest.Register(ctx, entry); err != nil {
		r.discard(ctx, artifact, genID)
		return nil, err
	}
	store.Swap(gen)
	return gen, nil
}

func (r *Rebuilder) collectProducts(ctx context.Context) ([]domain.IndexedEntry, *LexicalModel, error) {
	if r.deps.Catalog == nil {
		return nil, nil, fmt.Errorf("%w: no catalog source", domain.ErrUnknownArtifact)
	}
	items, err := r.deps.Catalog.ListItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list catalog items: %w", err)
	}

	active := make([]domain.CatalogItem, 0, len(items))
	for _, it := range items {
		if it.Active {
			active = append(active, it)
		}
	}
	logger.Debug("rebuild: %d active items of %d", len(active), len(items))

	texts := make([]string, len(active))
	tokens := make([][]string, len(active))
	for i, it := range active {
		texts[i] = textproc.ProductText(it)
		tokens[i] = strings.Fields(texts[i])
	}
	embeddings, err := r.deps.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	lexical := FitLexicalModel(tokens)
	entries := make([]domain.IndexedEntry, len(active))
	for i := range active {
		item := active[i]
		entries[i] = domain.IndexedEntry{
			Embedding: domain.EmbeddingVector{
				OwnerID:   item.Key(),
				OwnerType: domain.OwnerItem,
				Vector:    embeddings[i].Vector,
				Degraded:  embeddings[i].Degraded,
			},
			Terms: lexical.Weights(tokens[i]),
			Item:  &item,
		}
	}
	return entries, lexical, nil
}

func (r *Rebuilder) collectDocuments(ctx context.Context) ([]domain.IndexedEntry, *LexicalModel, error) {
	if r.deps.Documents == nil || r.deps.Pipeline == nil {
		return nil, nil, fmt.Errorf("%w: no document source", domain.ErrUnknownArtifact)
	}
	docs, err := r.deps.Documents.ListDocuments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list documents: %w", err)
	}

	var chunks []domain.DocumentChunk
	seen := make(map[string]struct{})
	for i := range docs {
		out, err := r.deps.Pipeline.Process(ctx, &docs[i])
		if err != nil {
			return nil, nil, fmt.Errorf("chunk %s: %w", docs[i].ID, err)
		}
		for _, c := range out {
			if _, dup := seen[c.ID]; dup {
				logger.Debug("rebuild: duplicate chunk %s in %s skipped", c.ID, c.SourceDocumentID)
				continue
			}
			seen[c.ID] = struct{}{}
			chunks = append(chunks, c)
		}
	}
	logger.Debug("rebuild: %d chunks from %d documents", len(chunks), len(docs))

	texts := make([]string, len(chunks))
	tokens := make([][]string, len(chunks))
	for i, c := range chunks {
		texts[i] = textproc.ChunkText(c)
		tokens[i] = strings.Fields(texts[i])
	}
	embeddings, err := r.deps.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	lexical := FitLexicalModel(tokens)
	entries := make([]domain.IndexedEntry, len(chunks))
	for i := range chunks {
		chunk := chunks[i]
		entries[i] = domain.IndexedEntry{
			Embedding: domain.EmbeddingVector{
				OwnerID:   chunk.ID,
				OwnerType: domain.OwnerChunk,
				Vector:    embeddings[i].Vector,
				Degraded:  embeddings[i].Degraded,
			},
			Terms: lexical.Weights(tokens[i]),
			Chunk: &chunk,
		}
	}
	return entries, lexical, nil
}

func (r *Rebuilder) discard(ctx context.Context, artifact string, gen uint64) {
	if err := r.deps.Artifacts.Delete(ctx, artifact, gen); err != nil {
		logger.Warn("rebuild: discard %s generation %d: %v", artifact, gen, err)
	}
}

// Restore loads the current generation of every index from the artifact
// store. Generations that fail validation are refused and reported as stale
// so the caller can rebuild them.
func (r *Rebuilder) Restore(ctx context.Context) ([]string, error) {
	if err := r.deps.Manifest.EnsureModel(ctx, r.deps.Embedder.ModelVersion(), r.deps.Embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if _, err := r.deps.Manifest.RecoverAbandoned(ctx); err != nil {
		logger.Warn("restore: %v", err)
	}

	var stale []string
	for _, corpus := range []domain.CorpusType{domain.CorpusProducts, domain.CorpusDocuments} {
		store := r.Store(corpus)
		if store == nil {
			continue
		}
		artifact := corpus.Artifact()
		entry, err := r.deps.Manifest.Current(ctx, artifact)
		if errors.Is(err, domain.ErrUnknownArtifact) {
			logger.Info("restore: %s has never been built", artifact)
			stale = append(stale, artifact)
			continue
		}
		if err != nil {
			return stale, err
		}

		art, err := r.deps.Artifacts.Load(ctx, artifact, entry.Generation)
		if err != nil {
			logger.Error("restore %s generation %d: %v", artifact, entry.Generation, err)
			stale = append(stale, artifact)
			continue
		}
		if violations := r.deps.Manifest.Check(ctx, *entry, art); len(violations) > 0 {
			logger.Error("restore %s: %v", artifact, joinViolations(violations))
			stale = append(stale, artifact)
			continue
		}
		gen, err := store.Load(ctx, art)
		if err != nil {
			logger.Error("restore %s: %v", artifact, err)
			stale = append(stale, artifact)
			continue
		}
		store.Swap(gen)
	}
	return stale, nil
}

// CatalogChanged drops cached results and schedules a product rebuild.
func (r *Rebuilder) CatalogChanged(ctx context.Context) {
	logger.Info("catalog changed")
	if err := r.deps.Cache.InvalidateAll(ctx); err != nil {
		logger.Warn("catalog changed: invalidate cache: %v", err)
	}
	if r.onChange != nil {
		r.onChange(ctx)
		return
	}
	go func() {
		bg := context.WithoutCancel(ctx)
		if _, err := r.TriggerWithRetry(bg, domain.ArtifactProductIndex, true); err != nil {
			logger.Error("catalog changed: %v", err)
		}
	}()
}

func joinViolations(violations []domain.IntegrityViolation) error {
	errs := make([]error, len(violations))
	for i, v := range violations {
		errs[i] = v.Err()
	}
	return errors.Join(errs...)
}
