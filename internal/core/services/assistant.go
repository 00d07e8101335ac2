package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// Verify interface compliance.
var _ driving.AssistantService = (*Assistant)(nil)

// Extractive answer texts.
const (
	partialAnswerPrefix = "Here is the most relevant information from our documentation: "
	extractiveGenerator = "extractive"
)

// Assistant answers questions from the knowledge base index.
// Answers are grounded only in retrieved chunks; below the similarity
// threshold it returns a fixed insufficient-information answer.
type Assistant struct {
	documents *IndexStore
	embedder  *Embedder
	generator driven.LLMService
	cache     *Cache
	settings  domain.AssistantSettings
	llm       domain.LLMSettings
	traceID   func() string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewAssistant creates the RAG engine. generator may be nil, in which case
// answers are extracted from the best source.
func NewAssistant(
	documents *IndexStore,
	embedder *Embedder,
	generator driven.LLMService,
	cache *Cache,
	settings domain.AssistantSettings,
	llm domain.LLMSettings,
) *Assistant {
	if settings.TopN <= 0 {
		settings.TopN = domain.DefaultAskTopN
	}
	return &Assistant{
		documents: documents,
		embedder:  embedder,
		generator: generator,
		cache:     cache,
		settings:  settings,
		llm:       llm,
		traceID:   uuid.NewString,
		sleep:     sleepCtx,
	}
}

// Ask retrieves supporting chunks and returns a cited answer.
// Every call gets a fresh trace id, cached or not.
func (a *Assistant) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Question = strings.Join(strings.Fields(req.Question), " ")
	traceID := a.traceID()

	gen := a.documents.Current()
	if gen == nil {
		return nil, fmt.Errorf("ask [%s]: %w", traceID, domain.ErrNoGeneration)
	}

	fp, err := Fingerprint(domain.EngineAssistant, req, map[string]uint64{domain.ArtifactDocumentIndex: gen.ID()})
	if err != nil {
		return nil, err
	}
	answer, hit, err := cached(ctx, a.cache, fp, func(ctx context.Context) (domain.Answer, error) {
		return a.compute(ctx, gen, req, traceID)
	})
	if err != nil {
		return nil, fmt.Errorf("ask [%s]: %w", traceID, err)
	}
	answer.TraceID = traceID
	logger.Info("ask [%s]: %s, confidence %.2f, %d sources, cached=%t",
		traceID, answer.Status, answer.Confidence, len(answer.Sources), hit)
	return &answer, nil
}

func (a *Assistant) compute(ctx context.Context, gen *Generation, req domain.AskRequest, traceID string) (domain.Answer, error) {
	logger.Section("Ask " + traceID)
	text := textproc.Normalise(req.Question)
	if text == "" {
		text = textproc.Fold(req.Question)
	}
	emb, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return domain.Answer{}, err
	}

	var hits []driven.VectorHit
	if !emb.Degraded {
		hits, err = gen.Query(ctx, emb.Vector, a.settings.TopN)
		if err != nil {
			return domain.Answer{}, err
		}
	}

	sources := make([]domain.Source, 0, len(hits))
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < a.settings.MinSimilarity {
			continue
		}
		entry, ok := gen.Entry(h.ID)
		if !ok || entry.Chunk == nil {
			continue
		}
		c := entry.Chunk
		sources = append(sources, domain.Source{
			ChunkID:          c.ID,
			SourceDocumentID: c.SourceDocumentID,
			Title:            c.Metadata.Title,
			Category:         c.Metadata.Category,
			Type:             c.Metadata.Type,
			Score:            h.Similarity,
			Excerpt:          excerpt(c.Text, a.settings.ExcerptLength),
		})
		texts = append(texts, c.Text)
	}
	logger.Debug("ask: %d of %d chunks above %.2f", len(sources), len(hits), a.settings.MinSimilarity)

	if len(sources) == 0 {
		return domain.Answer{
			Answer:     domain.InsufficientInformationAnswer,
			Sources:    []domain.Source{},
			Confidence: 0,
			TraceID:    traceID,
			Status:     domain.AnswerStatusNoSources,
		}, nil
	}

	text, generator, err := a.generate(ctx, req, texts, sources[0].Score)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{
		Answer:     text,
		Sources:    sources,
		Confidence: clamp01(sources[0].Score),
		TraceID:    traceID,
		Status:     domain.AnswerStatusSuccess,
		Generator:  generator,
	}, nil
}

// generate calls the text generator with a bounded wait, retrying upstream
// timeouts. Without a generator, or when it is unavailable, the answer is
// extracted from the best source.
func (a *Assistant) generate(ctx context.Context, req domain.AskRequest, texts []string, best float64) (string, string, error) {
	if a.generator == nil {
		return a.extractive(texts[0], best), extractiveGenerator, nil
	}

	attempts := max(a.llm.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if a.llm.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, a.llm.Timeout)
		}
		text, err := a.generator.GenerateAnswer(callCtx, driven.AnswerRequest{
			Question:    req.Question,
			Sources:     texts,
			Context:     req.Context,
			Language:    a.llm.Language,
			MaxTokens:   a.llm.MaxTokens,
			Temperature: a.llm.Temperature,
		})
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), a.generator.ModelName(), nil
		}
		if err == nil {
			err = fmt.Errorf("%w: empty answer", domain.ErrLLMUnavailable)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, domain.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		}
		lastErr = err
		if !errors.Is(err, domain.ErrUpstreamTimeout) {
			logger.Warn("ask: generator %s failed, answering extractively: %v", a.generator.ModelName(), err)
			return a.extractive(texts[0], best), extractiveGenerator, nil
		}
		if attempt == attempts {
			break
		}
		delay := DefaultEmbedBackoff << (attempt - 1)
		logger.Warn("ask: generator attempt %d/%d timed out, retrying in %s", attempt, attempts, delay)
		if err := a.sleep(ctx, delay); err != nil {
			break
		}
	}
	return "", "", fmt.Errorf("generate answer: %w", lastErr)
}

// extractive returns the best source verbatim when it is a strong match,
// otherwise a prefixed excerpt.
func (a *Assistant) extractive(best string, score float64) string {
	if score > a.settings.DirectAnswerScore {
		return best
	}
	return partialAnswerPrefix + excerpt(best, a.settings.ExcerptLength)
}

// excerpt truncates text to n runes, appending "..." when cut.
func excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
