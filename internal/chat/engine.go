package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/internal/session"
	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/pkg/logger"
	"github.com/abkommen-gpt/backend/pkg/utils"
)

// LLM is the generation and embedding capability the engine depends on.
type LLM interface {
	ContextualizeQuestion(ctx context.Context, history []llm.Exchange, question string) (string, error)
	GenerateAnswer(ctx context.Context, question, language string, passages []llm.Passage) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// TurnStore persists completed turns.
type TurnStore interface {
	EnsureConversation(ctx context.Context, sessionID string) error
	InsertMessage(ctx context.Context, msg *models.Message) error
}

// EmbeddingCache is an optional cache for query embeddings. A nil cache
// disables caching entirely.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

// LanguageDetector classifies the question's language for the answer prompt.
type LanguageDetector interface {
	Detect(text string) string
}

// TurnResponse is the completed result of one conversation turn.
type TurnResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
}

// Engine drives the full turn pipeline: resolve session, contextualize,
// retrieve, generate, renumber citations, persist.
type Engine struct {
	sessions  *session.Manager
	llm       LLM
	retriever Retriever
	detector  LanguageDetector
	store     TurnStore
	cache     EmbeddingCache
	topK      int
}

func NewEngine(sessions *session.Manager, llmClient LLM, retriever Retriever, detector LanguageDetector, store TurnStore, cache EmbeddingCache, topK int) *Engine {
	return &Engine{
		sessions:  sessions,
		llm:       llmClient,
		retriever: retriever,
		detector:  detector,
		store:     store,
		cache:     cache,
		topK:      topK,
	}
}

// ProcessTurn runs one question through the pipeline. On any capability
// failure the turn aborts whole: no partial answer is returned and nothing
// is persisted. Turns on the same session are serialized.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, question string) (*TurnResponse, error) {
	start := time.Now()

	sess, err := e.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()

	resp, err := e.runTurn(ctx, sess, question)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	metrics.TurnsTotal.WithLabelValues("success").Inc()

	logger.Info("Turn completed",
		zap.String("session_id", sess.ID),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

func (e *Engine) runTurn(ctx context.Context, sess *session.Session, question string) (*TurnResponse, error) {
	history := sess.History()

	standalone, err := e.llm.ContextualizeQuestion(ctx, history, question)
	if err != nil {
		return nil, err
	}

	embedding, err := e.embedQuery(ctx, standalone)
	if err != nil {
		return nil, err
	}

	chunks, err := e.retriever.Retrieve(ctx, embedding, e.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	metrics.RetrievedChunks.Observe(float64(len(chunks)))

	passages := make([]llm.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = llm.Passage{Text: c.Text, Source: c.Source}
	}

	lang := e.detector.Detect(question)

	raw, err := e.llm.GenerateAnswer(ctx, standalone, lang, passages)
	if err != nil {
		return nil, err
	}

	answer, sources := RenumberCitations(raw, chunks)

	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
	}

	if err := e.store.EnsureConversation(ctx, sess.ID); err != nil {
		return nil, err
	}
	if err := e.store.InsertMessage(ctx, &models.Message{
		SessionID: sess.ID,
		Question:  question,
		Answer:    answer,
		Sources:   urls,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	sess.Append(question, answer)

	return &TurnResponse{
		SessionID: sess.ID,
		Answer:    answer,
		Sources:   sources,
	}, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e.cache == nil {
		return e.llm.GenerateEmbedding(ctx, query)
	}

	hash := utils.HashString(query)

	cached, found, err := e.cache.GetEmbedding(ctx, hash)
	if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	}
	if found {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := e.llm.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, hash, embedding); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
