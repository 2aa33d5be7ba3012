package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/session"
	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
)

type fakeStore struct {
	conversations map[string][]models.Message
	ensured       []string
	inserted      []*models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string][]models.Message{}}
}

func (s *fakeStore) HasConversation(ctx context.Context, sessionID string) (bool, error) {
	_, ok := s.conversations[sessionID]
	return ok, nil
}

func (s *fakeStore) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	return s.conversations[sessionID], nil
}

func (s *fakeStore) EnsureConversation(ctx context.Context, sessionID string) error {
	s.ensured = append(s.ensured, sessionID)
	if _, ok := s.conversations[sessionID]; !ok {
		s.conversations[sessionID] = nil
	}
	return nil
}

func (s *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.inserted = append(s.inserted, msg)
	s.conversations[msg.SessionID] = append(s.conversations[msg.SessionID], *msg)
	return nil
}

type fakeLLM struct {
	lastHistory []llm.Exchange
	answer      string
	answerErr   error
}

func (f *fakeLLM) ContextualizeQuestion(ctx context.Context, history []llm.Exchange, question string) (string, error) {
	f.lastHistory = history
	if len(history) == 0 {
		return question, nil
	}
	return question + " (eigenständig)", nil
}

func (f *fakeLLM) GenerateAnswer(ctx context.Context, question, language string, passages []llm.Passage) (string, error) {
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return f.answer, nil
}

func (f *fakeLLM) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeDetector struct{ lang string }

func (f fakeDetector) Detect(text string) string { return f.lang }

func fixedRetriever(results []milvus.SearchResult) chat.Retriever {
	return chat.RetrieverFunc(func(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
		return results, nil
	})
}

func TestEngine_FreshSessionTurn(t *testing.T) {
	store := newFakeStore()
	llmFake := &fakeLLM{answer: "Die Verträge regeln dies [1]."}
	retriever := fixedRetriever([]milvus.SearchResult{
		{ChunkID: "c1", Text: "Artikel 1", Source: "https://example.org/a#p1"},
	})

	engine := chat.NewEngine(session.NewManager(store), llmFake, retriever, fakeDetector{"de"}, store, nil, 10)

	resp, err := engine.ProcessTurn(context.Background(), "", "Was regeln die Verträge?")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Die Verträge regeln dies [1].", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://example.org/a#p1", resp.Sources[0].URL)

	require.Len(t, store.ensured, 1)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, resp.SessionID, store.inserted[0].SessionID)
	assert.Equal(t, "Was regeln die Verträge?", store.inserted[0].Question)
	assert.Equal(t, resp.Answer, store.inserted[0].Answer)
	assert.Equal(t, []string{"https://example.org/a#p1"}, store.inserted[0].Sources)
}

func TestEngine_RehydratesHistoryFromStore(t *testing.T) {
	store := newFakeStore()
	store.conversations["existing"] = []models.Message{
		{SessionID: "existing", Question: "Frage 1", Answer: "Antwort 1"},
		{SessionID: "existing", Question: "Frage 2", Answer: "Antwort 2"},
	}

	llmFake := &fakeLLM{answer: "Folgeantwort."}
	engine := chat.NewEngine(session.NewManager(store), llmFake, fixedRetriever(nil), fakeDetector{"de"}, store, nil, 10)

	resp, err := engine.ProcessTurn(context.Background(), "existing", "Und weiter?")
	require.NoError(t, err)

	assert.Equal(t, "existing", resp.SessionID)
	require.Len(t, llmFake.lastHistory, 2)
	assert.Equal(t, "Frage 1", llmFake.lastHistory[0].Question)
	assert.Equal(t, "Antwort 2", llmFake.lastHistory[1].Answer)
}

func TestEngine_HistoryAccumulatesAcrossTurns(t *testing.T) {
	store := newFakeStore()
	llmFake := &fakeLLM{answer: "Antwort."}
	engine := chat.NewEngine(session.NewManager(store), llmFake, fixedRetriever(nil), fakeDetector{"de"}, store, nil, 10)

	first, err := engine.ProcessTurn(context.Background(), "", "Erste Frage")
	require.NoError(t, err)

	_, err = engine.ProcessTurn(context.Background(), first.SessionID, "Zweite Frage")
	require.NoError(t, err)

	require.Len(t, llmFake.lastHistory, 1)
	assert.Equal(t, "Erste Frage", llmFake.lastHistory[0].Question)
	assert.Len(t, store.inserted, 2)
}

func TestEngine_CapabilityFailureAbortsWholeTurn(t *testing.T) {
	store := newFakeStore()
	llmFake := &fakeLLM{
		answerErr: &llm.CapabilityError{Op: "generate answer", Err: errors.New("upstream down")},
	}
	engine := chat.NewEngine(session.NewManager(store), llmFake, fixedRetriever(nil), fakeDetector{"de"}, store, nil, 10)

	_, err := engine.ProcessTurn(context.Background(), "", "Frage")
	require.Error(t, err)
	assert.True(t, llm.IsCapabilityError(err))

	// Nothing persisted: the failed turn leaves no trace.
	assert.Empty(t, store.ensured)
	assert.Empty(t, store.inserted)

	// The failed turn also never entered the in-memory history.
	resp2, err := engine.ProcessTurn(context.Background(), "", "Neue Frage")
	require.Error(t, err)
	assert.Nil(t, resp2)
}

func TestEngine_EmptySourcePatchedByDecorator(t *testing.T) {
	store := newFakeStore()
	llmFake := &fakeLLM{answer: "Antwort [1]."}
	retriever := chat.WithSourceFallback(fixedRetriever([]milvus.SearchResult{
		{ChunkID: "c1", Text: "Text", Source: ""},
	}))

	engine := chat.NewEngine(session.NewManager(store), llmFake, retriever, fakeDetector{"de"}, store, nil, 10)

	resp, err := engine.ProcessTurn(context.Background(), "", "Frage")
	require.NoError(t, err)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, chat.NoSourceAvailable, resp.Sources[0].URL)
}
