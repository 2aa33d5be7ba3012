package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/session"
	"github.com/abkommen-gpt/backend/internal/storage/models"
)

type memStore struct {
	mu            sync.Mutex
	conversations map[string][]models.Message
	listCalls     int
}

func (s *memStore) HasConversation(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[sessionID]
	return ok, nil
}

func (s *memStore) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.conversations[sessionID], nil
}

func TestManager_MintsIDForEmptySession(t *testing.T) {
	m := session.NewManager(&memStore{conversations: map[string][]models.Message{}})

	first, err := m.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	second, err := m.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, m.Len())
}

func TestManager_SameIDReturnsSameSession(t *testing.T) {
	m := session.NewManager(&memStore{conversations: map[string][]models.Message{}})

	a, err := m.GetOrCreate(context.Background(), "abc")
	require.NoError(t, err)
	b, err := m.GetOrCreate(context.Background(), "abc")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
}

func TestManager_RehydratesOnce(t *testing.T) {
	store := &memStore{conversations: map[string][]models.Message{
		"known": {
			{SessionID: "known", Question: "Frage 1", Answer: "Antwort 1"},
			{SessionID: "known", Question: "Frage 2", Answer: "Antwort 2"},
		},
	}}
	m := session.NewManager(store)

	s, err := m.GetOrCreate(context.Background(), "known")
	require.NoError(t, err)

	s.Lock()
	history := s.History()
	s.Unlock()

	require.Len(t, history, 2)
	assert.Equal(t, "Frage 1", history[0].Question)
	assert.Equal(t, "Antwort 2", history[1].Answer)

	_, err = m.GetOrCreate(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
}

func TestManager_ConcurrentGetOrCreateIsAtomic(t *testing.T) {
	m := session.NewManager(&memStore{conversations: map[string][]models.Message{}})

	const goroutines = 32
	sessions := make([]*session.Session, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.GetOrCreate(context.Background(), "shared")
			require.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, m.Len())
}

func TestSession_AppendExtendsHistory(t *testing.T) {
	m := session.NewManager(&memStore{conversations: map[string][]models.Message{}})

	s, err := m.GetOrCreate(context.Background(), "abc")
	require.NoError(t, err)

	s.Lock()
	s.Append("Frage", "Antwort")
	history := s.History()
	s.Unlock()

	require.Len(t, history, 1)
	assert.Equal(t, "Frage", history[0].Question)

	// History returns a copy; mutating it leaves the session untouched.
	history[0].Question = "geändert"
	s.Lock()
	fresh := s.History()
	s.Unlock()
	assert.Equal(t, "Frage", fresh[0].Question)
}
