package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

// Store is the persistence surface the manager rehydrates from. Satisfied
// by the sqlite client.
type Store interface {
	HasConversation(ctx context.Context, sessionID string) (bool, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

// Session is the in-memory conversation state for one session ID. Turns on
// the same session are serialized through its lock so history reads and
// appends never interleave.
type Session struct {
	ID string

	mu      sync.Mutex
	history []llm.Exchange
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// History returns a copy of the accumulated exchanges. Callers must hold
// the session lock.
func (s *Session) History() []llm.Exchange {
	return append([]llm.Exchange(nil), s.history...)
}

// Append records a completed turn. Callers must hold the session lock.
func (s *Session) Append(question, answer string) {
	s.history = append(s.history, llm.Exchange{Question: question, Answer: answer})
}

// Manager owns the session map. Sessions are created on first use and
// rehydrated lazily: a session ID known to the store but absent from memory
// (e.g. after a restart) gets its history loaded before the turn proceeds.
type Manager struct {
	store Store

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate resolves a session ID to its in-memory session. An empty ID
// mints a fresh session. Concurrent calls with the same ID return the same
// *Session: the map insert is atomic under the manager lock, and the slower
// rehydration happens under the session lock so only one caller loads.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &Session{ID: sessionID}
		m.sessions[sessionID] = s
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	// Rehydration is idempotent and guarded by the session lock, so
	// every caller ensures it completed before the session is used.
	if err := m.rehydrate(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

func (m *Manager) rehydrate(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history != nil {
		return nil
	}
	s.history = []llm.Exchange{}

	known, err := m.store.HasConversation(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !known {
		logger.Debug("New session created", zap.String("session_id", s.ID))
		return nil
	}

	messages, err := m.store.ListMessages(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to rehydrate session: %w", err)
	}

	for _, msg := range messages {
		s.history = append(s.history, llm.Exchange{Question: msg.Question, Answer: msg.Answer})
	}

	logger.Info("Session rehydrated",
		zap.String("session_id", s.ID),
		zap.Int("turns", len(messages)),
	)
	return nil
}

// Len reports how many sessions are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
