package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		html_path TEXT NOT NULL,
		pages INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		anchor TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES conversations(session_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// EnsureConversation creates the conversation row if it does not exist yet.
func (c *Client) EnsureConversation(ctx context.Context, sessionID string) error {
	query := `INSERT OR IGNORE INTO conversations (session_id, created_at) VALUES (?, ?)`

	if _, err := c.db.ExecContext(ctx, query, sessionID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to ensure conversation: %w", err)
	}
	return nil
}

func (c *Client) InsertMessage(ctx context.Context, msg *models.Message) error {
	sourcesJSON, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `INSERT INTO messages (session_id, question, answer, sources, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		msg.SessionID,
		msg.Question,
		msg.Answer,
		string(sourcesJSON),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	logger.Debug("Turn persisted",
		zap.String("session_id", msg.SessionID),
		zap.Int("sources", len(msg.Sources)),
	)
	return nil
}

// ListMessages returns all turns of a session in arrival order.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	query := `
		SELECT id, session_id, question, answer, sources, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var sourcesJSON string
		var createdAt int64

		if err := rows.Scan(&m.ID, &m.SessionID, &m.Question, &m.Answer, &sourcesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(sourcesJSON), &m.Sources); err != nil {
			m.Sources = nil
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// HasConversation reports whether a session id is known to durable storage.
func (c *Client) HasConversation(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE session_id = ?`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return true, nil
}

// InsertDocument replaces any prior record for the same document id.
func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, title, html_path, pages, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			html_path = excluded.html_path,
			pages = excluded.pages,
			created_at = excluded.created_at
	`

	_, err := c.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.HTMLPath,
		doc.Pages,
		doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID))
	return nil
}

// DeleteDocumentChunks clears the chunk mirror before a wholesale re-ingest.
func (c *Client) DeleteDocumentChunks(ctx context.Context, docID string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}

func (c *Client) InsertChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	query := `INSERT INTO document_chunks (id, doc_id, chunk_index, text, anchor, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.DocID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.Anchor,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}
