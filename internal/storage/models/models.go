package models

import "time"

// Document is one ingested treaty file. Its ID is derived from the
// sanitized source filename and never changes; re-ingestion replaces the
// record wholesale.
type Document struct {
	ID        string
	Title     string
	HTMLPath  string
	Pages     int
	CreatedAt time.Time
}

// DocumentChunk mirrors one indexed chunk for auditing; the authoritative
// retrieval copy lives in the vector index.
type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	Anchor     string
	CreatedAt  time.Time
}

// Conversation is one chat session keyed by its opaque session id.
type Conversation struct {
	SessionID string
	CreatedAt time.Time
}

// Message is one completed turn of a conversation. Sources holds the
// renumbered locator URLs in footnote order.
type Message struct {
	ID        int64
	SessionID string
	Question  string
	Answer    string
	Sources   []string
	CreatedAt time.Time
}
