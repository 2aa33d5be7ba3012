package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/internal/storage/sqlite"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
	"github.com/abkommen-gpt/backend/pkg/config"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

// Processor runs the per-document ingestion pipeline and the final
// wholesale index rebuild. Documents are independent of each other; the
// merged index write happens exactly once, after all documents are bound.
type Processor struct {
	db      *sqlite.Client
	vectors *milvus.Client
	llm     *llm.Client

	segCfg       SegmentConfig
	chunkSize    int
	chunkOverlap int
	baseURL      string
	htmlDir      string
}

func NewProcessor(db *sqlite.Client, vectors *milvus.Client, llmClient *llm.Client, cfg config.IngestConfig) *Processor {
	return &Processor{
		db:           db,
		vectors:      vectors,
		llm:          llmClient,
		segCfg:       SegmentConfig{H1MinSize: cfg.H1MinSize, H2MinSize: cfg.H2MinSize},
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		baseURL:      cfg.BaseURL,
		htmlDir:      cfg.HTMLDir,
	}
}

// ProcessDocument segments one page-oriented document, publishes its anchor
// HTML page, and returns the bound chunks ready for embedding. Nothing is
// written to the vector index yet.
func (p *Processor) ProcessDocument(ctx context.Context, doc PageDocument) ([]milvus.Chunk, error) {
	blocks := Segment(doc, p.segCfg)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("document %s produced no blocks", doc.ID)
	}

	htmlPath := doc.ID + ".html"
	if err := p.writeHTML(htmlPath, RenderHTML(doc.Title, blocks)); err != nil {
		return nil, err
	}

	return p.bindAndStore(ctx, doc.ID, doc.Title, htmlPath, len(doc.Pages), blocks)
}

// ProcessHTMLDocument re-indexes a previously rendered contract page,
// reusing the anchors it already carries.
func (p *Processor) ProcessHTMLDocument(ctx context.Context, path string) ([]milvus.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contract page: %w", err)
	}
	defer f.Close()

	title, blocks, err := ParseHTML(f)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("contract page %s contains no anchored blocks", path)
	}

	docID := DocumentID(path)
	return p.bindAndStore(ctx, docID, title, filepath.Base(path), 0, blocks)
}

func (p *Processor) bindAndStore(ctx context.Context, docID, title, htmlPath string, pages int, blocks []Block) ([]milvus.Chunk, error) {
	fullText, spans := BuildPositionMap(blocks)
	chunks := ChunkText(fullText, p.chunkSize, p.chunkOverlap)
	bound, dropped := BindChunks(docID, chunks, spans, p.baseURL, htmlPath)

	if dropped > 0 {
		metrics.IntegrityWarnings.Add(float64(dropped))
	}

	now := time.Now()
	err := p.db.InsertDocument(ctx, &models.Document{
		ID:        docID,
		Title:     title,
		HTMLPath:  htmlPath,
		Pages:     pages,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := p.db.DeleteDocumentChunks(ctx, docID); err != nil {
		return nil, err
	}

	indexable := make([]milvus.Chunk, 0, len(bound))
	for i, bc := range bound {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)

		if err := p.db.InsertChunk(ctx, &models.DocumentChunk{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: i,
			Text:       bc.Text,
			Anchor:     bc.Anchor,
			CreatedAt:  now,
		}); err != nil {
			return nil, err
		}

		indexable = append(indexable, milvus.Chunk{
			ID:     chunkID,
			Text:   bc.Text,
			Source: bc.Locator,
		})
	}

	metrics.DocumentsIngested.Inc()
	logger.Info("Document processed",
		zap.String("doc_id", docID),
		zap.Int("blocks", len(blocks)),
		zap.Int("chunks", len(indexable)),
		zap.Int("dropped", dropped),
	)

	return indexable, nil
}

// BuildIndex embeds all bound chunks and rebuilds the vector index from
// scratch. Embedding is batched but strictly order-preserving: every
// embedding is attached to the chunk struct that carries its own metadata,
// never reassembled by position after a reorder.
func (p *Processor) BuildIndex(ctx context.Context, chunks []milvus.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := p.llm.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.vectors.Rebuild(ctx); err != nil {
		return err
	}
	if err := p.vectors.Insert(ctx, chunks); err != nil {
		return err
	}

	metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.Info("Vector index rebuilt", zap.Int("chunks", len(chunks)))
	return nil
}

func (p *Processor) writeHTML(htmlPath, content string) error {
	if err := os.MkdirAll(p.htmlDir, 0755); err != nil {
		return fmt.Errorf("failed to create html dir: %w", err)
	}

	out := filepath.Join(p.htmlDir, htmlPath)
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write contract page: %w", err)
	}

	logger.Debug("Contract page written", zap.String("path", out))
	return nil
}
