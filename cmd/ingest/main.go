package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/ingest"
	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/internal/storage/sqlite"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
	"github.com/abkommen-gpt/backend/pkg/config"
	appLogger "github.com/abkommen-gpt/backend/pkg/logger"
)

func main() {
	var source string
	flag.StringVar(&source, "source", "pdf", "Ingestion source: pdf or html")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	metrics.Init()

	if err := run(context.Background(), cfg, source); err != nil {
		color.Red("Ingestion failed: %v", err)
		os.Exit(1)
	}

	color.Green("Ingestion complete")
}

func run(ctx context.Context, cfg *config.Config, source string) error {
	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		return err
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	processor := ingest.NewProcessor(sqliteClient, milvusClient, llmClient, cfg.Ingest)

	var files []string
	switch source {
	case "pdf":
		files, err = listFiles(cfg.Ingest.PDFDir, ".pdf")
	case "html":
		files, err = listFiles(cfg.Ingest.HTMLDir, ".html")
	default:
		return fmt.Errorf("unknown source %q, expected pdf or html", source)
	}
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s files found", source)
	}

	color.Blue("Processing %d documents", len(files))
	bar := newProgressBar(len(files), "Processing documents")

	var allChunks []milvus.Chunk
	for _, path := range files {
		chunks, err := processDocument(ctx, processor, source, path)
		if err != nil {
			appLogger.Error("Failed to process document",
				zap.String("path", path),
				zap.Error(err),
			)
			bar.Add(1)
			continue
		}
		allChunks = append(allChunks, chunks...)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	if len(allChunks) == 0 {
		return fmt.Errorf("no chunks produced, nothing to index")
	}

	color.Blue("Embedding and indexing %d chunks", len(allChunks))
	if err := processor.BuildIndex(ctx, allChunks); err != nil {
		return err
	}

	return nil
}

func processDocument(ctx context.Context, processor *ingest.Processor, source, path string) ([]milvus.Chunk, error) {
	if source == "html" {
		return processor.ProcessHTMLDocument(ctx, path)
	}

	doc, err := ingest.LoadPDF(path)
	if err != nil {
		return nil, err
	}
	return processor.ProcessDocument(ctx, doc)
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
}
