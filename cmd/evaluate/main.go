package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/cache/redis"
	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/evaluation"
	"github.com/abkommen-gpt/backend/internal/language"
	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/internal/session"
	"github.com/abkommen-gpt/backend/internal/storage/sqlite"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
	"github.com/abkommen-gpt/backend/pkg/config"
	appLogger "github.com/abkommen-gpt/backend/pkg/logger"
)

func main() {
	var datasetPath string
	flag.StringVar(&datasetPath, "dataset", "./data/eval_dataset.json", "Path to the evaluation dataset")
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

	if err := run(context.Background(), cfg, datasetPath); err != nil {
		color.Red("Evaluation failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, datasetPath string) error {
	dataset, err := evaluation.LoadDataset(datasetPath)
	if err != nil {
		return err
	}
	if len(dataset.Items) == 0 {
		return fmt.Errorf("dataset %s contains no items", datasetPath)
	}

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

	if err := milvusClient.EnsureLoaded(ctx); err != nil {
		return err
	}

	var embeddingCache chat.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, evaluating without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	engine := chat.NewEngine(
		session.NewManager(sqliteClient),
		llmClient,
		chat.WithSourceFallback(chat.RetrieverFunc(milvusClient.Search)),
		language.NewDetector(),
		sqliteClient,
		embeddingCache,
		cfg.LLM.TopK,
	)

	color.Blue("Evaluating %d questions", len(dataset.Items))

	evaluator := evaluation.NewEvaluator(engine, llmClient)
	report, err := evaluator.Run(ctx, dataset)
	if err != nil {
		return err
	}

	fmt.Print(evaluation.FormatReport(report))
	color.Green("Evaluation complete")
	return nil
}
