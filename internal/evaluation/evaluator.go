package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

// TurnRunner runs one question through the full conversation pipeline.
type TurnRunner interface {
	ProcessTurn(ctx context.Context, sessionID, question string) (*chat.TurnResponse, error)
}

// Embedder provides the embeddings used for answer similarity scoring.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DatasetItem is one curated question with its reference answer.
type DatasetItem struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

// Result scores one generated answer: semantic closeness to the reference
// answer plus how many of its citations resolved to real locators.
type Result struct {
	Question          string
	Answer            string
	CosineSimilarity  float64
	CitationCount     int
	ResolvedCitations int
}

type Report struct {
	TotalQuestions       int
	AnsweredCount        int
	FailedCount          int
	AvgCosineSimilarity  float64
	AvgCitationsPerTurn  float64
	ResolvedCitationRate float64
	Results              []Result
}

type Evaluator struct {
	engine   TurnRunner
	embedder Embedder
}

func NewEvaluator(engine TurnRunner, embedder Embedder) *Evaluator {
	return &Evaluator{
		engine:   engine,
		embedder: embedder,
	}
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return &dataset, nil
}

// EvaluateQuestion asks one dataset question in a fresh session and scores
// the answer against the reference.
func (e *Evaluator) EvaluateQuestion(ctx context.Context, item DatasetItem) (*Result, error) {
	resp, err := e.engine.ProcessTurn(ctx, "", item.Question)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Question:      item.Question,
		Answer:        resp.Answer,
		CitationCount: len(resp.Sources),
	}

	for _, src := range resp.Sources {
		if src.URL != chat.SourceNotFound && src.URL != chat.NoSourceAvailable {
			result.ResolvedCitations++
		}
	}

	if item.GroundTruth != "" {
		sim, err := e.answerSimilarity(ctx, resp.Answer, item.GroundTruth)
		if err != nil {
			logger.Warn("Failed to score answer similarity", zap.Error(err))
		} else {
			result.CosineSimilarity = sim
		}
	}

	return result, nil
}

func (e *Evaluator) Run(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{TotalQuestions: len(dataset.Items)}

	var totalSim, totalCitations float64
	var totalResolved, totalCited int

	for i, item := range dataset.Items {
		result, err := e.EvaluateQuestion(ctx, item)
		if err != nil {
			logger.Error("Failed to evaluate question",
				zap.Int("index", i),
				zap.Error(err),
			)
			report.FailedCount++
			continue
		}

		report.AnsweredCount++
		report.Results = append(report.Results, *result)

		totalSim += result.CosineSimilarity
		totalCitations += float64(result.CitationCount)
		totalCited += result.CitationCount
		totalResolved += result.ResolvedCitations
	}

	if report.AnsweredCount > 0 {
		report.AvgCosineSimilarity = totalSim / float64(report.AnsweredCount)
		report.AvgCitationsPerTurn = totalCitations / float64(report.AnsweredCount)
	}
	if totalCited > 0 {
		report.ResolvedCitationRate = float64(totalResolved) / float64(totalCited) * 100
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("answered", report.AnsweredCount),
		zap.Int("failed", report.FailedCount),
		zap.Float64("avg_similarity", report.AvgCosineSimilarity),
	)

	return report, nil
}

func (e *Evaluator) answerSimilarity(ctx context.Context, answer, groundTruth string) (float64, error) {
	embAnswer, err := e.embedder.GenerateEmbedding(ctx, answer)
	if err != nil {
		return 0, err
	}

	embTruth, err := e.embedder.GenerateEmbedding(ctx, groundTruth)
	if err != nil {
		return 0, err
	}

	return cosineSimilarity(embAnswer, embTruth), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func FormatReport(report *Report) string {
	return fmt.Sprintf(`
Evaluation Report
=================

Total Questions: %d
Answered: %d
Failed: %d

Answer Similarity (avg): %.3f
Citations per Answer (avg): %.2f
Resolved Citation Rate: %.1f%%
`,
		report.TotalQuestions,
		report.AnsweredCount,
		report.FailedCount,
		report.AvgCosineSimilarity,
		report.AvgCitationsPerTurn,
		report.ResolvedCitationRate,
	)
}
