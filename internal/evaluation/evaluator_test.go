package evaluation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/evaluation"
)

type fakeRunner struct {
	responses map[string]*chat.TurnResponse
	err       error
}

func (f *fakeRunner) ProcessTurn(ctx context.Context, sessionID, question string) (*chat.TurnResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[question], nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func TestEvaluateQuestion_ScoresCitationsAndSimilarity(t *testing.T) {
	runner := &fakeRunner{responses: map[string]*chat.TurnResponse{
		"Frage": {
			SessionID: "s",
			Answer:    "Antwort [1] und [2].",
			Sources: []chat.Source{
				{ID: 1, URL: "https://example.org/doc.html#p1"},
				{ID: 2, URL: chat.SourceNotFound},
			},
		},
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Antwort [1] und [2].": {1, 0},
		"Referenzantwort":      {1, 0},
	}}

	e := evaluation.NewEvaluator(runner, embedder)

	result, err := e.EvaluateQuestion(context.Background(), evaluation.DatasetItem{
		Question:    "Frage",
		GroundTruth: "Referenzantwort",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.CitationCount)
	assert.Equal(t, 1, result.ResolvedCitations)
	assert.InDelta(t, 1.0, result.CosineSimilarity, 1e-9)
}

func TestRun_AggregatesAndCountsFailures(t *testing.T) {
	runner := &fakeRunner{responses: map[string]*chat.TurnResponse{
		"a": {Answer: "Antwort [1].", Sources: []chat.Source{{ID: 1, URL: "https://example.org/x"}}},
		"b": {Answer: "Ohne Quellen."},
	}}
	e := evaluation.NewEvaluator(runner, &fakeEmbedder{})

	report, err := e.Run(context.Background(), &evaluation.Dataset{Items: []evaluation.DatasetItem{
		{Question: "a"},
		{Question: "b"},
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalQuestions)
	assert.Equal(t, 2, report.AnsweredCount)
	assert.Zero(t, report.FailedCount)
	assert.InDelta(t, 0.5, report.AvgCitationsPerTurn, 1e-9)
	assert.InDelta(t, 100.0, report.ResolvedCitationRate, 1e-9)
}

func TestRun_FailedTurnsDoNotAbortDataset(t *testing.T) {
	runner := &fakeRunner{err: errors.New("upstream down")}
	e := evaluation.NewEvaluator(runner, &fakeEmbedder{})

	report, err := e.Run(context.Background(), &evaluation.Dataset{Items: []evaluation.DatasetItem{
		{Question: "a"},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedCount)
	assert.Zero(t, report.AnsweredCount)
}
