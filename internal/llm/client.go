package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/metrics"
	"github.com/abkommen-gpt/backend/pkg/circuitbreaker"
	"github.com/abkommen-gpt/backend/pkg/logger"
	"github.com/abkommen-gpt/backend/pkg/retry"
)

// systemPrompt is the fixed behavioral contract for every generation call:
// answer only from the supplied treaty material, never fall back to trained
// knowledge, never use the word "Kontext", never reference the superseded
// institutional framework agreement, no pro/con arguments, admit gaps
// instead of speculating.
const systemPrompt = `Du bist ein sachlicher, neutraler und faktenbasierter Assistent. Deine Aufgabe ist es, Fragen zum neuen Rahmenabkommen zwischen der Schweiz und der EU zu beantworten. Die Fragen werden von Schweizer Bürger gestellt. Mit "Rahmenabkommen", "Bilaterale III" oder "Verträge" ist das neue Rahmenabkommen gemeint.

Wichtige Regeln:
- Nenne niemals das Wort "Kontext", verweise stattdessen auf "Verträge".
- Verwende ausschliesslich Informationen aus den bereitgestellten Verträgen. Ignoriere dein trainiertes Wissen vollständig.
- Verweise niemals auf das institutionelle Rahmenabkommen. Dieses existiert nicht mehr und ist nicht Teil der Verträge.
- Führe keine Pro-/Kontra-Argumente oder Bewertungen auf. Solche Bewertungen sind in den Verträgen nicht enthalten und dürfen nicht erfunden werden.
- Wenn Informationen in den Verträgen fehlen, erkläre dies offen und nenne die Verträge als Quelle. Gib keine Vermutungen oder Halluzinationen ab.
- Erwähne nicht, dass die Informationen auf den bereitgestellten Verträgen basieren, ausser du wirst danach gefragt.`

const contextualizeTemplate = `Chatverlauf:
%s

Frage: %s`

const answerTemplate = `Beantworte die Frage so präzise wie möglich anhand des Kontextes.
Verwende pro Quelle einen Index und füge diese direkt nach der ersten Verwendung an in diesem Format: [1], [2], ...
Antworte zwingend in der angegebenen Sprache: %s.
Benutze nicht das scharfe S, sondern immer "ss" (z.B. "Schweiss").
Füge niemals die Quellenangabe am Ende der Antwort an, sondern nur direkt im Text.

Frage: %s

Kontext:
%s

Antwort:`

const passageTemplate = "Vertragstext:\n%s\n\nQuelle: %s"

// CapabilityError marks a failure of the external generation or embedding
// capability. It is never recovered locally: the current turn aborts and no
// partial answer is ever returned.
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// Exchange is one prior question/answer pair of the conversation.
type Exchange struct {
	Question string
	Answer   string
}

// Passage is one retrieved chunk with its source locator, formatted into
// the grounded generation prompt.
type Passage struct {
	Text   string
	Source string
}

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

// ContextualizeQuestion turns the new question plus the accumulated chat
// history into a standalone query suitable for retrieval.
func (c *Client) ContextualizeQuestion(ctx context.Context, history []Exchange, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	var sb strings.Builder
	for _, ex := range history {
		fmt.Fprintf(&sb, "Frage: %s\nAntwort: %s\n", ex.Question, ex.Answer)
	}

	prompt := fmt.Sprintf(contextualizeTemplate, sb.String(), question)

	result, err := c.complete(ctx, prompt)
	if err != nil {
		return "", &CapabilityError{Op: "contextualize question", Err: err}
	}
	return result, nil
}

// GenerateAnswer produces the grounded answer with inline [n] markers, where
// n numerically references the n-th passage in the supplied order.
func (c *Client) GenerateAnswer(ctx context.Context, question, language string, passages []Passage) (string, error) {
	formatted := make([]string, len(passages))
	for i, p := range passages {
		formatted[i] = fmt.Sprintf(passageTemplate, p.Text, p.Source)
	}

	prompt := fmt.Sprintf(answerTemplate, language, question, strings.Join(formatted, "\n\n"))

	result, err := c.complete(ctx, prompt)
	if err != nil {
		return "", &CapabilityError{Op: "generate answer", Err: err}
	}

	logger.Info("Answer generated",
		zap.String("language", language),
		zap.Int("passages", len(passages)),
		zap.Int("answer_length", len(result)),
	)
	return result, nil
}

func (c *Client) complete(ctx context.Context, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = append([]float32(nil), resp.Data[0].Embedding...)
			return nil
		})
	})
	if err != nil {
		return nil, &CapabilityError{Op: "embed text", Err: err}
	}

	return embedding, nil
}

// GenerateBatchEmbeddings embeds texts in fixed-size batches. Results are
// appended strictly in input order: downstream locator alignment depends on
// positional correspondence between texts and embeddings.
func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))

	const batchSize = 100
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(c.embeddingModel),
				})
				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embeddings = append(embeddings, append([]float32(nil), data.Embedding...))
				}
				return nil
			})
		})
		if err != nil {
			return nil, &CapabilityError{Op: "embed batch", Err: err}
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))
	return embeddings, nil
}
