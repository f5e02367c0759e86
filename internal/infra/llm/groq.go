// Package llm classifies free text through an OpenAI-compatible chat
// completions endpoint (Groq by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/llm")

const serviceName = "classifier"

// Config selects the endpoint and model.
type Config struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client implements port.IntentClassifier and port.CategoryClassifier.
type Client struct {
	httpClient *http.Client
	cfg        Config
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	logger     *zap.Logger
}

// NewClient creates the classifier client. The breaker is shared by both
// classification calls since they hit the same upstream.
func NewClient(httpClient *http.Client, cfg Config, cb *gobreaker.CircuitBreaker, retry resilience.Config, logger *zap.Logger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
		retry:      retry,
		logger:     logger,
	}
}

// ============================================================
// Wire types
// ============================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage domain.TokenUsage `json:"usage"`
}

// ============================================================
// Classification
// ============================================================

// ClassifyIntent asks the model for a JSON intent and validates it into the
// closed Intent union. Non-JSON content or a missing intent key is an
// ErrExternalService; an unrecognized tag is an ErrUnknownIntent.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (*domain.Classification, error) {
	ctx, span := tracer.Start(ctx, "Client.ClassifyIntent")
	defer span.End()

	resp, err := c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: intentPrompt()},
			{Role: "user", Content: text},
		},
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	intent, err := domain.DecodeIntent([]byte(content))
	if err != nil {
		var unknown *domain.ErrUnknownIntent
		if errors.As(err, &unknown) {
			return nil, err
		}
		c.logger.Warn("classifier returned unusable payload",
			zap.String("content", truncate(content, 200)),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	span.SetAttributes(
		attribute.String("intent", string(intent.Kind())),
		attribute.Int("tokens.total", resp.Usage.TotalTokens),
	)
	return &domain.Classification{Intent: intent, Usage: resp.Usage}, nil
}

// ClassifyCategory maps raw onto the taxonomy. Answers outside the taxonomy
// are errors so the caller can keep the raw text.
func (c *Client) ClassifyCategory(ctx context.Context, raw string) (domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Client.ClassifyCategory")
	defer span.End()

	resp, err := c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: categoryPrompt()},
			{Role: "user", Content: raw},
		},
		MaxTokens: 10,
	})
	if err != nil {
		return "", err
	}

	answer := resp.Choices[0].Message.Content
	category, ok := domain.ParseCategory(answer)
	if !ok {
		return "", &domain.ErrExternalService{
			Service: serviceName,
			Err:     fmt.Errorf("category %q is not in the taxonomy", truncate(answer, 50)),
		}
	}
	return category, nil
}

// complete performs one chat completion through the breaker and retry loop.
func (c *Client) complete(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		var out chatResponse
		innerErr := resilience.RetryWithBackoff(ctx, c.retry, func() error {
			return c.post(ctx, body, &out)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &out, nil
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return nil, &domain.ErrCircuitOpen{Service: serviceName}
		}
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	resp := result.(*chatResponse)
	if len(resp.Choices) == 0 {
		return nil, &domain.ErrExternalService{Service: serviceName, Err: errors.New("response has no choices")}
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte, out *chatResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("create http request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http call to classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode classifier response: %w", err))
	}
	return nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite
// JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
