// Package knowledge adapts a chat completion backend to the interaction
// lookup and structured generation ports used by the analytics and alert
// layers.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emeeran/phrm-diag-sub000/internal/metrics"
)

// Completer sends one prompt pair to a language model
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	opLookupInteraction = "lookup_interaction"
	opGenerate          = "generate"

	statusOK    = "ok"
	statusError = "error"
)

// Client implements LookupInteraction and GenerateStructured.
// Every call makes a single attempt; callers wrap it in retry.Do.
type Client struct {
	completer Completer
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewClient creates a knowledge client. A nil limiter disables throttling.
func NewClient(completer Completer, limiter *rate.Limiter, m *metrics.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		completer: completer,
		limiter:   limiter,
		metrics:   m,
		logger:    logger,
	}
}

// NewLimiter builds the outbound limiter from requests per second and burst
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type interactionResponse struct {
	Interactions []string `json:"interactions"`
}

// LookupInteraction asks the model for known interactions between two
// medications. Output that is not the expected JSON yields no findings.
func (c *Client) LookupInteraction(ctx context.Context, medA, medB string) ([]string, error) {
	content, err := c.call(ctx, opLookupInteraction, interactionSystemPrompt, buildInteractionPrompt(medA, medB))
	if err != nil {
		return nil, err
	}

	var resp interactionResponse
	if err := json.Unmarshal([]byte(cleanJSON(content)), &resp); err != nil {
		c.logger.Warn("discarding malformed interaction response",
			zap.String("medication_a", medA),
			zap.String("medication_b", medB),
			zap.Error(err),
		)
		return nil, nil
	}

	findings := make([]string, 0, len(resp.Interactions))
	for _, finding := range resp.Interactions {
		if finding = strings.TrimSpace(finding); finding != "" {
			findings = append(findings, finding)
		}
	}
	return findings, nil
}

// GenerateStructured runs the prompt registered for kind over input and
// returns the model output with markdown fences removed. The output is not
// validated; callers decide how to treat malformed JSON.
func (c *Client) GenerateStructured(ctx context.Context, kind, input string) (json.RawMessage, error) {
	prompt, ok := generationPrompts[kind]
	if !ok {
		return nil, fmt.Errorf("invalid generation kind: %q", kind)
	}

	content, err := c.call(ctx, opGenerate, generationSystemPrompt, fmt.Sprintf(prompt, input))
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSON(content)
	if !json.Valid([]byte(cleaned)) {
		c.logger.Warn("generation returned invalid JSON", zap.String("kind", kind))
	}
	return json.RawMessage(cleaned), nil
}

func (c *Client) call(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("failed to acquire %s rate limit: %w", operation, err)
		}
	}

	start := time.Now()
	content, err := c.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		c.metrics.RecordExternalCall(operation, statusError, time.Since(start))
		return "", fmt.Errorf("failed to complete %s request: %w", operation, err)
	}
	c.metrics.RecordExternalCall(operation, statusOK, time.Since(start))
	return content, nil
}

// cleanJSON strips the markdown code fences models sometimes wrap JSON in
func cleanJSON(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
