package ai

import (
	"context"
	"time"

	"google.golang.org/genai"

	"finsight/internal/adapters/config"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// GeminiClient calls the Gemini API through the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	cfg    config.AIConfig
	log    *logger.Logger
}

// NewGeminiClient creates a Gemini-backed client from config.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig) (*GeminiClient, error) {
	if cfg.GeminiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return &GeminiClient{
		client: client,
		cfg:    cfg,
		log:    logger.Get().With("component", "gemini_client"),
	}, nil
}

// Invoke sends the prompts to Gemini and returns the raw response text.
// A per-request timeout from config bounds the call when the caller's
// context has no earlier deadline.
func (c *GeminiClient) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		TopP:            genai.Ptr(c.cfg.TopP),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(userPrompt), genCfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errors.Wrapf(errors.ErrTimeout, "gemini request after %s", time.Since(start).Round(time.Millisecond))
		}
		return "", errors.Wrap(err, "gemini generate content")
	}

	text := resp.Text()
	if text == "" {
		return "", errors.Wrap(errors.ErrInvocationFailed, "gemini returned empty response")
	}

	c.log.Debugf("Gemini response received in %s (%d chars)", time.Since(start).Round(time.Millisecond), len(text))
	return text, nil
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string {
	return c.cfg.Model
}
