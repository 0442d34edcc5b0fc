package ai

import (
	"context"

	"finsight/internal/adapters/config"
)

// BuildClient assembles the production client stack from config: the
// Gemini backend wrapped with per-minute smoothing.
func BuildClient(ctx context.Context, cfg config.AIConfig) (Client, error) {
	gemini, err := NewGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSmoothedClient(gemini, cfg.ReqPerMinute, cfg.Burst), nil
}
