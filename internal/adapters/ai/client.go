// Package ai holds the model client used for analysis generation. The
// rest of the system talks to the Client interface so tests can stub the
// model and so per-minute smoothing can wrap any backend.
package ai

import "context"

// Client generates text from a system instruction and a user prompt.
type Client interface {
	// Invoke sends the prompts to the model and returns its raw text output.
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model returns the identifier of the underlying model.
	Model() string
}
