// Package enrich classifies and scores normalized job postings with an AI
// provider. Providers return raw text; this package owns prompt construction,
// strict JSON parsing, the single repair re-prompt and field validation.
package enrich

import "context"

// Provider is a text-completion backend. Implementations live in the
// gemini and openai subpackages.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
