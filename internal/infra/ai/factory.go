package ai

import (
	"context"
	"fmt"
	"os"

	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/infra/ai/gemini"
	"github.com/bryanwahyu/scan-insight/internal/infra/ai/openai"
)

// Options selects and configures the completion provider.
type Options struct {
	Provider string // "openai" (default) | "gemini"
	APIKey   string
	Model    string
	BaseURL  string
}

// NewClient returns the completion client for the configured provider and a
// close func for providers holding connections.
func NewClient(ctx context.Context, o Options) (domai.Client, func(), error) {
	switch o.Provider {
	case "", "openai":
		key := o.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, nil, fmt.Errorf("openai: api key not configured")
		}
		return openai.NewClient(key, o.Model, o.BaseURL), func() {}, nil
	case "gemini":
		key := o.APIKey
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		if key == "" {
			return nil, nil, fmt.Errorf("gemini: api key not configured")
		}
		c, err := gemini.NewClient(ctx, key, o.Model)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ai provider: %s", o.Provider)
	}
}
