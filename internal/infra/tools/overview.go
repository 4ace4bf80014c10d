package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Summarizer is the read side of the finding store.
type Summarizer interface {
	Summarize(ctx context.Context, category findings.Category, opts findings.SummaryOptions) (*findings.Summary, error)
}

// SeverityOverview reports issue and resource counts per (category, severity).
type SeverityOverview struct {
	Store Summarizer
}

func (SeverityOverview) Name() string { return "severity_overview" }

func (SeverityOverview) Description() string {
	return "Count stored security issues and affected resources per category and severity."
}

func (SeverityOverview) Schema() map[string]any {
	return objectSchema(map[string]any{
		"category": map[string]any{"type": "string", "enum": []string{"code", "container", "kubernetes", "aws", "all"}},
	})
}

func (t SeverityOverview) Execute(ctx context.Context, args map[string]any) (string, error) {
	category := findings.CategoryAll
	if s, ok := args["category"].(string); ok && s != "" {
		c, ok := findings.ParseCategory(s)
		if !ok {
			return "", fmt.Errorf("unknown category %q", s)
		}
		category = c
	}
	sum, err := t.Store.Summarize(ctx, category, findings.SummaryOptions{})
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(sum.Aggregate)
	return string(b), err
}
