package querygen

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/application/prompt"
	"github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

var fence = regexp.MustCompile("(?s)```(?:[a-zA-Z]+\\r?\\n)?\\s*(.*?)\\s*```")

// Generator turns a question into a candidate SQL statement. Its output is
// untrusted and must pass the safety gate before execution.
type Generator struct {
	LLM     ai.Client
	Dialect string // "mysql" | "postgres"
	Log     *zap.Logger
}

func NewGenerator(llm ai.Client, dialect string, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{LLM: llm, Dialect: dialect, Log: log}
}

// Generate returns the candidate statement, or ok=false when no query could be produced.
func (g *Generator) Generate(ctx context.Context, question string, category findings.Category) (string, bool) {
	if g.LLM == nil {
		return "", false
	}
	hint := string(category)
	if hint == "" {
		hint = string(findings.CategoryAll)
	}
	resp, err := ai.Ask(ctx, g.LLM, prompt.QueryGeneratorSystemPrompt(), prompt.QueryPrompt(question, hint, g.dialectName()))
	if err != nil {
		g.Log.Warn("sql generation failed", zap.Error(err))
		return "", false
	}
	q := StripFences(resp)
	if q == "" {
		g.Log.Warn("sql generation returned nothing")
		return "", false
	}
	return q, true
}

func (g *Generator) dialectName() string {
	if g.Dialect == "postgres" {
		return "PostgreSQL"
	}
	return "MySQL"
}

// StripFences removes markdown code fences around a statement.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(s, "`"))
}
