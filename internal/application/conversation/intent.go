package conversation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

var reportCommand = regexp.MustCompile(`(?i)^/?report\s+([a-z]+)$`)

// Intent is decided before any branching: either a deterministic report command
// or a free-form question that needs classification.
type Intent interface{ isIntent() }

// ReportCommand asks for the summary/insight/conclusion report of one category.
type ReportCommand struct {
	Category findings.Category
}

// FreeFormQuestion is anything else.
type FreeFormQuestion struct {
	Text string
}

func (ReportCommand) isIntent()    {}
func (FreeFormQuestion) isIntent() {}

// ParseIntent recognises "report <category>" and "/report <category>".
func ParseIntent(msg string) Intent {
	text := strings.TrimSpace(msg)
	if m := reportCommand.FindStringSubmatch(text); m != nil {
		if cat, ok := findings.ParseCategory(m[1]); ok {
			return ReportCommand{Category: cat}
		}
	}
	return FreeFormQuestion{Text: text}
}

// relevance is the classifier's structured answer.
type relevance struct {
	Score  *float64 `json:"Score"`
	Reason string   `json:"Reason"`
}

var errNoScore = errors.New("classification has no score")

// parseRelevance reads the first JSON object in the classifier response.
func parseRelevance(resp string) (float64, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end <= start {
		return 0, errNoScore
	}
	var r relevance
	if err := json.Unmarshal([]byte(resp[start:end+1]), &r); err != nil {
		return 0, err
	}
	if r.Score == nil {
		return 0, errNoScore
	}
	return *r.Score, nil
}
