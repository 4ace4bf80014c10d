package tools

import (
	"context"
	"encoding/json"

	"github.com/bryanwahyu/scan-insight/internal/application/scoring"
)

// CVSSCalculator computes the base score of a CVSS v3 vector.
type CVSSCalculator struct{}

func (CVSSCalculator) Name() string { return "cvss_calculator" }

func (CVSSCalculator) Description() string {
	return "Compute the CVSS v3.0/v3.1 base score and severity of a vector string."
}

func (CVSSCalculator) Schema() map[string]any {
	return objectSchema(map[string]any{
		"vector": map[string]any{"type": "string", "description": "e.g. CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"},
	}, "vector")
}

func (CVSSCalculator) Execute(_ context.Context, args map[string]any) (string, error) {
	raw, err := stringArg(args, "vector")
	if err != nil {
		return "", err
	}
	vector, ok := scoring.ExtractVector(raw)
	if !ok {
		vector = raw
	}
	score, err := scoring.BaseScore(vector)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(map[string]any{
		"vector":     vector,
		"base_score": score,
		"severity":   scoring.Rating(score),
	})
	return string(b), err
}
