package scoring

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/application/prompt"
	"github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Scorer attaches a CVSS vector and risk score to each finding kind.
// Kinds are scored one at a time; one kind's failure never blocks another.
type Scorer struct {
	Estimator ai.Client
	Log       *zap.Logger
}

func NewScorer(estimator ai.Client, log *zap.Logger) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{Estimator: estimator, Log: log}
}

// Score returns a copy of kinds with CVSSVector and RiskScore set (nil on failure).
func (s *Scorer) Score(ctx context.Context, kinds []findings.FindingKind) []findings.FindingKind {
	out := make([]findings.FindingKind, len(kinds))
	for i, k := range kinds {
		k.CVSSVector = s.estimate(ctx, k)
		k.RiskScore = SafeScore(k.CVSSVector)
		if k.CVSSVector != nil && k.RiskScore == nil {
			s.Log.Warn("unparseable cvss vector", zap.String("kind", k.ID), zap.String("vector", *k.CVSSVector))
		}
		out[i] = k
	}
	return out
}

func (s *Scorer) estimate(ctx context.Context, k findings.FindingKind) *string {
	if s.Estimator == nil {
		return nil
	}
	issue, err := json.Marshal(k)
	if err != nil {
		s.Log.Warn("encode finding kind", zap.String("kind", k.ID), zap.Error(err))
		return nil
	}
	resp, err := ai.Ask(ctx, s.Estimator, prompt.CyberSecuritySystemPrompt(), prompt.IssueScoringPrompt(string(issue)))
	if err != nil {
		s.Log.Warn("cvss estimation failed", zap.String("kind", k.ID), zap.Error(err))
		return nil
	}
	v, ok := ExtractVector(resp)
	if !ok {
		// no vector in the reply; the kind is stored unscored
		s.Log.Warn("undecodable cvss estimate", zap.String("kind", k.ID), zap.String("reply", resp))
		return nil
	}
	return &v
}
