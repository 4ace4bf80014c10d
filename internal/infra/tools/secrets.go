package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

type secretDetector struct {
	re             *regexp.Regexp
	title          string
	recommendation string
}

var secretDetectors = []secretDetector{
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "Private key material", "Remove private keys and rotate affected keys immediately."},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS access key", "Revoke the access key and use IAM roles or a secret manager."},
	{regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*["']?[A-Za-z0-9/+=]{20,}`), "AWS secret access key", "Rotate the secret and audit its usage."},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), "GitHub token", "Revoke the token and store it in CI/CD secrets."},
	{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "GitHub PAT", "Revoke and rotate the PAT."},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "Google API key", "Restrict and rotate the API key."},
	{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), "Slack token", "Revoke the token in Slack admin."},
	{regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), "Stripe secret key", "Rotate the key in the Stripe dashboard."},
	{regexp.MustCompile(`(?i)sk-[a-z0-9\-_]{20,}`), "OpenAI API key", "Revoke and rotate the key."},
	{regexp.MustCompile(`[A-Za-z0-9-_]{8,}\.eyJ[A-Za-z0-9-_]{5,}\.[A-Za-z0-9-_]{10,}`), "JWT token", "Invalidate sessions and prefer short-lived tokens."},
	{regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?bearer\s+[A-Za-z0-9\-\._~\+\/]+=*`), "Bearer token", "Remove bearer tokens and rotate credentials."},
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "Credentials embedded in URL", "Pass credentials via configuration or a secret store."},
	{regexp.MustCompile(`(?i)(api[_-]?key|client[_-]?secret|secret|token)\s*[:=]\s*["']?[^\s"']{12,}`), "Credential literal", "Use environment variables or a secret manager."},
}

// SecretMatch is one detected credential; Sample is masked.
type SecretMatch struct {
	Title          string            `json:"title"`
	Severity       findings.Severity `json:"severity"`
	Sample         string            `json:"sample"`
	Recommendation string            `json:"recommendation"`
}

// DetectSecrets runs every detector once over text.
func DetectSecrets(text string) []SecretMatch {
	var out []SecretMatch
	for _, d := range secretDetectors {
		match := d.re.FindString(text)
		if match == "" {
			continue
		}
		out = append(out, SecretMatch{
			Title:          d.title,
			Severity:       findings.SeverityCritical,
			Sample:         mask(match),
			Recommendation: d.recommendation,
		})
	}
	return out
}

// mask keeps the first four characters so the secret itself is never echoed.
func mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", min(len(r)-4, 16))
}

// SecretScan checks a pasted snippet (config, log line, env file) for credentials.
type SecretScan struct{}

func (SecretScan) Name() string { return "secret_scan" }

func (SecretScan) Description() string {
	return "Check a text snippet for exposed credentials such as cloud keys, tokens and private keys."
}

func (SecretScan) Schema() map[string]any {
	return objectSchema(map[string]any{
		"text": map[string]any{"type": "string", "description": "content to inspect"},
	}, "text")
}

func (SecretScan) Execute(_ context.Context, args map[string]any) (string, error) {
	text, err := stringArg(args, "text")
	if err != nil {
		return "", err
	}
	matches := DetectSecrets(text)
	if matches == nil {
		matches = []SecretMatch{}
	}
	b, err := json.Marshal(map[string]any{"count": len(matches), "matches": matches})
	return string(b), err
}
