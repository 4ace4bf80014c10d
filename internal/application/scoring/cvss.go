package scoring

import (
	"fmt"
	"regexp"
	"strings"

	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
)

var vectorPattern = regexp.MustCompile(`CVSS:3\.[01]/[A-Za-z]+:[A-Za-z](?:/[A-Za-z]+:[A-Za-z])*`)

// ExtractVector pulls the first CVSS v3 vector out of free-form estimator output.
func ExtractVector(text string) (string, bool) {
	v := vectorPattern.FindString(text)
	return v, v != ""
}

// BaseScore computes the CVSS v3 base score of a vector string.
func BaseScore(vector string) (float64, error) {
	vector = strings.TrimSpace(vector)
	switch {
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		c, err := gocvss31.ParseVector(vector)
		if err != nil {
			return 0, err
		}
		return c.BaseScore(), nil
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		c, err := gocvss30.ParseVector(vector)
		if err != nil {
			return 0, err
		}
		return c.BaseScore(), nil
	default:
		return 0, fmt.Errorf("unsupported cvss vector %q", vector)
	}
}

// SafeScore returns nil for an absent or malformed vector.
func SafeScore(vector *string) *float64 {
	if vector == nil || *vector == "" {
		return nil
	}
	s, err := BaseScore(*vector)
	if err != nil {
		return nil
	}
	return &s
}

// Rating is the CVSS v3 qualitative severity of a base score.
func Rating(score float64) string {
	switch {
	case score >= 9.0:
		return "CRITICAL"
	case score >= 7.0:
		return "HIGH"
	case score >= 4.0:
		return "MEDIUM"
	case score > 0:
		return "LOW"
	}
	return "NONE"
}
