package findings

import (
	"path/filepath"
	"strings"
)

// Category enum
type Category string

const (
	CategoryCode       Category = "CODE"
	CategoryContainer  Category = "CONTAINER"
	CategoryKubernetes Category = "KUBERNETES"
	CategoryAWS        Category = "AWS"
	// CategoryAll is only valid as a summary scope, never on a stored Finding.
	CategoryAll Category = "ALL"
)

// Categories lists the stored categories in ingestion order.
var Categories = []Category{CategoryKubernetes, CategoryAWS, CategoryCode, CategoryContainer}

// ParseCategory accepts "code", "container", "kubernetes", "aws" or "all" in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryCode, CategoryContainer, CategoryKubernetes, CategoryAWS, CategoryAll:
		return c, true
	}
	return "", false
}

// Dir is the lower-case name used for report folders and commands.
func (c Category) Dir() string { return strings.ToLower(string(c)) }

// ReportPath is where the scanner writes the category's report: {dir}/{category}/default.json.
func (c Category) ReportPath(dir string) string {
	return filepath.Join(dir, c.Dir(), "default.json")
}

// Severity enum
type Severity string

const (
	SeverityUnknown  Severity = "UNKNOWN"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity maps scanner severities onto the enum, UNKNOWN when unrecognised.
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToUpper(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev
	}
	return SeverityUnknown
}

// Finding is one normalized scan result. (Category, FindingID, ResourceName) is its identity.
type Finding struct {
	Category      Category `json:"category"`
	FindingID     string   `json:"finding_id"`
	ResourceName  string   `json:"resource_name"`
	ServiceName   string   `json:"service_name"`
	ClassifierID  string   `json:"classifier_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Resolution    string   `json:"resolution"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	CVSSVector    *string  `json:"cvss_vector,omitempty"`
	RiskScore     *float64 `json:"risk_score,omitempty"`
	CauseMetadata string   `json:"cause_metadata"`
}

// Key returns the composite identity.
func (f Finding) Key() Key {
	return Key{Category: f.Category, FindingID: f.FindingID, ResourceName: f.ResourceName}
}

// KindKey groups findings for scoring: classifier id when present, else finding id.
func (f Finding) KindKey() KindKey {
	id := f.ClassifierID
	if id == "" {
		id = f.FindingID
	}
	return KindKey{ID: id, Description: f.Description}
}

// Key is the unique identity of a stored Finding.
type Key struct {
	Category     Category
	FindingID    string
	ResourceName string
}

// KindKey identifies a FindingKind.
type KindKey struct {
	ID          string
	Description string
}

// FindingKind is the deduplicated projection sent to the risk scorer. Never persisted.
type FindingKind struct {
	Key         KindKey  `json:"-"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Resolution  string   `json:"resolution"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	CVSSVector  *string  `json:"-"`
	RiskScore   *float64 `json:"-"`
}

// UnscoredKinds projects findings without a CVSS vector onto their distinct kinds,
// preserving first-seen order.
func UnscoredKinds(list []Finding) []FindingKind {
	seen := make(map[KindKey]bool)
	var out []FindingKind
	for _, f := range list {
		if f.CVSSVector != nil {
			continue
		}
		k := f.KindKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, FindingKind{
			Key:         k,
			ID:          k.ID,
			Title:       f.Title,
			Description: f.Description,
			Resolution:  f.Resolution,
			Severity:    f.Severity,
			Message:     f.Message,
		})
	}
	return out
}

// MergeKinds left-joins scored kinds back onto every finding sharing the kind key.
// Findings that already carry a vector are left untouched.
func MergeKinds(list []Finding, kinds []FindingKind) []Finding {
	byKey := make(map[KindKey]FindingKind, len(kinds))
	for _, k := range kinds {
		byKey[k.Key] = k
	}
	out := make([]Finding, len(list))
	for i, f := range list {
		if f.CVSSVector == nil {
			if k, ok := byKey[f.KindKey()]; ok {
				f.CVSSVector = k.CVSSVector
				f.RiskScore = k.RiskScore
			}
		}
		out[i] = f
	}
	return out
}

// dedupe drops exact (finding_id, resource_name) repeats, keeping the first.
func dedupe(list []Finding) []Finding {
	type pair struct{ id, resource string }
	seen := make(map[pair]bool, len(list))
	out := list[:0]
	for _, f := range list {
		p := pair{f.FindingID, f.ResourceName}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, f)
	}
	return out
}
