package findings

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DefaultDetailRowCap       = 30
	DefaultResourceNameBudget = 200
)

// SummaryOptions bounds the detail output handed to prompts.
type SummaryOptions struct {
	DetailRowCap       int
	ResourceNameBudget int
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.DetailRowCap <= 0 {
		o.DetailRowCap = DefaultDetailRowCap
	}
	if o.ResourceNameBudget <= 0 {
		o.ResourceNameBudget = DefaultResourceNameBudget
	}
	return o
}

// IssueGroup is one detail row: findings of the same kind grouped across resources.
type IssueGroup struct {
	FindingID     string   `json:"id"`
	Category      Category `json:"category"`
	Description   string   `json:"description"`
	Resolution    string   `json:"resolution"`
	Severity      Severity `json:"severity"`
	RiskScore     *float64 `json:"risk_score"`
	ResourceCount int      `json:"resource_count"`
	ResourceNames string   `json:"resource_names"`
}

// SeverityGroup is one aggregate row keyed by (category, severity).
type SeverityGroup struct {
	Category           Category `json:"category"`
	Severity           Severity `json:"severity"`
	TotalResourceCount int      `json:"total_resource_count"`
	IssueCount         int      `json:"issue_count"`
}

// Summary is the output of summarize(category).
type Summary struct {
	Category  Category        `json:"category"`
	Aggregate []SeverityGroup `json:"aggregate"`
	Details   []IssueGroup    `json:"details"`
}

// BuildSummary aggregates grouped issues by (category, severity), orders details by
// descending risk score, truncates resource name lists and caps the detail rows.
func BuildSummary(category Category, groups []IssueGroup, opts SummaryOptions) *Summary {
	opts = opts.withDefaults()

	details := make([]IssueGroup, len(groups))
	copy(details, groups)
	sort.SliceStable(details, func(i, j int) bool {
		return riskGreater(details[i].RiskScore, details[j].RiskScore)
	})

	type aggKey struct {
		c Category
		s Severity
	}
	agg := make(map[aggKey]*SeverityGroup)
	var order []aggKey
	for _, g := range details {
		k := aggKey{g.Category, g.Severity}
		sg, ok := agg[k]
		if !ok {
			sg = &SeverityGroup{Category: g.Category, Severity: g.Severity}
			agg[k] = sg
			order = append(order, k)
		}
		sg.TotalResourceCount += g.ResourceCount
		sg.IssueCount++
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].c != order[j].c {
			return order[i].c < order[j].c
		}
		return order[i].s < order[j].s
	})
	aggregate := make([]SeverityGroup, 0, len(order))
	for _, k := range order {
		aggregate = append(aggregate, *agg[k])
	}

	if len(details) > opts.DetailRowCap {
		details = details[:opts.DetailRowCap]
	}
	for i := range details {
		details[i].ResourceNames = LimitResourceNames(details[i].ResourceNames, opts.ResourceNameBudget)
	}
	return &Summary{Category: category, Aggregate: aggregate, Details: details}
}

// riskGreater orders scores descending with absent scores last.
func riskGreater(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}

// LimitResourceNames truncates a ", "-joined list at a whole-item boundary so the
// result, including the "..." marker, never exceeds budget characters.
func LimitResourceNames(names string, budget int) string {
	if utf8.RuneCountInString(names) <= budget {
		return names
	}
	const sep, ellipsis = ", ", "..."
	limit := budget - utf8.RuneCountInString(ellipsis)

	var b strings.Builder
	used := 0
	for _, item := range strings.Split(names, sep) {
		n := utf8.RuneCountInString(item)
		if used > 0 {
			n += utf8.RuneCountInString(sep)
		}
		if used+n > limit {
			break
		}
		if used > 0 {
			b.WriteString(sep)
		}
		b.WriteString(item)
		used += n
	}
	if limit < 0 {
		return ""
	}
	return b.String() + ellipsis
}
