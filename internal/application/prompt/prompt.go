package prompt

import (
	"fmt"
	"strings"
)

// GenericFailureNotice is the only failure text a user ever sees.
const GenericFailureNotice = "Sorry, I could not complete that request. Please try again."

// SchemaDescription documents the findings table for SQL generation.
const SchemaDescription = `Table findings (one row per finding, unique on category, finding_id, resource_name):
- category TEXT: one of CODE, CONTAINER, KUBERNETES, AWS
- finding_id TEXT: vulnerability or check identifier (e.g. CVE-2024-1234, AVD-AWS-0086)
- resource_name TEXT: affected resource, package (purl) or role
- service_name TEXT: cloud service name, "general" when not applicable
- classifier_id TEXT: stable rule identifier, empty for CVE findings
- title TEXT
- description TEXT
- resolution TEXT
- severity TEXT: one of UNKNOWN, LOW, MEDIUM, HIGH, CRITICAL
- message TEXT
- cvss_vector TEXT, nullable
- risk_score REAL 0-10, nullable
- cause_metadata TEXT: JSON context`

// CyberSecuritySystemPrompt frames the CVSS estimator.
func CyberSecuritySystemPrompt() string {
	return `You are a senior cloud and application security analyst. You assess misconfigurations and vulnerabilities precisely and conservatively.`
}

// IssueScoringPrompt asks for a single CVSS v3.1 vector for one finding kind.
func IssueScoringPrompt(issueJSON string) string {
	return fmt.Sprintf(`Estimate the CVSS v3.1 base vector for the security issue below.
Respond with the vector string only, for example CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H.
Do not add explanation or code fences.

Issue:
%s`, issueJSON)
}

// IntentClassificationPrompt asks how relevant a question is to the findings database.
func IntentClassificationPrompt(question string) string {
	return fmt.Sprintf(`Decide whether answering the question below requires querying a database of security scan findings
(code, container, Kubernetes and AWS issues with severity, risk score and affected resources).
Respond with one JSON object only: {"Score": <0-100>, "Reason": "<short reason>"}.
A high score means the answer depends on the stored findings.

Question: %s`, question)
}

// QueryGeneratorSystemPrompt pins the generator to a bare statement.
func QueryGeneratorSystemPrompt() string {
	return "You are a SQL query generator. Respond only with a valid SQL query string, with no explanation or additional text. The output must be ready to run directly as a SQL command."
}

// QueryPrompt embeds the question, category hint, dialect and schema.
func QueryPrompt(question, category, dialect string) string {
	return fmt.Sprintf(`Write one read-only %s SELECT statement that answers the question.
Only use the table and columns listed in the schema. Do not modify data.
Category hint: %s (ALL means every category).

%s

Question: %s`, dialect, category, SchemaDescription, question)
}

// ToolSelectionPrompt asks the model to pick one capability and its arguments.
func ToolSelectionPrompt(question, capabilitiesJSON string) string {
	return fmt.Sprintf(`You can call one of the tools below to help answer the user.
Respond with one JSON object only: {"name": "<tool name or empty>", "arguments": {...}}.
Use an empty name when no tool is useful.

Tools:
%s

Question: %s`, capabilitiesJSON, question)
}

// ReportSystemPrompt frames the narrative report steps.
func ReportSystemPrompt() string {
	return `You are a security reporting assistant writing for engineering leadership.
Be factual, cite finding ids and counts from the data provided, and never invent findings.`
}

// SummaryPrompt drives the executive summary of a category.
func SummaryPrompt(category, summary, result string) string {
	return fmt.Sprintf(`Write an executive summary of the %s security scan results.

Severity overview:
%s

Top issues ordered by risk score:
%s`, category, summary, result)
}

// InsightPrompt asks for observations on the top rows.
func InsightPrompt(result string) string {
	return fmt.Sprintf(`Give key insights about the highest-risk issues below: common root causes,
blast radius, and which fixes remove the most risk.

%s`, result)
}

// ConcludePrompt closes the report.
func ConcludePrompt(result string) string {
	return fmt.Sprintf(`Conclude the report with prioritized next steps based on the full result table below.

%s`, result)
}

// ExplanationPrompt answers a free-form question with whatever context was gathered.
func ExplanationPrompt(question, sqlQuery, scanResults, toolResults string) string {
	var b strings.Builder
	b.WriteString("Answer the user's question about their security posture.\n")
	b.WriteString("If database results are provided, base the answer on them.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	if sqlQuery != "" {
		fmt.Fprintf(&b, "\nSQL query used:\n%s\n", sqlQuery)
	}
	if scanResults != "" {
		fmt.Fprintf(&b, "\nScan results:\n%s\n", scanResults)
	}
	if toolResults != "" {
		fmt.Fprintf(&b, "\nTool results:\n%s\n", toolResults)
	}
	return b.String()
}
