package conversation

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

var (
	aggregateHeader = []string{"category", "severity", "total_resource_count", "issue_count"}
	detailHeader    = []string{"id", "category", "severity", "risk_score", "resource_count", "resource_names", "description", "resolution"}
)

func renderTable(header []string, rows [][]string) string {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()
	return buf.String()
}

func aggregateRows(list []findings.SeverityGroup) [][]string {
	rows := make([][]string, 0, len(list))
	for _, g := range list {
		rows = append(rows, []string{
			string(g.Category),
			string(g.Severity),
			strconv.Itoa(g.TotalResourceCount),
			strconv.Itoa(g.IssueCount),
		})
	}
	return rows
}

func detailRows(list []findings.IssueGroup) [][]string {
	rows := make([][]string, 0, len(list))
	for _, g := range list {
		rows = append(rows, []string{
			g.FindingID,
			string(g.Category),
			string(g.Severity),
			formatScore(g.RiskScore),
			strconv.Itoa(g.ResourceCount),
			g.ResourceNames,
			g.Description,
			g.Resolution,
		})
	}
	return rows
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

// detailCSV is the attachment emitted with a report.
func detailCSV(list []findings.IssueGroup) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(detailHeader); err != nil {
		return nil, err
	}
	if err := w.WriteAll(detailRows(list)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
