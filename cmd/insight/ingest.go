package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/scan-insight/internal/application/ingest"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

// Ingester is the part of ingest.Service the commands use.
type Ingester interface {
	Ingest(ctx context.Context, category findings.Category) (int, error)
	IngestAll(ctx context.Context) ([]ingest.Result, error)
	Refresh(ctx context.Context) (int64, error)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <code|container|kubernetes|aws|all>",
	Short: "Normalize, score and store scanner reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := middleware.ValidateCategory(args[0])
		if err != nil {
			return err
		}
		app, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeApp(app)
		return runIngest(cmd, app.Ingest, category)
	},
}

func runIngest(cmd *cobra.Command, svc Ingester, category findings.Category) error {
	var results []ingest.Result
	if category == findings.CategoryAll {
		var err error
		if results, err = svc.IngestAll(cmd.Context()); err != nil {
			return err
		}
	} else {
		n, err := svc.Ingest(cmd.Context(), category)
		if err != nil {
			return err
		}
		results = []ingest.Result{{Category: category, Count: n}}
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results []ingest.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"category", "findings", "status"})
	table.SetAutoFormatHeaders(false)
	for _, r := range results {
		status := "ingested"
		if r.Skipped {
			status = "skipped: " + r.Reason
		}
		table.Append([]string{r.Category.Dir(), strconv.Itoa(r.Count), status})
	}
	table.Render()
}

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Delete every stored finding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !refreshForce && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
			"This deletes every stored finding. Type 'yes' to continue: ") {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
		app, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeApp(app)
		return runRefresh(cmd, app.Ingest)
	},
}

func runRefresh(cmd *cobra.Command, svc Ingester) error {
	n, err := svc.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d findings\n", n)
	return nil
}

// confirm reads one line and accepts only "y" or "yes".
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "skip the confirmation prompt")
}
