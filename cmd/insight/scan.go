package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

var (
	scanTarget string
	scanIngest bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <code|container|kubernetes|aws|all>",
	Short: "Run the scanner for a category and write its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := middleware.ValidateCategory(args[0])
		if err != nil {
			return err
		}
		if scanTarget != "" {
			if category == findings.CategoryAll {
				return fmt.Errorf("--target needs a single category")
			}
			if category != findings.CategoryAWS {
				if err := middleware.ValidatePath(scanTarget); err != nil {
					return err
				}
			}
		}

		ctx := cmd.Context()
		app, err := loadApp(ctx, false)
		if err != nil {
			return err
		}
		defer closeApp(app)

		svc := app.Ingest
		if scanTarget != "" {
			svc.Targets[category] = scanTarget
		}

		if category == findings.CategoryAll {
			if err := svc.ScanAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scans finished")
		} else {
			res, err := svc.Scan(ctx, category)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: report already present at %s\n", category.Dir(), res.ReportPath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: report written to %s (exit %d, %dms)\n",
					category.Dir(), res.ReportPath, res.ExitCode, res.DurationMS)
			}
		}

		if !scanIngest {
			return nil
		}
		return runIngest(cmd, app.Ingest, category)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanTarget, "target", "", "override the configured target (folder, image tarball, kubeconfig or AWS region)")
	scanCmd.Flags().BoolVar(&scanIngest, "ingest", false, "ingest the report after scanning")
}
