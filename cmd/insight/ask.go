package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	conv "github.com/bryanwahyu/scan-insight/internal/domain/conversation"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

// Asker runs one conversation turn.
type Asker interface {
	Ask(ctx context.Context, st *conv.State, msg string) conv.Reply
}

var askOutDir string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask about stored findings; without a question starts an interactive session",
	Long: `ask answers questions about the stored findings. "report <category>" renders
the summary tables for code, container, kubernetes, aws or all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, true)
		if err != nil {
			return err
		}
		defer closeApp(app)

		st := conv.NewState(uuid.NewString())
		if len(args) > 0 {
			msg, err := middleware.ValidateMessage(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printReply(cmd.OutOrStdout(), app.Orchestrator.Ask(ctx, st, msg), askOutDir)
		}
		return repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), app.Orchestrator, st, askOutDir)
	},
}

func init() {
	askCmd.Flags().StringVar(&askOutDir, "out", ".", "directory for report attachments")
}

// repl reads one question per line until EOF, "exit" or "quit".
func repl(ctx context.Context, in io.Reader, out io.Writer, asker Asker, st *conv.State, outDir string) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprintln(out, `Ask about your findings, "report <category>" for tables, "exit" to quit.`)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		msg, err := middleware.ValidateMessage(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if err := printReply(out, asker.Ask(ctx, st, msg), outDir); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func printReply(out io.Writer, reply conv.Reply, outDir string) error {
	fmt.Fprintln(out, reply.Text)
	a := reply.Attachment
	switch {
	case a == nil:
	case a.URL != "":
		fmt.Fprintf(out, "\nattachment: %s\n", a.URL)
	case len(a.Data) > 0:
		path := filepath.Join(outDir, filepath.Base(a.Name))
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return fmt.Errorf("write attachment: %w", err)
		}
		fmt.Fprintf(out, "\nattachment saved to %s\n", path)
	}
	return nil
}
