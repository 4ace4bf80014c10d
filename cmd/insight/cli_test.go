package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scan-insight/internal/application/ingest"
	conv "github.com/bryanwahyu/scan-insight/internal/domain/conversation"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

type recordingAsker struct{ got []string }

func (a *recordingAsker) Ask(_ context.Context, _ *conv.State, msg string) conv.Reply {
	a.got = append(a.got, msg)
	if strings.HasPrefix(msg, "report") {
		return conv.Reply{Text: "tables", Attachment: &conv.Attachment{Name: "../report.csv", Data: []byte("a,b\n")}}
	}
	return conv.Reply{Text: "answer to " + msg}
}

func TestRepl(t *testing.T) {
	// given
	asker := &recordingAsker{}
	dir := t.TempDir()
	in := strings.NewReader("how many critical?\n\n   \nreport aws\nexit\nnever asked\n")
	var out bytes.Buffer

	// when
	err := repl(context.Background(), in, &out, asker, conv.NewState("t"), dir)

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"how many critical?", "report aws"}, asker.got)
	assert.Contains(t, out.String(), "answer to how many critical?")
	data, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestRepl_EOF(t *testing.T) {
	asker := &recordingAsker{}
	err := repl(context.Background(), strings.NewReader("hello"), &bytes.Buffer{}, asker, conv.NewState("t"), t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, asker.got)
}

func TestPrintReply_URL(t *testing.T) {
	var out bytes.Buffer
	err := printReply(&out, conv.Reply{Text: "done", Attachment: &conv.Attachment{URL: "http://minio/reports/x.csv"}}, t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "attachment: http://minio/reports/x.csv")
}

func TestConfirm(t *testing.T) {
	cases := map[string]bool{
		"yes\n":  true,
		"Y\n":    true,
		"no\n":   false,
		"\n":     false,
		"":       false,
		"yes":    true,
		"yess\n": false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		assert.Equal(t, want, confirm(strings.NewReader(input), &out, "sure? "), "input %q", input)
		assert.Equal(t, "sure? ", out.String())
	}
}

type fakeIngester struct {
	results []ingest.Result
	deleted int64
	err     error
}

func (f fakeIngester) Ingest(_ context.Context, c findings.Category) (int, error) {
	return 3, f.err
}

func (f fakeIngester) IngestAll(context.Context) ([]ingest.Result, error) { return f.results, f.err }

func (f fakeIngester) Refresh(context.Context) (int64, error) { return f.deleted, f.err }

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestRunIngest(t *testing.T) {
	cmd, out := testCmd()
	svc := fakeIngester{results: []ingest.Result{
		{Category: findings.CategoryKubernetes, Count: 5},
		{Category: findings.CategoryAWS, Skipped: true, Reason: "report not found"},
	}}

	require.NoError(t, runIngest(cmd, svc, findings.CategoryAll))

	assert.Contains(t, out.String(), "kubernetes")
	assert.Contains(t, out.String(), "skipped: report not found")

	cmd, out = testCmd()
	require.NoError(t, runIngest(cmd, svc, findings.CategoryCode))
	assert.Contains(t, out.String(), "3")

	cmd, _ = testCmd()
	assert.ErrorIs(t, runIngest(cmd, fakeIngester{err: findings.ErrStorage}, findings.CategoryCode), findings.ErrStorage)
}

func TestRunRefresh(t *testing.T) {
	cmd, out := testCmd()
	require.NoError(t, runRefresh(cmd, fakeIngester{deleted: 42}))
	assert.Equal(t, "deleted 42 findings\n", out.String())

	cmd, _ = testCmd()
	assert.Error(t, runRefresh(cmd, fakeIngester{err: errors.New("locked")}))
}
