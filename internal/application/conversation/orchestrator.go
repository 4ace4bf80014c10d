package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/application/prompt"
	"github.com/bryanwahyu/scan-insight/internal/domain/ai"
	conv "github.com/bryanwahyu/scan-insight/internal/domain/conversation"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// QueryGenerator produces untrusted candidate SQL.
type QueryGenerator interface {
	Generate(ctx context.Context, question string, category findings.Category) (string, bool)
}

// SafetyGate approves a statement for execution and returns the text to run.
type SafetyGate interface {
	Check(ctx context.Context, sqlText string) (string, error)
}

// QueryExecutor runs an approved statement and renders the rows.
type QueryExecutor interface {
	Run(ctx context.Context, stmt string) (string, error)
}

// Summaries is the read side of the finding store.
type Summaries interface {
	Summarize(ctx context.Context, category findings.Category, opts findings.SummaryOptions) (*findings.Summary, error)
}

// Options are the tunable bounds of a turn.
// A nil IntentThreshold uses 30; zero routes every positive score to the store.
type Options struct {
	IntentThreshold    *float64
	DetailRowCap       int
	ResourceNameBudget int
	MaxPromptChars     int
	InsightRows        int
	MaxHistory         int
}

func (o Options) withDefaults() Options {
	if o.IntentThreshold == nil {
		def := 30.0
		o.IntentThreshold = &def
	}
	if o.DetailRowCap <= 0 {
		o.DetailRowCap = findings.DefaultDetailRowCap
	}
	if o.ResourceNameBudget <= 0 {
		o.ResourceNameBudget = findings.DefaultResourceNameBudget
	}
	if o.MaxPromptChars <= 0 {
		o.MaxPromptChars = 80000
	}
	if o.InsightRows <= 0 {
		o.InsightRows = 5
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 20
	}
	return o
}

// maxSteps guards the loop against a handler that never reaches DONE.
const maxSteps = 16

// Orchestrator is the conversation state machine. It holds no per-thread state;
// every turn works on the State passed to Ask.
type Orchestrator struct {
	LLM       ai.Client
	Generator QueryGenerator
	Gate      SafetyGate
	Executor  QueryExecutor
	Store     Summaries
	Tools     conv.Registry          // optional
	Artifacts findings.ArtifactStore // optional
	Opts      Options
	Log       *zap.Logger

	handlers map[conv.Step]handler
}

type handler func(ctx context.Context, t *turn) conv.Step

// turn carries what a single Ask accumulates before it is returned.
type turn struct {
	st         *conv.State
	intent     Intent
	sections   []string
	attachment *conv.Attachment
	path       []conv.Step
	failed     bool
}

func NewOrchestrator(o Orchestrator) *Orchestrator {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	o.Opts = o.Opts.withDefaults()
	orc := &o
	orc.handlers = map[conv.Step]handler{
		conv.StepIntent:   orc.intentStep,
		conv.StepQueryDB:  orc.queryStep,
		conv.StepTool:     orc.toolStep,
		conv.StepSummary:  orc.summaryStep,
		conv.StepInsight:  orc.insightStep,
		conv.StepConclude: orc.concludeStep,
		conv.StepReason:   orc.reasonStep,
	}
	return orc
}

// Ask runs one turn on st. It never fails: technical errors are logged and the
// user sees the generic notice instead.
func (o *Orchestrator) Ask(ctx context.Context, st *conv.State, msg string) conv.Reply {
	t := &turn{st: st}
	st.ResetTurn()
	st.UserQuery = strings.TrimSpace(msg)
	st.Append(ai.Message{Role: ai.RoleUser, Content: st.UserQuery}, o.Opts.MaxHistory)

	step := conv.StepIntent
	for i := 0; step != conv.StepDone; i++ {
		h, ok := o.handlers[step]
		if !ok || i >= maxSteps {
			o.Log.Error("conversation stuck", zap.String("thread_id", st.ThreadID), zap.String("step", string(step)))
			t.sections = []string{prompt.GenericFailureNotice}
			break
		}
		t.path = append(t.path, step)
		step = h(ctx, t)
	}

	text := strings.Join(t.sections, "\n\n")
	ran := st.GeneratedSQL
	st.Append(ai.Message{Role: ai.RoleAssistant, Content: text}, o.Opts.MaxHistory)
	st.ResetTurn()
	return conv.Reply{Text: text, Path: t.path, SQL: ran, Attachment: t.attachment}
}

func (o *Orchestrator) intentStep(ctx context.Context, t *turn) conv.Step {
	t.intent = ParseIntent(t.st.UserQuery)
	if cmd, ok := t.intent.(ReportCommand); ok {
		t.st.Category = cmd.Category
		return conv.StepSummary
	}

	if o.LLM == nil {
		return o.fallback(ctx)
	}
	resp, err := ai.Ask(ctx, o.LLM, "", prompt.IntentClassificationPrompt(t.st.UserQuery))
	if err != nil {
		o.Log.Warn("intent classification failed", zap.String("thread_id", t.st.ThreadID), zap.Error(err))
		return o.fallback(ctx)
	}
	score, err := parseRelevance(resp)
	if err != nil {
		o.Log.Warn("intent classification undecodable", zap.String("thread_id", t.st.ThreadID), zap.Error(err))
		return o.fallback(ctx)
	}
	if score > *o.Opts.IntentThreshold {
		return conv.StepQueryDB
	}
	return o.fallback(ctx)
}

// fallback is TOOL when a capability is available, else REASON.
func (o *Orchestrator) fallback(ctx context.Context) conv.Step {
	if o.Tools != nil && len(o.Tools.ListCapabilities(ctx)) > 0 {
		return conv.StepTool
	}
	return conv.StepReason
}

func (o *Orchestrator) queryStep(ctx context.Context, t *turn) conv.Step {
	st := t.st
	log := o.Log.With(zap.String("thread_id", st.ThreadID))
	if o.Generator == nil || o.Gate == nil || o.Executor == nil {
		return o.fallback(ctx)
	}

	candidate, ok := o.Generator.Generate(ctx, st.UserQuery, st.Category)
	if !ok {
		return o.fallback(ctx)
	}
	stmt, err := o.Gate.Check(ctx, candidate)
	if err != nil {
		log.Warn("generated sql rejected", zap.Error(err))
		st.GeneratedSQL = ""
		return o.fallback(ctx)
	}
	out, err := o.Executor.Run(ctx, stmt)
	if err != nil {
		log.Warn("generated sql failed", zap.Error(err))
		st.GeneratedSQL = ""
		return o.fallback(ctx)
	}
	st.GeneratedSQL = stmt
	st.QueryResultText = out
	return conv.StepReason
}

type toolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (o *Orchestrator) toolStep(ctx context.Context, t *turn) conv.Step {
	st := t.st
	st.ToolResultText = ""
	if o.Tools == nil || o.LLM == nil {
		return conv.StepReason
	}
	caps := o.Tools.ListCapabilities(ctx)
	if len(caps) == 0 {
		return conv.StepReason
	}
	log := o.Log.With(zap.String("thread_id", st.ThreadID))

	capsJSON, err := json.Marshal(caps)
	if err != nil {
		log.Warn("encode capabilities", zap.Error(err))
		return conv.StepReason
	}
	resp, err := ai.Ask(ctx, o.LLM, "", prompt.ToolSelectionPrompt(st.UserQuery, string(capsJSON)))
	if err != nil {
		log.Warn("tool selection failed", zap.Error(err))
		return conv.StepReason
	}
	call, err := parseToolCall(resp)
	if err != nil {
		log.Warn("tool selection undecodable", zap.Error(err))
		return conv.StepReason
	}
	if call.Name == "" || !hasCapability(caps, call.Name) {
		return conv.StepReason
	}
	out, err := o.Tools.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		log.Warn("tool call failed", zap.String("tool", call.Name), zap.Error(err))
		return conv.StepReason
	}
	st.ToolResultText = out
	return conv.StepReason
}

func parseToolCall(resp string) (toolCall, error) {
	var call toolCall
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end <= start {
		return call, fmt.Errorf("no json object in %q", resp)
	}
	err := json.Unmarshal([]byte(resp[start:end+1]), &call)
	return call, err
}

func hasCapability(caps []conv.Capability, name string) bool {
	for _, c := range caps {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (o *Orchestrator) summaryStep(ctx context.Context, t *turn) conv.Step {
	st := t.st
	log := o.Log.With(zap.String("thread_id", st.ThreadID), zap.String("category", string(st.Category)))
	if o.Store == nil {
		t.failed = true
		return conv.StepReason
	}
	sum, err := o.Store.Summarize(ctx, st.Category, findings.SummaryOptions{
		DetailRowCap:       o.Opts.DetailRowCap,
		ResourceNameBudget: o.Opts.ResourceNameBudget,
	})
	if err != nil {
		log.Error("summarize failed", zap.Error(err))
		t.failed = true
		return conv.StepReason
	}

	details := detailRows(sum.Details)
	aggregate := renderTable(aggregateHeader, aggregateRows(sum.Aggregate))
	st.ResultText = renderTable(detailHeader, details)
	top := details
	if len(top) > o.Opts.InsightRows {
		top = top[:o.Opts.InsightRows]
	}
	st.TopRows = renderTable(detailHeader, top)

	t.sections = append(t.sections, o.narrate(ctx, t, []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.ReportSystemPrompt()},
		{Role: ai.RoleUser, Content: prompt.SummaryPrompt(string(st.Category), aggregate, st.ResultText)},
	}))
	t.attachment = o.attach(ctx, st, sum.Details)
	return conv.StepInsight
}

func (o *Orchestrator) insightStep(ctx context.Context, t *turn) conv.Step {
	t.sections = append(t.sections, o.narrate(ctx, t, []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.ReportSystemPrompt()},
		{Role: ai.RoleUser, Content: prompt.InsightPrompt(t.st.TopRows)},
	}))
	return conv.StepConclude
}

func (o *Orchestrator) concludeStep(ctx context.Context, t *turn) conv.Step {
	msgs := []ai.Message{{Role: ai.RoleSystem, Content: prompt.ReportSystemPrompt()}}
	msgs = append(msgs, t.st.Messages...)
	if len(t.sections) > 0 {
		msgs = append(msgs, ai.Message{Role: ai.RoleAssistant, Content: strings.Join(t.sections, "\n\n")})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: prompt.ConcludePrompt(t.st.ResultText)})
	t.sections = append(t.sections, o.narrate(ctx, t, msgs))
	return conv.StepDone
}

// narrate returns the completion text, or the generic notice when it fails.
func (o *Orchestrator) narrate(ctx context.Context, t *turn, msgs []ai.Message) string {
	if o.LLM == nil {
		return prompt.GenericFailureNotice
	}
	out, err := o.LLM.Complete(ctx, msgs)
	if err != nil {
		o.Log.Warn("report narration failed", zap.String("thread_id", t.st.ThreadID), zap.Error(err))
		return prompt.GenericFailureNotice
	}
	return strings.TrimSpace(out)
}

// attach builds the CSV of detail rows, uploading it when a blob store is configured.
func (o *Orchestrator) attach(ctx context.Context, st *conv.State, details []findings.IssueGroup) *conv.Attachment {
	data, err := detailCSV(details)
	if err != nil {
		o.Log.Warn("render csv", zap.Error(err))
		return nil
	}
	a := &conv.Attachment{
		Name:        fmt.Sprintf("%s-findings.csv", st.Category.Dir()),
		ContentType: "text/csv",
	}
	if o.Artifacts != nil {
		key := fmt.Sprintf("reports/%s/%s.csv", st.ThreadID, uuid.NewString())
		url, err := o.Artifacts.UploadBytes(ctx, key, a.ContentType, data)
		if err == nil {
			a.URL = url
			return a
		}
		o.Log.Warn("upload attachment", zap.String("key", key), zap.Error(err))
	}
	a.Data = data
	return a
}

func (o *Orchestrator) reasonStep(ctx context.Context, t *turn) conv.Step {
	st := t.st
	if t.failed || o.LLM == nil {
		t.sections = append(t.sections, prompt.GenericFailureNotice)
		return conv.StepDone
	}

	p := Truncate(prompt.ExplanationPrompt(st.UserQuery, st.GeneratedSQL, st.QueryResultText, st.ToolResultText), o.Opts.MaxPromptChars)
	msgs := []ai.Message{{Role: ai.RoleSystem, Content: prompt.CyberSecuritySystemPrompt()}}
	// the current question is already the last history entry; the explanation prompt replaces it
	if n := len(st.Messages); n > 0 {
		msgs = append(msgs, st.Messages[:n-1]...)
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: p})

	out, err := o.LLM.Complete(ctx, msgs)
	if err != nil {
		o.Log.Warn("explanation failed", zap.String("thread_id", st.ThreadID), zap.Error(err))
		t.sections = append(t.sections, prompt.GenericFailureNotice)
		return conv.StepDone
	}
	t.sections = append(t.sections, strings.TrimSpace(out))
	return conv.StepDone
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
