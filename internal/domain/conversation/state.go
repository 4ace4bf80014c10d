package conversation

import (
	"github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Step is a state of the conversation machine.
type Step string

const (
	StepIntent   Step = "INTENT"
	StepQueryDB  Step = "QUERYDB"
	StepTool     Step = "TOOL"
	StepSummary  Step = "SUMMARY"
	StepInsight  Step = "INSIGHT"
	StepConclude Step = "CONCLUDE"
	StepReason   Step = "REASON"
	StepDone     Step = "DONE"
)

// State is the working memory of one conversation thread. It is owned by a single
// thread and must not be shared between threads.
type State struct {
	ThreadID        string            `json:"thread_id"`
	Category        findings.Category `json:"category,omitempty"`
	UserQuery       string            `json:"user_query,omitempty"`
	GeneratedSQL    string            `json:"generated_sql,omitempty"`
	QueryResultText string            `json:"query_result_text,omitempty"`
	ToolResultText  string            `json:"tool_result_text,omitempty"`
	// ResultText and TopRows hold the rendered detail table of the last report.
	ResultText string       `json:"result_text,omitempty"`
	TopRows    string       `json:"top_rows,omitempty"`
	Messages   []ai.Message `json:"messages"`
}

// NewState starts an empty thread.
func NewState(threadID string) *State {
	return &State{ThreadID: threadID}
}

// ResetTurn clears the per-question context so it never leaks into the next turn.
func (s *State) ResetTurn() {
	s.UserQuery = ""
	s.GeneratedSQL = ""
	s.QueryResultText = ""
	s.ToolResultText = ""
}

// Append adds a message to the history, keeping at most max entries (0 = unbounded).
func (s *State) Append(msg ai.Message, max int) {
	s.Messages = append(s.Messages, msg)
	if max > 0 && len(s.Messages) > max {
		s.Messages = append([]ai.Message(nil), s.Messages[len(s.Messages)-max:]...)
	}
}

// Attachment is an optional file emitted with a reply.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Reply is the user-visible outcome of one turn. SQL is the validated query
// that ran this turn, empty when none did.
type Reply struct {
	Text       string      `json:"text"`
	Path       []Step      `json:"path"`
	SQL        string      `json:"sql,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}
