package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
)

func TestSplit(t *testing.T) {
	// given
	msgs := []domai.Message{
		{Role: domai.RoleSystem, Content: "be terse"},
		{Role: domai.RoleUser, Content: "report aws"},
		{Role: domai.RoleAssistant, Content: "summary"},
		{Role: domai.RoleUser, Content: "conclude"},
	}

	// when
	system, history := split(msgs)

	// then
	assert.Equal(t, "be terse", system)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("conclude"), history[2].Parts[0])
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("CVSS:3.1/"), genai.Text("AV:N")}},
	}}}

	assert.Equal(t, "CVSS:3.1/AV:N", responseText(resp))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(nil))
}

func TestIsQuota(t *testing.T) {
	assert.True(t, isQuota(fmt.Errorf("send: %w", &googleapi.Error{Code: 429})))
	assert.True(t, isQuota(errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED")))
	assert.False(t, isQuota(&googleapi.Error{Code: 500}))
}
