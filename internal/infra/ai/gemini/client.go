package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
)

const defaultModel = "gemini-1.5-flash"

type Client struct {
	client *genai.Client
	Model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{client: client, Model: model}, nil
}

// Complete maps system messages to the system instruction and replays the rest
// as chat history, sending the last message.
func (c *Client) Complete(ctx context.Context, messages []domai.Message) (string, error) {
	// model is per call: SystemInstruction and History are not safe to share
	model := c.client.GenerativeModel(c.Model)
	model.SetTemperature(0)

	system, history := split(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(history) == 0 {
		return "", fmt.Errorf("%w: empty prompt", domai.ErrEstimator)
	}

	session := model.StartChat()
	session.History = history[:len(history)-1]
	resp, err := session.SendMessage(ctx, history[len(history)-1].Parts...)
	if err != nil {
		if isQuota(err) {
			return "", fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: %v", domai.ErrEstimator, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: no response candidates", domai.ErrEstimator)
	}
	return text, nil
}

func (c *Client) Close() error { return c.client.Close() }

func split(messages []domai.Message) (string, []*genai.Content) {
	var system []string
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case domai.RoleSystem:
			system = append(system, m.Content)
		case domai.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func isQuota(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}
