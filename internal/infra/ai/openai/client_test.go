package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/infra/ai/openai"
)

func TestComplete(t *testing.T) {
	t.Run("sends roles and returns first choice", func(t *testing.T) {
		// given
		var got struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"},"finish_reason":"stop"}]}`))
		}))
		defer srv.Close()
		c := openai.NewClient("test-key", "gpt-4o-mini", srv.URL+"/v1")

		// when
		out, err := c.Complete(context.Background(), []domai.Message{
			{Role: domai.RoleSystem, Content: "sys"},
			{Role: domai.RoleUser, Content: "score this"},
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", out)
		assert.Equal(t, "gpt-4o-mini", got.Model)
		assert.Equal(t, 2048, got.MaxTokens)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "user", got.Messages[1].Role)
	})

	t.Run("429 maps to quota exceeded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
		}))
		defer srv.Close()
		c := openai.NewClient("k", "gpt-4o-mini", srv.URL+"/v1")

		_, err := c.Complete(context.Background(), []domai.Message{{Role: domai.RoleUser, Content: "hi"}})

		assert.ErrorIs(t, err, domai.ErrQuotaExceeded)
	})

	t.Run("empty choices is an estimator failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		}))
		defer srv.Close()
		c := openai.NewClient("k", "", srv.URL+"/v1")

		_, err := c.Complete(context.Background(), []domai.Message{{Role: domai.RoleUser, Content: "hi"}})

		assert.ErrorIs(t, err, domai.ErrEstimator)
	})
}
