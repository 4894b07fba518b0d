package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

const testModel = "claude-sonnet-4-5-20250929"

func newTestClient(baseURL string) Client {
	return NewClient("test-key", option.WithBaseURL(baseURL), option.WithMaxRetries(0))
}

func errorServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestAsk(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body struct {
			Model    string `json:"model"`
			System   []struct {
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testModel, body.Model)
		require.Len(t, body.System, 1)
		assert.Equal(t, "You research B2B contacts.", body.System[0].Text)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"contacts":[`},
				{"type": "text", "text": `{"full_name":"Julie Martin"}]}`},
			},
			"model":       testModel,
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer ts.Close()

	ans, err := newTestClient(ts.URL).Ask(context.Background(), Query{
		Model:     testModel,
		MaxTokens: 1024,
		System:    "You research B2B contacts.",
		Prompt:    "Acme Traiteur",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", ans.ID)
	assert.Equal(t, "end_turn", ans.StopReason)
	assert.Equal(t, `{"contacts":[{"full_name":"Julie Martin"}]}`, ans.Text)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5}, ans.Usage)
}

func TestAsk_EmptyPrompt(t *testing.T) {
	_, err := NewClient("k").Ask(context.Background(), Query{Model: testModel, MaxTokens: 16})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty prompt")
}

func TestAsk_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, true},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, true},
		{"bad key", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := errorServer(t, tt.status, tt.body)
			_, err := newTestClient(ts.URL).Ask(context.Background(), Query{Model: testModel, MaxTokens: 16, Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			if tt.transient {
				assert.Equal(t, tt.status, resilience.StatusCode(err))
			}
		})
	}
}

func TestToAnswer_SkipsNonText(t *testing.T) {
	ans := toAnswer(&sdk.Message{
		ID:    "msg_1",
		Model: testModel,
		Content: []sdk.ContentBlockUnion{
			{Type: "thinking", Text: "hmm"},
			{Type: "text", Text: "answer"},
		},
		Usage: sdk.Usage{InputTokens: 100, OutputTokens: 50},
	})
	assert.Equal(t, "answer", ans.Text)
	assert.Equal(t, int64(100), ans.Usage.InputTokens)
}

func TestUsageLog(t *testing.T) {
	assert.NotPanics(t, func() {
		Usage{InputTokens: 100, OutputTokens: 50}.Log(testModel, "contact_research")
	})
}
