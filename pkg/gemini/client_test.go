package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_500", in: genai.APIError{Code: 500}, wantTransient: true},
		{name: "api_501", in: genai.APIError{Code: 501}, wantTransient: true},
		{name: "api_401", in: genai.APIError{Code: 401}, wantTransient: false},
		{name: "net_timeout", in: timeoutErr{}, wantTransient: true},
		{name: "plain", in: errors.New("boom"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var te *resilience.TransientError
			if isTransient := errors.As(got, &te); isTransient != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%T %v)", isTransient, tt.wantTransient, got, got)
			}
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")

	_, err = NewClient(context.Background(), Config{APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")
}

func TestGenerateJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		genCfg, _ := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genCfg["responseMimeType"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `{"contacts":[{"full_name":"Julie Martin"}]}`}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer ts.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "test-key", Model: "gemini-2.5-flash", BaseURL: ts.URL})
	require.NoError(t, err)

	text, err := client.GenerateJSON(context.Background(), "You research B2B contacts.", "Acme Traiteur")
	require.NoError(t, err)
	assert.JSONEq(t, `{"contacts":[{"full_name":"Julie Martin"}]}`, text)
}

func TestGenerateJSON_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "test-key", Model: "gemini-2.5-flash", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = client.GenerateJSON(context.Background(), "", "Acme Traiteur")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
