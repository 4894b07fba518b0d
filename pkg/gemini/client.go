// Package gemini wraps the Gemini generateContent API for the synchronous
// contact-research fallback.
package gemini

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

// Config holds the Gemini connection settings.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Client generates a single JSON answer for a prompt.
type Client interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

type genaiClient struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client using the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("gemini: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, eris.New("gemini: model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &genaiClient{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (c *genaiClient) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classifyErr(eris.Wrap(err, "gemini: generate content"))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("gemini: empty response")
	}
	return text, nil
}

// classifyErr marks rate limits, server errors and network timeouts as
// transient.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.Code) || apiErr.Code/100 == 5 {
			return resilience.NewTransientError(err, apiErr.Code)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
