package enrichment

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/anthropic"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/gemini"
)

// Completer is a synchronous text-generation backend. Complete returns the
// raw answer, which is expected to hold one JSON object.
type Completer interface {
	Name() model.Source
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// AnthropicCompleter adapts the Anthropic Messages client.
type AnthropicCompleter struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

func (c *AnthropicCompleter) Name() model.Source { return model.SourceAnthropic }

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ans, err := c.Client.Ask(ctx, anthropic.Query{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		System:    prompt.System,
		Prompt:    prompt.User,
	})
	if err != nil {
		return "", err
	}
	ans.Usage.Log(c.Model, "contact_research")

	if ans.Text == "" {
		return "", eris.Errorf("anthropic: empty response (stop_reason=%s)", ans.StopReason)
	}
	return ans.Text, nil
}

// GeminiCompleter adapts the Gemini client.
type GeminiCompleter struct {
	Client gemini.Client
}

func (c *GeminiCompleter) Name() model.Source { return model.SourceGemini }

func (c *GeminiCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return c.Client.GenerateJSON(ctx, prompt.System, prompt.User)
}
