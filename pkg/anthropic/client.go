// Package anthropic wraps the Anthropic Messages API for the synchronous
// contact-research fallback.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

// Client asks a single-turn question and returns the text answer.
type Client interface {
	Ask(ctx context.Context, q Query) (*Answer, error)
}

// Query is one system prompt plus one user turn.
type Query struct {
	Model     string
	MaxTokens int64
	System    string
	Prompt    string
}

// Answer is the flattened model reply.
type Answer struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      Usage
}

// Usage counts the tokens billed for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Log emits a token usage line tagged with the calling phase.
func (u Usage) Log(model, phase string) {
	zap.L().Info("anthropic: token usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
	)
}

type sdkClient struct {
	client sdk.Client
}

// NewClient builds an SDK-backed client. opts are passed to the SDK after the
// API key, so tests can override the base URL and retry count.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) Ask(ctx context.Context, q Query) (*Answer, error) {
	if q.Prompt == "" {
		return nil, eris.New("anthropic: empty prompt")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(q.Model),
		MaxTokens: q.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(q.Prompt))},
	}
	if q.System != "" {
		params.System = []sdk.TextBlockParam{{Text: q.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyErr(eris.Wrap(err, "anthropic: create message"))
	}
	return toAnswer(msg), nil
}

// classifyErr marks rate limits and server errors as transient.
func classifyErr(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}

// toAnswer joins the text blocks; thinking and tool blocks are dropped.
func toAnswer(msg *sdk.Message) *Answer {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &Answer{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       b.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
