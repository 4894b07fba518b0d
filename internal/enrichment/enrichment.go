// Package enrichment runs the contact-research workflow for a signal: it
// dispatches the request to the best available provider, polls the external
// agent for completion, and persists the normalized contacts exactly once.
package enrichment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/manus"
)

// ErrNotFound is returned when the signal or its enrichment record does not
// exist.
var ErrNotFound = eris.New("enrichment: not found")

// Providers is the resolved provider configuration. It is built once at
// startup and injected; nothing in this package reads credentials itself.
type Providers struct {
	// Agent is nil when no agent credential is configured.
	Agent          manus.Client
	AgentProfile   string
	TaskMode       string
	SubmitAttempts int
	// TaskTTL bounds how old a task handle may be for a forced resync.
	// Zero disables the check.
	TaskTTL time.Duration

	// Completers are tried in order after the agent.
	Completers []Completer
}

// Locker serializes concurrent requests for the same signal.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// StatusChecker is implemented by Poller.
type StatusChecker interface {
	CheckStatus(ctx context.Context, signalID string, force bool) (*StatusResult, error)
}
