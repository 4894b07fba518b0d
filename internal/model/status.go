package model

import (
	"github.com/rotisserie/eris"
)

// EnrichmentStatus is the lifecycle state shared by a Signal and its
// EnrichmentRecord.
type EnrichmentStatus string

const (
	EnrichmentStatusNone            EnrichmentStatus = ""
	EnrichmentStatusProcessing      EnrichmentStatus = "processing"
	EnrichmentStatusManusProcessing EnrichmentStatus = "manus_processing"
	EnrichmentStatusCompleted       EnrichmentStatus = "completed"
)

// ErrInvalidTransition is returned when a status write would move the state
// machine along an edge that is not in the transition table.
var ErrInvalidTransition = eris.New("invalid enrichment status transition")

// transitions lists the edges allowed under normal flow. completed ->
// completed is deliberately absent: it is only reachable through a forced
// resync.
var transitions = map[EnrichmentStatus][]EnrichmentStatus{
	EnrichmentStatusNone: {
		EnrichmentStatusProcessing,
	},
	EnrichmentStatusProcessing: {
		EnrichmentStatusProcessing,
		EnrichmentStatusManusProcessing,
		EnrichmentStatusCompleted,
	},
	EnrichmentStatusManusProcessing: {
		EnrichmentStatusManusProcessing,
		EnrichmentStatusCompleted,
	},
}

// IsValid reports whether s is a known status. The empty status (no
// enrichment requested yet) is valid.
func (s EnrichmentStatus) IsValid() bool {
	switch s {
	case EnrichmentStatusNone, EnrichmentStatusProcessing,
		EnrichmentStatusManusProcessing, EnrichmentStatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further work is expected.
func (s EnrichmentStatus) IsTerminal() bool {
	return s == EnrichmentStatusCompleted
}

// CanTransition reports whether from -> to is allowed. force unlocks the
// single recovery edge completed -> completed used by resync.
func CanTransition(from, to EnrichmentStatus, force bool) bool {
	if force && from == EnrichmentStatusCompleted && to == EnrichmentStatusCompleted {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (wrapped with both states)
// when from -> to is not allowed.
func ValidateTransition(from, to EnrichmentStatus, force bool) error {
	if !from.IsValid() || !to.IsValid() {
		return eris.Wrapf(ErrInvalidTransition, "unknown status %q -> %q", from, to)
	}
	if !CanTransition(from, to, force) {
		return eris.Wrapf(ErrInvalidTransition, "%q -> %q", from, to)
	}
	return nil
}
