package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status EnrichmentStatus
		want   string
	}{
		{EnrichmentStatusNone, ""},
		{EnrichmentStatusProcessing, "processing"},
		{EnrichmentStatusManusProcessing, "manus_processing"},
		{EnrichmentStatusCompleted, "completed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.IsValid())
		})
	}
	assert.False(t, EnrichmentStatus("failed").IsValid())
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  EnrichmentStatus
		to    EnrichmentStatus
		force bool
		want  bool
	}{
		{"none to processing", EnrichmentStatusNone, EnrichmentStatusProcessing, false, true},
		{"processing to manus", EnrichmentStatusProcessing, EnrichmentStatusManusProcessing, false, true},
		{"processing to completed", EnrichmentStatusProcessing, EnrichmentStatusCompleted, false, true},
		{"processing retry", EnrichmentStatusProcessing, EnrichmentStatusProcessing, false, true},
		{"manus to completed", EnrichmentStatusManusProcessing, EnrichmentStatusCompleted, false, true},
		{"none skips to completed", EnrichmentStatusNone, EnrichmentStatusCompleted, false, false},
		{"none skips to manus", EnrichmentStatusNone, EnrichmentStatusManusProcessing, false, false},
		{"manus back to processing", EnrichmentStatusManusProcessing, EnrichmentStatusProcessing, false, false},
		{"completed to processing", EnrichmentStatusCompleted, EnrichmentStatusProcessing, false, false},
		{"completed to processing forced", EnrichmentStatusCompleted, EnrichmentStatusProcessing, true, false},
		{"completed rewrite", EnrichmentStatusCompleted, EnrichmentStatusCompleted, false, false},
		{"completed resync", EnrichmentStatusCompleted, EnrichmentStatusCompleted, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.force))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateTransition(EnrichmentStatusNone, EnrichmentStatusProcessing, false))

	err := ValidateTransition(EnrichmentStatusCompleted, EnrichmentStatusProcessing, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed")

	err = ValidateTransition(EnrichmentStatus("bogus"), EnrichmentStatusCompleted, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSourceValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "manus", string(SourceManus))
	assert.Equal(t, "anthropic", string(SourceAnthropic))
	assert.Equal(t, "gemini", string(SourceGemini))
	assert.Equal(t, "mock", string(SourceMock))
	assert.Equal(t, "lovable_ai", string(SourceLovableAI))
}
