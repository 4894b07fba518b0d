package model

import (
	"encoding/json"
	"time"
)

// Source identifies which provider tier produced an enrichment. The
// synchronous tier records its concrete backend (anthropic or gemini) rather
// than a single gateway name.
type Source string

const (
	SourceManus     Source = "manus"
	SourceAnthropic Source = "anthropic"
	SourceGemini    Source = "gemini"
	SourceMock      Source = "mock"

	// SourceLovableAI is kept for rows written by the earlier gateway-based
	// synchronous tier.
	SourceLovableAI Source = "lovable_ai"
)

// TaskHandle identifies an in-flight external agent task.
type TaskHandle struct {
	TaskID    string     `json:"task_id"`
	TaskURL   string     `json:"task_url,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// RawData is the provider payload stored with an enrichment record. The task
// fields, when present, mark the record as asynchronous; they are never
// dropped by later merges.
type RawData struct {
	TaskID        string          `json:"task_id,omitempty"`
	TaskURL       string          `json:"task_url,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	OutputFileURL string          `json:"output_file_url,omitempty"`
	SearchMethod  string          `json:"search_method,omitempty"`
	CompanyInfo   map[string]any  `json:"company_info,omitempty"`
	AgentError    string          `json:"agent_error,omitempty"`
	RemoteStatus  string          `json:"remote_status,omitempty"`
	CheckedAt     *time.Time      `json:"checked_at,omitempty"`
}

// Handle returns the task handle, or nil when no async task is associated.
func (r RawData) Handle() *TaskHandle {
	if r.TaskID == "" {
		return nil
	}
	return &TaskHandle{TaskID: r.TaskID, TaskURL: r.TaskURL, StartedAt: r.StartedAt}
}

// SetHandle records a freshly submitted task.
func (r *RawData) SetHandle(h TaskHandle) {
	r.TaskID = h.TaskID
	r.TaskURL = h.TaskURL
	r.StartedAt = h.StartedAt
}

// EnrichmentRecord is the per-signal enrichment state (at most one per signal).
type EnrichmentRecord struct {
	ID           string           `json:"id"`
	SignalID     string           `json:"signal_id"`
	CompanyName  string           `json:"company_name"`
	Status       EnrichmentStatus `json:"status"`
	Source       Source           `json:"enrichment_source,omitempty"`
	RawData      RawData          `json:"raw_data"`
	Company      CompanyInfo      `json:"company"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
