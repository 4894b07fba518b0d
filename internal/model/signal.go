package model

import "time"

// Signal is a detected business opportunity about a company. Signals are
// created by upstream scanners (press, Pappers, LinkedIn); the enrichment
// workflow only moves EnrichmentStatus.
type Signal struct {
	ID               string           `json:"id" yaml:"id"`
	CompanyName      string           `json:"company_name" yaml:"company_name"`
	SignalType       string           `json:"signal_type" yaml:"signal_type"`
	EventDetail      string           `json:"event_detail,omitempty" yaml:"event_detail"`
	Score            int              `json:"score" yaml:"score"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status" yaml:"-"`
	CreatedAt        time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time        `json:"updated_at" yaml:"-"`
}
