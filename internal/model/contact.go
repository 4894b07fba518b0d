package model

import "time"

// OutreachStatus tracks the sales follow-up on a contact. Users may set any
// value at any time; only membership is validated.
type OutreachStatus string

const (
	OutreachNew           OutreachStatus = "new"
	OutreachLinkedInSent  OutreachStatus = "linkedin_sent"
	OutreachEmailSent     OutreachStatus = "email_sent"
	OutreachResponded     OutreachStatus = "responded"
	OutreachMeeting       OutreachStatus = "meeting"
	OutreachConverted     OutreachStatus = "converted"
	OutreachNotInterested OutreachStatus = "not_interested"
)

// IsValid reports whether s is a known outreach status.
func (s OutreachStatus) IsValid() bool {
	switch s {
	case OutreachNew, OutreachLinkedInSent, OutreachEmailSent, OutreachResponded,
		OutreachMeeting, OutreachConverted, OutreachNotInterested:
		return true
	}
	return false
}

// Contact is a decision-maker found for a signal's company.
type Contact struct {
	ID               string         `json:"id"`
	EnrichmentID     string         `json:"enrichment_id"`
	SignalID         string         `json:"signal_id"`
	FullName         string         `json:"full_name"`
	FirstName        string         `json:"first_name,omitempty"`
	LastName         string         `json:"last_name,omitempty"`
	JobTitle         string         `json:"job_title,omitempty"`
	Department       string         `json:"department,omitempty"`
	Location         string         `json:"location,omitempty"`
	EmailPrincipal   string         `json:"email_principal,omitempty"`
	EmailAlternative string         `json:"email_alternatif,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	LinkedInURL      string         `json:"linkedin_url,omitempty"`
	IsPriorityTarget bool           `json:"is_priority_target"`
	PriorityScore    int            `json:"priority_score"`
	OutreachStatus   OutreachStatus `json:"outreach_status"`
	CreatedAt        time.Time      `json:"created_at"`
}
