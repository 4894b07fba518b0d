package model

import (
	"strconv"
	"strings"
)

// CompanyInfo holds firmographic fields resolved by a provider. Every field
// is optional and only set when the provider supplied a real value.
type CompanyInfo struct {
	Domain        string `json:"domain,omitempty"`
	Website       string `json:"website,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount string `json:"employee_count,omitempty"`
	Headquarters  string `json:"headquarters,omitempty"`
}

// companyInfoKeys maps provider keys to CompanyInfo fields. Several spellings
// are accepted because the agent output schema is not fixed.
var companyInfoKeys = map[string][]string{
	"domain":         {"domain", "domaine"},
	"website":        {"website", "site_web", "url"},
	"industry":       {"industry", "secteur", "sector"},
	"employee_count": {"employee_count", "employees", "effectif", "nb_employees"},
	"headquarters":   {"headquarters", "siege", "siège", "hq", "location"},
}

// IsAbsent reports whether a provider string carries no information: empty,
// whitespace, or the "N/A" sentinel.
func IsAbsent(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || strings.EqualFold(t, "n/a")
}

// Merge overlays values from a provider company_info object. Missing keys and
// "N/A" values leave the existing field untouched.
func (c *CompanyInfo) Merge(info map[string]any) {
	if len(info) == 0 {
		return
	}
	set := func(dst *string, field string) {
		for _, key := range companyInfoKeys[field] {
			if v, ok := stringValue(info[key]); ok {
				*dst = v
				return
			}
		}
	}
	set(&c.Domain, "domain")
	set(&c.Website, "website")
	set(&c.Industry, "industry")
	set(&c.EmployeeCount, "employee_count")
	set(&c.Headquarters, "headquarters")
}

// IsEmpty reports whether no field has been resolved.
func (c CompanyInfo) IsEmpty() bool {
	return c == CompanyInfo{}
}

// stringValue renders scalar JSON values as strings and rejects absent ones.
func stringValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	default:
		return "", false
	}
	if IsAbsent(s) {
		return "", false
	}
	return strings.TrimSpace(s), true
}
