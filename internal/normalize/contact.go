package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// toContact derives the stored contact from one accepted agent entry.
func toContact(entry map[string]any) model.Contact {
	c := model.Contact{
		FullName:         str(entry, "full_name", "name"),
		FirstName:        str(entry, "first_name"),
		LastName:         str(entry, "last_name"),
		JobTitle:         str(entry, "job_title", "title", "poste", "role"),
		Department:       str(entry, "department", "departement", "département"),
		Location:         str(entry, "location", "city", "ville"),
		EmailPrincipal:   str(entry, "email_principal", "email"),
		EmailAlternative: str(entry, "email_alternatif", "email_alternative", "email_secondary"),
		Phone:            str(entry, "phone", "telephone", "téléphone"),
		LinkedInURL:      str(entry, "linkedin_url", "linkedin"),
		OutreachStatus:   model.OutreachNew,
	}

	if c.FirstName == "" && c.LastName == "" && c.FullName != "" {
		c.FirstName, c.LastName = splitName(c.FullName)
	}
	if c.FullName == "" && (c.FirstName != "" || c.LastName != "") {
		c.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if c.EmailAlternative == c.EmailPrincipal {
		c.EmailAlternative = ""
	}

	score, ok := intValue(entry["priority_score"])
	if !ok {
		score = PriorityScore(c.JobTitle)
	}
	c.PriorityScore = score

	if target, ok := boolValue(entry["is_priority_target"]); ok {
		c.IsPriorityTarget = target
	} else {
		c.IsPriorityTarget = IsPriority(score)
	}
	return c
}

// splitName puts the first token in first and everything else in last.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// str returns the first present, non-"N/A" string among keys.
func str(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok && !model.IsAbsent(s) {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// intValue accepts a JSON number or a numeric string in 1..5.
func intValue(v any) (int, bool) {
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}
