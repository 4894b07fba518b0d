package normalize

import (
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// payload is what one candidate source yielded.
type payload struct {
	contacts []map[string]any
	meta     meta
}

// meta holds the optional fields carried next to the contact list.
type meta struct {
	err          string
	companyInfo  map[string]any
	searchMethod string
}

// overlay copies every field other sets onto m.
func (m *meta) overlay(other meta) {
	if other.err != "" {
		m.err = other.err
	}
	if len(other.companyInfo) > 0 {
		m.companyInfo = other.companyInfo
	}
	if other.searchMethod != "" {
		m.searchMethod = other.searchMethod
	}
}

// extract applies the shape-tolerant lookup to one decoded candidate:
// obj.contacts, obj.data.contacts, obj.result.contacts, or obj itself when it
// is an array.
func extract(v any) payload {
	switch t := v.(type) {
	case []any:
		return payload{contacts: filterContacts(t)}
	case map[string]any:
		p := payload{meta: readMeta(t)}
		if list, ok := t["contacts"].([]any); ok {
			p.contacts = filterContacts(list)
			return p
		}
		for _, key := range []string{"data", "result"} {
			nested, ok := t[key].(map[string]any)
			if !ok {
				continue
			}
			if list, ok := nested["contacts"].([]any); ok {
				p.meta.overlay(readMeta(nested))
				p.contacts = filterContacts(list)
				return p
			}
		}
		return p
	}
	return payload{}
}

func readMeta(obj map[string]any) meta {
	var m meta
	if s, ok := obj["error"].(string); ok && !model.IsAbsent(s) {
		m.err = s
	}
	if info, ok := obj["company_info"].(map[string]any); ok {
		m.companyInfo = info
	}
	if s, ok := obj["search_method"].(string); ok && !model.IsAbsent(s) {
		m.searchMethod = s
	}
	return m
}

// contactKeys are the fields of which at least one must be a real string for
// an entry to count as a contact.
var contactKeys = []string{"full_name", "linkedin_url", "job_title", "email", "email_principal"}

// looksLikeContact rejects noise entries such as {"note": "n/a"}.
func looksLikeContact(entry map[string]any) bool {
	for _, key := range contactKeys {
		if s, ok := entry[key].(string); ok && !model.IsAbsent(s) {
			return true
		}
	}
	return false
}

func filterContacts(list []any) []map[string]any {
	var out []map[string]any
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if ok && looksLikeContact(entry) {
			out = append(out, entry)
		}
	}
	return out
}
