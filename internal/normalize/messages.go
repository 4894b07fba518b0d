package normalize

import (
	"net/url"
	"path"
	"strings"
)

// transcript is the result of scanning a role-tagged message array.
type transcript struct {
	fileURL string  // last JSON attachment from the assistant
	inline  payload // last assistant text that yielded contacts
	meta    meta    // metadata from every assistant text, last seen wins
}

var messageRoles = map[string]bool{"assistant": true, "user": true, "system": true, "tool": true}

// isMessageArray reports whether v is a conversation transcript rather than
// a bare contact array. Every element needs a chat role and a content key;
// contacts often carry "role" as a job title.
func isMessageArray(v any) ([]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	for _, item := range list {
		msg, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		role, _ := msg["role"].(string)
		if !messageRoles[strings.ToLower(role)] {
			return nil, false
		}
		if _, ok := msg["content"]; !ok {
			return nil, false
		}
	}
	return list, true
}

// scanTranscript walks assistant messages only. User messages echo the
// prompt, whose example schema is contact-shaped and must never be taken as
// the answer.
func scanTranscript(messages []any) transcript {
	var tr transcript
	for _, item := range messages {
		msg := item.(map[string]any)
		if !strings.EqualFold(msg["role"].(string), "assistant") {
			continue
		}

		switch content := msg["content"].(type) {
		case string:
			tr.addText(content)
		case []any:
			for _, b := range content {
				block, ok := b.(map[string]any)
				if !ok {
					continue
				}
				if u := fileURL(block); u != "" && isJSONFile(block, u) {
					tr.fileURL = u
					continue
				}
				if text, ok := block["text"].(string); ok {
					tr.addText(text)
				}
			}
		}
	}
	return tr
}

func (tr *transcript) addText(text string) {
	v, ok := parseText(text)
	if !ok {
		return
	}
	p := extract(v)
	tr.meta.overlay(p.meta)
	if len(p.contacts) > 0 {
		tr.inline = p
	}
}

var fileURLKeys = []string{"fileUrl", "file_url", "fileURL", "url"}

func fileURL(block map[string]any) string {
	for _, key := range fileURLKeys {
		if s, ok := block[key].(string); ok && strings.HasPrefix(s, "http") {
			return s
		}
	}
	return ""
}

// isJSONFile decides by MIME type first, then by file name or URL extension.
func isJSONFile(block map[string]any, rawURL string) bool {
	for _, key := range []string{"mimeType", "mime_type", "mimetype", "contentType"} {
		if s, ok := block[key].(string); ok && strings.Contains(strings.ToLower(s), "json") {
			return true
		}
	}
	for _, key := range []string{"fileName", "file_name", "filename", "name"} {
		if s, ok := block[key].(string); ok && strings.HasSuffix(strings.ToLower(s), ".json") {
			return true
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		return strings.EqualFold(path.Ext(u.Path), ".json")
	}
	return false
}
