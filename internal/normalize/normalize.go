// Package normalize turns the free-form output of the research agent into a
// validated contact list plus company metadata. It never fails: output that
// holds no contacts yields an empty Result.
package normalize

import (
	"context"
	"encoding/json"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// FileFetcher downloads an output file referenced by the agent transcript.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileURL string) ([]byte, error)
}

// Origin records where the accepted contacts came from.
type Origin string

const (
	OriginNone   Origin = ""
	OriginInline Origin = "inline"
	OriginFile   Origin = "file"
)

// Result is the normalized agent output.
type Result struct {
	Contacts     []model.Contact
	CompanyInfo  map[string]any
	SearchMethod string
	Error        string

	Origin  Origin
	FileURL string
	// FileErr is set when the output file could not be fetched or parsed.
	// Inline contacts, if any, are still returned.
	FileErr error
}

// Normalize extracts contacts from a task's raw output. fetcher may be nil,
// in which case file attachments are ignored.
func Normalize(ctx context.Context, raw json.RawMessage, fetcher FileFetcher) Result {
	var res Result

	inline, fileURL, m := candidates(raw)
	res.FileURL = fileURL
	if len(inline.contacts) > 0 {
		res.Origin = OriginInline
	}
	contacts := inline.contacts

	if fileURL != "" && fetcher != nil {
		file, err := fetchFile(ctx, fetcher, fileURL)
		if err != nil {
			res.FileErr = err
		} else {
			m.overlay(file.meta)
			if len(file.contacts) > 0 {
				contacts = file.contacts
				res.Origin = OriginFile
			}
		}
	}

	res.Error = m.err
	res.CompanyInfo = m.companyInfo
	res.SearchMethod = m.searchMethod
	for _, entry := range contacts {
		res.Contacts = append(res.Contacts, toContact(entry))
	}
	return res
}

// candidates runs the inline stages: transcript scan for message arrays,
// otherwise direct JSON, text-embedded JSON, or an already-decoded object.
func candidates(raw json.RawMessage) (payload, string, meta) {
	if len(raw) == 0 {
		return payload{}, "", meta{}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Not JSON at all: treat the bytes as agent prose.
		parsed, ok := parseText(string(raw))
		if !ok {
			return payload{}, "", meta{}
		}
		v = parsed
	}

	if messages, ok := isMessageArray(v); ok {
		tr := scanTranscript(messages)
		if len(tr.inline.contacts) > 0 || tr.fileURL != "" {
			return tr.inline, tr.fileURL, tr.meta
		}
		// Nothing from the assistant: the array may still be contacts that
		// happen to carry chat-like keys.
		if p := extract(v); len(p.contacts) > 0 {
			return p, "", p.meta
		}
		return tr.inline, tr.fileURL, tr.meta
	}

	if s, ok := v.(string); ok {
		parsed, ok := parseText(s)
		if !ok {
			return payload{}, "", meta{}
		}
		v = parsed
	}

	p := extract(v)
	return p, "", p.meta
}

func fetchFile(ctx context.Context, fetcher FileFetcher, fileURL string) (payload, error) {
	data, err := fetcher.FetchFile(ctx, fileURL)
	if err != nil {
		return payload{}, err
	}
	v, ok := parseText(string(data))
	if !ok {
		return payload{}, errUnparseableFile
	}
	return extract(v), nil
}
