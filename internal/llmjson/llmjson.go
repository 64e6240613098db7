// Package llmjson extracts JSON payloads from model output that may be
// wrapped in markdown code fences or surrounding prose.
package llmjson

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when text contains no JSON object or array.
var ErrNoJSON = eris.New("llmjson: no JSON payload found")

const fence = "```"

// StripFences returns the body of the first fenced code block in text,
// wherever it starts. The language tag on the opening fence is dropped and
// an unterminated block runs to the end of text. Text without a fence is
// returned trimmed.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, fence)
	if start < 0 {
		return text
	}
	body := text[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLangTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || !strings.ContainsAny(s, "{}[]\" ")
}

// Object returns the first {...} value in text that decodes as JSON,
// looking inside a code fence first and then at the whole text.
func Object(text string) (string, error) {
	return extract(text, '{', nil)
}

// Array returns the first [...] value in text that decodes as JSON.
// Arrays holding only numbers, such as citation markers like [1] or [2, 3],
// are skipped.
func Array(text string) (string, error) {
	return extract(text, '[', notCitation)
}

func extract(text string, open byte, accept func(json.RawMessage) bool) (string, error) {
	if body := StripFences(text); body != strings.TrimSpace(text) {
		if raw, ok := firstValue(body, open, accept); ok {
			return raw, nil
		}
	}
	if raw, ok := firstValue(text, open, accept); ok {
		return raw, nil
	}
	return outerSpan(StripFences(text), open)
}

// firstValue decodes at each occurrence of open in turn and returns the
// first complete value accept allows.
func firstValue(text string, open byte, accept func(json.RawMessage) bool) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if accept != nil && !accept(raw) {
			continue
		}
		return string(bytes.TrimSpace(raw)), true
	}
	return "", false
}

// outerSpan returns the widest open..close span so that a malformed payload
// still reaches the caller's decoder and surfaces a precise error.
func outerSpan(text string, open byte) (string, error) {
	closeCh := byte('}')
	if open == '[' {
		closeCh = ']'
	}
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closeCh)
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

func notCitation(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return true
	}
	for _, it := range items {
		var n json.Number
		if err := json.Unmarshal(it, &n); err != nil {
			return true
		}
	}
	return false
}
