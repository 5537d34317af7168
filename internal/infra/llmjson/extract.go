// Package llmjson recovers a JSON value from free-form model output.
//
// Models wrap JSON in markdown fences, prefix it with prose or append notes
// after it. Extract tries, in order: the first ```json fence, the first
// generic fence, the first bare array or object in the text, and finally
// the whole trimmed text. It never panics and never returns an error
// directly; failures are carried in Result.Err.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means no candidate in the text decoded as JSON.
var ErrNoJSON = errors.New("no json found in model output")

// Source names the candidate a Result was recovered from.
type Source string

const (
	SourceNone      Source = ""
	SourceJSONFence Source = "json_fence"
	SourceFence     Source = "fence"
	SourceBare      Source = "bare"
	SourceWhole     Source = "whole"
)

// Result is the outcome of Extract. Exactly one of Raw and Err is set.
type Result struct {
	Raw    json.RawMessage
	Source Source
	Err    error
}

// OK reports whether a JSON value was recovered.
func (r Result) OK() bool { return r.Err == nil && len(r.Raw) > 0 }

// Map returns the recovered value as an object. Failures and non-object
// values yield an empty, non-nil map.
func (r Result) Map() map[string]any {
	out := map[string]any{}
	if !r.OK() {
		return out
	}
	if err := json.Unmarshal(r.Raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Decode unmarshals the recovered value into v.
func (r Result) Decode(v any) error {
	if !r.OK() {
		if r.Err != nil {
			return r.Err
		}
		return ErrNoJSON
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("decode %s json: %w", r.Source, err)
	}
	return nil
}

// IsArray reports whether the recovered value is a JSON array.
func (r Result) IsArray() bool {
	return r.OK() && bytes.HasPrefix(r.Raw, []byte("["))
}

const fence = "```"

// Extract recovers the first JSON value from raw.
func Extract(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Err: fmt.Errorf("%w: empty response", ErrNoJSON)}
	}

	if body, ok := jsonFence(text); ok {
		if v, ok := decodeWhole(body); ok {
			return Result{Raw: v, Source: SourceJSONFence}
		}
	} else if body, ok := genericFence(text); ok {
		if v, ok := decodeWhole(body); ok {
			return Result{Raw: v, Source: SourceFence}
		}
	}

	if v, ok := scanBare(text); ok {
		return Result{Raw: v, Source: SourceBare}
	}
	if v, ok := decodeWhole(text); ok {
		return Result{Raw: v, Source: SourceWhole}
	}
	return Result{Err: fmt.Errorf("%w (%d bytes)", ErrNoJSON, len(text))}
}

// jsonFence returns the body of the first fence opened with ```json.
func jsonFence(text string) (string, bool) {
	const tag = "json"
	start := -1
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], fence)
		if i < 0 {
			break
		}
		i += off
		if j := i + len(fence) + len(tag); j <= len(text) && strings.EqualFold(text[i+len(fence):j], tag) {
			start = i
			break
		}
		off = i + len(fence)
	}
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence)+len(tag):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// genericFence returns the body of the first ``` pair, without a leading
// language tag line such as "javascript".
func genericFence(text string) (string, bool) {
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	body := rest[:end]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLangTag(body[:nl]) {
		body = body[nl+1:]
	}
	return strings.TrimSpace(body), true
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '+':
		default:
			return false
		}
	}
	return true
}

// decodeWhole accepts s only when it is exactly one JSON value.
func decodeWhole(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// scanBare tries a decode at every '[' or '{' in order and keeps the first
// complete value. The decoder tracks string literals, so brackets inside
// strings do not end a value early.
func scanBare(text string) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err == nil {
			return v, true
		}
	}
	return nil, false
}
