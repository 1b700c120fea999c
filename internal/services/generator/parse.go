package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Greedy: the body spans the first fence to the last.
var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*)```")

// StripCodeFence returns the content between the first and last markdown
// code fences in text, or the trimmed text when it is not fenced. An unterminated opening
// fence is dropped.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexAny(s, "\n{["); i >= 0 {
			s = s[i:]
		}
	}
	return strings.TrimSpace(s)
}

// ParseOutput strips fencing and decodes the model output. It returns the
// decoded value for validation and the compacted JSON for storage.
func ParseOutput(text string) (any, json.RawMessage, error) {
	body := StripCodeFence(text)
	if body == "" {
		return nil, nil, &ParseError{Err: errors.New("empty output")}
	}

	var value any
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return nil, nil, &ParseError{Snippet: snippet(body), Err: err}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(body)); err != nil {
		return nil, nil, &ParseError{Snippet: snippet(body), Err: err}
	}

	return value, json.RawMessage(compact.Bytes()), nil
}

// TopLevelKeys returns the distinct keys of a JSON object in order of first
// appearance
func TopLevelKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}

	var keys []string
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}

		// Skip the value
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func snippet(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
