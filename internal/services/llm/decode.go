package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// snippetLimit caps payload excerpts in errors and logs, in runes.
const snippetLimit = 160

// DecodeJSON unmarshals a model reply into target. Replies wrapped in a code
// fence or surrounded by prose are reduced to their first JSON value first.
func DecodeJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(content), target)
	if err == nil {
		return nil
	}
	extracted := ExtractJSONObject(content)
	if extracted == content {
		return fmt.Errorf("%w (payload: %s)", err, Snippet(content))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (extracted payload: %s)", err, Snippet(extracted))
	}
	return nil
}

// ExtractJSONObject returns the first balanced JSON object or array in
// content after removing a ``` fence. Text with no JSON comes back trimmed.
func ExtractJSONObject(content string) string {
	body := unfence(content)
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return body
	}
	if end := matchingClose(body, start); end > start {
		return body[start : end+1]
	}
	return strings.TrimSpace(body[start:])
}

// matchingClose finds the bracket closing body[open], skipping string
// literals. It returns -1 when the value never closes.
func matchingClose(body string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(body); i++ {
		ch := body[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{' || ch == '[':
			depth++
		case ch == '}' || ch == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func unfence(content string) string {
	body := strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(body, "```")
	if !ok {
		return body
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:] // language tag line
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// Snippet collapses whitespace and truncates content for error messages.
func Snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return clean
}
