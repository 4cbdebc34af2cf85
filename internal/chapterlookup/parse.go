package chapterlookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mangabridge/internal/services/llm"
)

// DefaultSource labels answers whose payload names no source.
const DefaultSource = "ai"

// Answer is a fully validated model response.
type Answer struct {
	Chapter int    `json:"chapter"`
	Volume  int    `json:"volume"`
	Context string `json:"context,omitempty"`
	Source  string `json:"source"`
	Model   string `json:"model,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// RefusalError is returned when the model answers with the refusal shape.
type RefusalError struct {
	Reason string
	Source string
}

func (e *RefusalError) Error() string {
	if e.Reason == "" {
		return "model declined to answer"
	}
	return "model declined to answer: " + e.Reason
}

// ParseError describes output that does not match the answer contract.
type ParseError struct {
	Field   string
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed model answer")
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, " (payload: %s)", e.Snippet)
	}
	return b.String()
}

type rawAnswer struct {
	Chapter json.RawMessage `json:"chapter"`
	Volume  json.RawMessage `json:"volume"`
	Context string          `json:"context"`
	Source  string          `json:"source"`
	Error   json.RawMessage `json:"error"`
}

// ParseAnswer converts raw model output into an Answer. Code fences and
// surrounding prose are tolerated; anything else short of the full contract
// yields a *RefusalError or *ParseError and a zero Answer.
func ParseAnswer(raw string) (Answer, error) {
	payload := llm.ExtractJSONObject(raw)
	if payload == "" {
		return Answer{}, &ParseError{Reason: "empty response"}
	}
	if !strings.HasPrefix(payload, "{") {
		return Answer{}, &ParseError{Reason: "expected a JSON object", Snippet: llm.Snippet(payload)}
	}

	var parsed rawAnswer
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return Answer{}, &ParseError{Reason: err.Error(), Snippet: llm.Snippet(payload)}
	}
	if reason, refused := refusalReason(parsed.Error); refused {
		return Answer{}, &RefusalError{Reason: reason, Source: parsed.Source}
	}

	chapter, err := positiveInt("chapter", parsed.Chapter)
	if err != nil {
		err.Snippet = llm.Snippet(payload)
		return Answer{}, err
	}
	volume, err := positiveInt("volume", parsed.Volume)
	if err != nil {
		err.Snippet = llm.Snippet(payload)
		return Answer{}, err
	}

	source := strings.TrimSpace(parsed.Source)
	if source == "" {
		source = DefaultSource
	}
	return Answer{
		Chapter: chapter,
		Volume:  volume,
		Context: strings.TrimSpace(parsed.Context),
		Source:  source,
	}, nil
}

func refusalReason(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		return text, text != ""
	}
	return string(raw), true
}

// positiveInt accepts a JSON number or numeric string holding an integer >= 1.
func positiveInt(field string, raw json.RawMessage) (int, *ParseError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &ParseError{Field: field, Reason: "missing"}
	}
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return 0, &ParseError{Field: field, Reason: "not a number"}
	}
	switch v := value.(type) {
	case json.Number:
		number = v
	case string:
		number = json.Number(strings.TrimSpace(v))
	default:
		return 0, &ParseError{Field: field, Reason: "not a number"}
	}
	n, err := number.Int64()
	if err != nil {
		return 0, &ParseError{Field: field, Reason: fmt.Sprintf("%q is not an integer", number.String())}
	}
	if n < 1 {
		return 0, &ParseError{Field: field, Reason: fmt.Sprintf("must be 1 or greater, got %d", n)}
	}
	return int(n), nil
}
