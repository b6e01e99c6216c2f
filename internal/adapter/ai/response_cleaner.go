package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencePattern     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	reasoningPattern = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)
)

// ResponseCleaner turns model output into a bare JSON document. Models wrap
// JSON in markdown fences, prepend prose, leak reasoning blocks or leave
// trailing commas; string contents are never rewritten.
type ResponseCleaner struct{}

// NewResponseCleaner creates a new response cleaner.
func NewResponseCleaner() *ResponseCleaner {
	return &ResponseCleaner{}
}

// CleanJSONResponse strips wrappers around the first JSON value in response.
func (rc *ResponseCleaner) CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if rc.IsValidJSON(response) {
		return response
	}
	response = reasoningPattern.ReplaceAllString(response, "")
	response = rc.removeMarkdownBlocks(response)
	response = rc.extractJSON(response)
	if rc.IsValidJSON(response) {
		return response
	}
	return removeTrailingCommas(response)
}

// removeMarkdownBlocks returns the body of the first fenced block, if any.
func (rc *ResponseCleaner) removeMarkdownBlocks(response string) string {
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	return strings.TrimSpace(strings.TrimSuffix(response, "```"))
}

// extractJSON returns the first balanced object or array, skipping braces inside strings.
func (rc *ResponseCleaner) extractJSON(response string) string {
	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return response
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return response[start:]
}

// removeTrailingCommas drops commas that directly precede a closing bracket.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			b.WriteByte(ch)
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// IsValidJSON checks if a string is valid JSON.
func (rc *ResponseCleaner) IsValidJSON(response string) bool {
	return response != "" && json.Valid([]byte(response))
}

// CleanAndValidateJSON cleans a response and fails when no valid JSON remains.
func (rc *ResponseCleaner) CleanAndValidateJSON(response string) (json.RawMessage, error) {
	cleaned := rc.CleanJSONResponse(response)
	if !rc.IsValidJSON(cleaned) {
		return nil, &JSONValidationError{
			Original: response,
			Cleaned:  cleaned,
			Message:  "cleaned response is still not valid JSON",
		}
	}
	return json.RawMessage(cleaned), nil
}

// JSONValidationError represents a JSON validation error.
type JSONValidationError struct {
	Original string
	Cleaned  string
	Message  string
}

func (e *JSONValidationError) Error() string {
	return e.Message
}
