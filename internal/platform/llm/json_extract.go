package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a model response contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found in model output")

// fencePattern matches a markdown code fence with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[ \\t]*\\r?\\n?(.*?)```")

// ExtractJSON pulls a JSON object out of free-form model output.
//
// A fenced code block (```json or untagged) whose body looks like an object wins;
// otherwise the substring from the first '{' to the last '}' is returned. The result
// is not guaranteed to parse; callers decode and treat a decode error as a bad response.
func ExtractJSON(text string) (string, error) {
	if s, ok := extractFromFence(text); ok {
		return s, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

func extractFromFence(text string) (string, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(strings.TrimSpace(m[1]))
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(m[2])
		if strings.HasPrefix(body, "{") {
			return body, true
		}
	}
	return "", false
}

// DecodeJSON extracts and decodes the first JSON object in text into out.
func DecodeJSON(text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
