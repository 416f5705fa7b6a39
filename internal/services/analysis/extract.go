package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// ExtractJSON pulls the single JSON object out of a model reply. The reply
// may be bare JSON, fenced in a markdown code block, or surrounded by prose.
// Anything else yields a *models.MalformedResponseError carrying the raw text.
func ExtractJSON(raw string) (map[string]any, error) {
	cleaned := cleanMarkdownFences(raw)
	if cleaned == "" {
		return nil, &models.MalformedResponseError{Raw: raw, Cause: models.ErrEmptyResponse}
	}

	obj, err := decodeObject(cleaned)
	if err == nil {
		return obj, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if obj, subErr := decodeObject(cleaned[start : end+1]); subErr == nil {
			return obj, nil
		}
	}

	return nil, &models.MalformedResponseError{Raw: raw, Cause: err}
}

func cleanMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeObject accepts exactly one JSON object. Numbers are kept as
// json.Number so large integers survive unchanged.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}
