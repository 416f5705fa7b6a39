package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/models"
)

func TestExtractJSON_Wrappings(t *testing.T) {
	want := map[string]any{"ticker": "AMD", "price": json.Number("172.3"), "nested": map[string]any{"a": json.Number("1")}}
	body := `{"ticker":"AMD","price":172.3,"nested":{"a":1}}`

	cases := map[string]string{
		"bare":           body,
		"whitespace":     "\n\n  " + body + "  \n",
		"json fence":     "```json\n" + body + "\n```",
		"upper fence":    "```JSON\n" + body + "\n```",
		"plain fence":    "```\n" + body + "\n```",
		"prose before":   "Here is the report you asked for:\n" + body,
		"prose after":    body + "\nLet me know if you need anything else.",
		"fence in prose": "Sure!\n```json\n" + body + "\n```\nHope this helps.",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ExtractJSON(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	raw := `Result: {"fullContent":"## Intro\nuse {braces} freely","ticker":"NVDA"} done`
	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got["ticker"])
	assert.Equal(t, "## Intro\nuse {braces} freely", got["fullContent"])
}

func TestExtractJSON_LargeIntegersPreserved(t *testing.T) {
	got, err := ExtractJSON(`{"volume": 12345678901234567}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567"), got["volume"])
}

func TestExtractJSON_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"fence only":   "```json\n```",
		"no object":    "I could not find a suitable stock today.",
		"truncated":    `{"ticker":"AMD","title":"cut off`,
		"two objects":  `{"a":1} and {"b":2}`,
		"invalid json": `{ticker: AMD}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractJSON(raw)
			require.Error(t, err)

			var malformed *models.MalformedResponseError
			require.True(t, errors.As(err, &malformed), "want MalformedResponseError, got %T", err)
			assert.Equal(t, raw, malformed.Raw)
		})
	}
}

func TestExtractJSON_EmptyReplyClassifiedMalformed(t *testing.T) {
	for _, raw := range []string{"   \n\t", "```json\n```"} {
		_, err := ExtractJSON(raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrEmptyResponse)
		assert.Equal(t, models.ErrorClassMalformed, gemini.Classify(err), "reply %q", raw)
		assert.False(t, gemini.IsRetryable(err))
	}
}
