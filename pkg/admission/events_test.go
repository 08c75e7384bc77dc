package admission

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvents(t *testing.T) {
	raw := `[["page_view",{"path":"/"}],["signup",null],["site_created"]]`

	for name, input := range map[string]string{
		"plain":   raw,
		"encoded": url.QueryEscape(raw),
	} {
		t.Run(name, func(t *testing.T) {
			events, err := ParseEvents(input)
			require.NoError(t, err)
			require.Len(t, events, 3)
			assert.Equal(t, Event{Name: "page_view", Payload: map[string]any{"path": "/"}}, events[0])
			assert.Equal(t, Event{Name: "signup", Payload: map[string]any{}}, events[1])
			assert.Equal(t, "site_created", events[2].Name)
			assert.NotNil(t, events[2].Payload)
		})
	}
}

func TestParseEvents_Empty(t *testing.T) {
	for _, input := range []string{"", "  ", "[]", url.QueryEscape("[]")} {
		events, err := ParseEvents(input)
		require.NoError(t, err, input)
		assert.Empty(t, events, input)
	}
}

func TestParseEvents_Malformed(t *testing.T) {
	for _, input := range []string{
		`{"page_view":{}}`,
		`[["page_view",{}]`,
		`["page_view"]`,
		`[[]]`,
		`[[42,{}]]`,
		`[["",{}]]`,
		`[["page_view","x"]]`,
		`[["page_view",{},"extra"]]`,
		`%zz`,
	} {
		_, err := ParseEvents(input)
		assert.ErrorIs(t, err, ErrMalformedBatch, input)
	}
}
