package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	type payload struct {
		Score int `json:"score"`
	}

	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   int
	}{
		{"fenced block wins over prose", "Here:\n```json\n{\"score\": 7}\n```\nand {\"score\": 1}", true, 7},
		{"brace region", "The answer is {\"score\": 4} as requested.", true, 4},
		{"nested braces", `result: {"score": 9, "extra": {"a": 1}}`, true, 9},
		{"no JSON", "I cannot help with that.", false, 0},
		{"broken JSON", `{"score": }`, false, 0},
		{"reversed braces", "} nothing {", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			ok := ExtractJSON(tt.input, &p)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, p.Score)
			}
		})
	}
}

func TestExtractJSON_BadFenceFallsBackToBraces(t *testing.T) {
	var m map[string]any
	text := "```json\nnot json\n```\n{\"ok\": true}"
	require.True(t, ExtractJSON(text, &m))
	assert.Equal(t, true, m["ok"])
}

func TestResetValueClearsPartialDecode(t *testing.T) {
	type payload struct {
		Score int      `json:"score"`
		Tags  []string `json:"tags"`
	}
	var p payload
	// A type error still decodes the fields before it.
	require.Error(t, json.Unmarshal([]byte(`{"score": 9, "tags": "oops"}`), &p))
	require.Equal(t, 9, p.Score)

	resetValue(&p)
	assert.Equal(t, payload{}, p)

	resetValue(nil)
}

func TestExtractBullets(t *testing.T) {
	text := "Findings:\n- First item\n  -   Second item  \n* not a dash\n-\nplain line\n- Third"
	assert.Equal(t, []string{"First item", "Second item", "", "Third"}, ExtractBullets(text))
}

func TestExtractBullets_Empty(t *testing.T) {
	got := ExtractBullets("no bullets here")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNoneIdentified(t *testing.T) {
	assert.True(t, NoneIdentified("None identified."))
	assert.True(t, NoneIdentified("Red flags: NONE IDENTIFIED"))
	assert.False(t, NoneIdentified("- Fake address"))
}

func TestExtractText(t *testing.T) {
	resp := &Response{Content: []Block{
		TextBlock("a"),
		{Type: "tool_use"},
		TextBlock("b"),
	}}
	assert.Equal(t, "a\nb", ExtractText(resp))
	assert.Equal(t, "", ExtractText(nil))
}
