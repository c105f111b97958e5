package llm

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
)

// ExtractText joins the text blocks of a response with newlines.
func ExtractText(resp *Response) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, b := range resp.Content {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var fencedJSON = regexp.MustCompile("```json\\s*\\n([\\s\\S]*?)\\n\\s*```")

// ExtractJSON decodes the first JSON object found in model output into v.
// A fenced ```json block wins; otherwise the region from the first '{' to
// the last '}' is tried. v is reset between attempts. It reports whether
// anything decoded.
func ExtractJSON(text string, v any) bool {
	var candidates []string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	for _, c := range candidates {
		if json.Unmarshal([]byte(c), v) == nil {
			return true
		}
		resetValue(v)
	}
	return false
}

func resetValue(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().SetZero()
	}
}

// ExtractBullets returns the dash-prefixed lines of text with the marker and
// surrounding whitespace removed. A bare "-" line yields an empty item.
func ExtractBullets(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		out = append(out, strings.TrimSpace(strings.TrimPrefix(line, "-")))
	}
	return out
}

// NoneIdentified reports whether a red-flag reply says there are none.
func NoneIdentified(text string) bool {
	return strings.Contains(strings.ToLower(text), "none identified")
}
