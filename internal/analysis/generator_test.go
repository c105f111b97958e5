package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/legitcheck/internal/llm"
)

type fakeSender struct {
	reply llm.Result
	seen  []llm.Request
}

func (f *fakeSender) Send(_ context.Context, req llm.Request) llm.Result {
	f.seen = append(f.seen, req)
	return f.reply
}

func reply(text string) llm.Result {
	return llm.Result{Success: true, Data: &llm.Response{Content: []llm.Block{llm.TextBlock(text)}}}
}

func TestGenerate_ParsesFencedJSON(t *testing.T) {
	sender := &fakeSender{reply: reply("Here you go:\n```json\n{\"legitimacy_score\": 3, \"recommendation\": \"AVOID\"}\n```")}
	g := NewGenerator(sender, nil)

	res, rep, err := g.Generate(context.Background(), Input{TargetName: "Acme"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.LegitimacyScore != 3 || res.Recommendation != Avoid {
		t.Errorf("result = %d %s", res.LegitimacyScore, res.Recommendation)
	}
	if rep.Clean() {
		t.Error("expected defaulted fields for partial output")
	}

	if len(sender.seen) != 1 {
		t.Fatalf("calls = %d, want 1", len(sender.seen))
	}
	req := sender.seen[0]
	if req.MaxTokens != 8000 || req.Temperature != 0.3 {
		t.Errorf("request params = %d / %v", req.MaxTokens, req.Temperature)
	}
	if !strings.Contains(req.Messages[0].Content[0].Text, "Name: Acme") {
		t.Error("prompt does not carry the target")
	}
}

func TestGenerate_ModelFailure(t *testing.T) {
	g := NewGenerator(&fakeSender{reply: llm.Result{Success: false, Error: "rate limited"}}, nil)

	_, _, err := g.Generate(context.Background(), Input{TargetName: "Acme"})
	if err == nil || err.Error() != "analysis generation failed: rate limited" {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerate_NoJSON(t *testing.T) {
	g := NewGenerator(&fakeSender{reply: reply("I cannot help with that.")}, nil)

	_, _, err := g.Generate(context.Background(), Input{TargetName: "Acme"})
	if !errors.Is(err, ErrUnparsable) {
		t.Fatalf("err = %v, want ErrUnparsable", err)
	}
}

func TestGenerate_MistypedFieldIsNotFatal(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"string red flag list", `{"legitimacy_score":3,"red_flags":["No registration found"]}`, "red_flags"},
		{"list business intelligence", `{"legitimacy_score":3,"business_intelligence":[]}`, "business_intelligence"},
		{"object key findings", `{"legitimacy_score":3,"key_findings":[{"finding":"x"}]}`, "key_findings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&fakeSender{reply: reply(tt.json)}, nil)

			res, rep, err := g.Generate(context.Background(), Input{TargetName: "Acme"})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.LegitimacyScore != 3 {
				t.Errorf("score = %d, want 3", res.LegitimacyScore)
			}
			found := false
			for _, f := range rep.Coerced {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Coerced = %v, want %q", rep.Coerced, tt.field)
			}
		})
	}
}
