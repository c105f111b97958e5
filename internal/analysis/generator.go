package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/legitcheck/internal/llm"
)

const (
	generateMaxTokens   = 8000
	generateTemperature = 0.3
)

// ErrUnparsable is returned when the model reply holds no JSON object.
var ErrUnparsable = errors.New("failed to parse analysis JSON")

// Generator turns research and document findings into a validated Result.
type Generator struct {
	llm    llm.Sender
	logger *slog.Logger
}

func NewGenerator(sender llm.Sender, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: sender, logger: logger}
}

// Generate makes a single model call. Missing or malformed fields are
// repaired by Validate and listed in the returned Report.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, Report, error) {
	res := g.llm.Send(ctx, llm.Request{
		Messages:    []llm.Message{llm.UserText(BuildPrompt(in))},
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
	if !res.Success {
		return Result{}, Report{}, fmt.Errorf("analysis generation failed: %s", res.Error)
	}

	var raw Raw
	if !llm.ExtractJSON(res.Text(), &raw) {
		return Result{}, Report{}, ErrUnparsable
	}

	out, rep := Validate(raw)
	if !rep.Clean() {
		g.logger.Warn("analysis output repaired",
			"target", in.TargetName,
			"defaulted", rep.Defaulted,
			"coerced", rep.Coerced,
		)
	}
	return out, rep, nil
}
