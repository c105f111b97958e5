package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Sender on the Google GenAI SDK.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
	temp      float64
	logger    *slog.Logger
}

// NewGeminiClient creates a Gemini-backed Sender. A model name that does not
// look like a Gemini model is replaced with the default.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int, temperature float64) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if !strings.HasPrefix(model, "gemini") {
		model = defaultGeminiModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		temp:      temperature,
		logger:    slog.Default(),
	}, nil
}

func (g *GeminiClient) Send(ctx context.Context, req Request) Result {
	contents, err := toGenAIContents(req.Messages)
	if err != nil {
		g.logger.Warn("llm request failed", "provider", "gemini", "model", g.model, "error", err)
		return failure(err)
	}

	cfg := geminiConfig(req, g.maxTokens, g.temp)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		err = fmt.Errorf("generating content: %w", err)
		g.logger.Warn("llm request failed", "provider", "gemini", "model", g.model, "error", err)
		return failure(err)
	}

	out := &Response{
		Model:   g.model,
		Content: []Block{TextBlock(resp.Text())},
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return Result{Success: true, Data: out}
}

func geminiConfig(req Request, maxTokens int, temp float64) *genai.GenerateContentConfig {
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp = req.Temperature
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
			if len(t.InputSchema) > 0 {
				decl.ParametersJsonSchema = t.InputSchema
			}
			decls = append(decls, decl)
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// toGenAIContents maps Messages API blocks onto genai parts.
func toGenAIContents(msgs []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				parts = append(parts, genai.NewPartFromText(b.Text))
			case "image", "document":
				if b.Source == nil {
					return nil, fmt.Errorf("%s block without source", b.Type)
				}
				data, err := b.Source.Bytes()
				if err != nil {
					return nil, fmt.Errorf("decoding %s block: %w", b.Type, err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, b.Source.MediaType))
			default:
				return nil, fmt.Errorf("unsupported block type %q", b.Type)
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}
