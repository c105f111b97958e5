package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
)

const (
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.3
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block is one content block of a message or a response.
type Block struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// Source carries inline binary data for image and document blocks.
type Source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Bytes decodes the base64 payload.
func (s *Source) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

func TextBlock(text string) Block {
	return Block{Type: "text", Text: text}
}

func ImageBlock(mediaType string, data []byte) Block {
	return Block{Type: "image", Source: &Source{
		Type:      "base64",
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}}
}

func DocumentBlock(mediaType string, data []byte) Block {
	return Block{Type: "document", Source: &Source{
		Type:      "base64",
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}}
}

type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// UserText builds a single-turn user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock(text)}}
}

func UserBlocks(blocks ...Block) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// Tool is passed through to providers that support tool definitions.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is a single model call. Zero MaxTokens and Temperature select the
// defaults.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Tools       []Tool
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Content    []Block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      Usage   `json:"usage"`
}

// Result is the outcome of Send. Failures never surface as Go errors.
type Result struct {
	Success bool
	Data    *Response
	Error   string
}

// Text returns the concatenated text of a successful result, or "".
func (r Result) Text() string {
	if !r.Success {
		return ""
	}
	return ExtractText(r.Data)
}

// Sender issues one request/response call to a model provider.
type Sender interface {
	Send(ctx context.Context, req Request) Result
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
