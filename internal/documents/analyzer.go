package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/legitcheck/internal/llm"
)

const (
	defaultConcurrency  = 3
	defaultFetchTimeout = 30 * time.Second
	maxFetchBytes       = 25 << 20

	analysisFailedText = "Analysis failed"
)

// Analysis is the model's reading of one file.
type Analysis struct {
	FileURL       string         `json:"file_url"`
	FileType      string         `json:"file_type"`
	MediaType     string         `json:"media_type,omitempty"`
	Analysis      string         `json:"analysis"`
	KeyPoints     []string       `json:"key_points"`
	RedFlags      []string       `json:"red_flags"`
	ExtractedData map[string]any `json:"extracted_data"`
	PageCount     int            `json:"page_count,omitempty"`
}

// Analyzer fetches user files and runs them through a multimodal model.
type Analyzer struct {
	llm         llm.Sender
	httpClient  *http.Client
	concurrency int
	logger      *slog.Logger
}

type Option func(*Analyzer)

func WithHTTPClient(c *http.Client) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.httpClient = c
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.httpClient.Timeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(sender llm.Sender, opts ...Option) *Analyzer {
	a := &Analyzer{
		llm:         sender,
		httpClient:  &http.Client{Timeout: defaultFetchTimeout},
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AnalyzeAll analyzes each URL and returns the successes in input order.
// Failed files are logged and omitted.
func (a *Analyzer) AnalyzeAll(ctx context.Context, fileURLs []string) []Analysis {
	results := make([]*Analysis, len(fileURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, u := range fileURLs {
		g.Go(func() error {
			res, err := a.Analyze(gctx, u)
			if err != nil {
				a.logger.Warn("document analysis failed", "url", u, "error", err)
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Analysis, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Analyze fetches one file, sends it with the image or PDF prompt and runs
// the follow-up extractions.
func (a *Analyzer) Analyze(ctx context.Context, fileURL string) (Analysis, error) {
	data, contentType, err := a.fetch(ctx, fileURL)
	if err != nil {
		return Analysis{}, err
	}

	mediaType, err := ResolveMediaType(contentType, data)
	if err != nil {
		return Analysis{}, err
	}

	var block llm.Block
	var prompt string
	pages := 0
	if mediaType == MediaPDF {
		block = llm.DocumentBlock(MediaPDF, data)
		prompt = pdfPrompt
		if n, err := PageCount(data); err == nil {
			pages = n
		} else {
			a.logger.Debug("pdf page count unavailable", "url", fileURL, "error", err)
		}
	} else {
		block = llm.ImageBlock(mediaType, data)
		prompt = imagePrompt
	}

	res := a.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserBlocks(block, llm.TextBlock(prompt))},
		MaxTokens: 4096,
	})
	if !res.Success {
		return Analysis{}, fmt.Errorf("analysis failed: %s", res.Error)
	}
	text := res.Text()

	out := Analysis{
		FileURL:   fileURL,
		FileType:  contentType,
		MediaType: mediaType,
		Analysis:  text,
		PageCount: pages,
	}

	var g errgroup.Group
	g.Go(func() error { out.KeyPoints = a.keyPoints(ctx, text); return nil })
	g.Go(func() error { out.RedFlags = a.redFlags(ctx, text); return nil })
	g.Go(func() error { out.ExtractedData = a.structuredData(ctx, text); return nil })
	_ = g.Wait()

	return out, nil
}

// AnalyzeScreenshot fetches an image and assesses it for scam indicators.
func (a *Analyzer) AnalyzeScreenshot(ctx context.Context, imageURL string) (Analysis, error) {
	data, contentType, err := a.fetch(ctx, imageURL)
	if err != nil {
		return Analysis{}, err
	}
	if contentType == "" {
		contentType = MediaPNG
	}
	out := a.AnalyzeScreenshotImage(ctx, imageURL, data)
	out.FileType = contentType
	return out, nil
}

// AnalyzeScreenshotImage assesses an in-memory screenshot. label becomes the
// FileURL of the result.
func (a *Analyzer) AnalyzeScreenshotImage(ctx context.Context, label string, data []byte) Analysis {
	mediaType := SniffImage(data)

	res := a.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserBlocks(llm.ImageBlock(mediaType, data), llm.TextBlock(screenshotPrompt))},
		MaxTokens: 2048,
	})
	text := analysisFailedText
	if res.Success {
		text = res.Text()
	} else {
		a.logger.Warn("screenshot analysis failed", "source", label, "error", res.Error)
	}

	out := Analysis{
		FileURL:       label,
		FileType:      MediaPNG,
		MediaType:     mediaType,
		Analysis:      text,
		ExtractedData: map[string]any{},
	}

	var g errgroup.Group
	g.Go(func() error { out.KeyPoints = a.keyPoints(ctx, text); return nil })
	g.Go(func() error { out.RedFlags = a.redFlags(ctx, text); return nil })
	_ = g.Wait()

	return out
}

type fetchError struct {
	status int
	text   string
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("failed to fetch document: %d %s", e.status, e.text)
}

// IsNotFetched reports whether err came from a non-2xx download.
func IsNotFetched(err error) bool {
	var fe *fetchError
	return errors.As(err, &fe)
}

func (a *Analyzer) fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &fetchError{status: resp.StatusCode, text: http.StatusText(resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", fileURL, err)
	}
	if len(data) > maxFetchBytes {
		return nil, "", fmt.Errorf("document %s exceeds %d bytes", fileURL, maxFetchBytes)
	}
	return data, strings.TrimSpace(resp.Header.Get("Content-Type")), nil
}

func (a *Analyzer) keyPoints(ctx context.Context, text string) []string {
	res := a.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(keyPointsPrompt(text))},
		MaxTokens: 512,
	})
	if !res.Success {
		return []string{}
	}
	return llm.ExtractBullets(res.Text())
}

func (a *Analyzer) redFlags(ctx context.Context, text string) []string {
	res := a.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(redFlagsPrompt(text))},
		MaxTokens: 512,
	})
	if !res.Success {
		return []string{}
	}
	reply := res.Text()
	if llm.NoneIdentified(reply) {
		return []string{}
	}
	return llm.ExtractBullets(reply)
}

func (a *Analyzer) structuredData(ctx context.Context, text string) map[string]any {
	res := a.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(structuredDataPrompt(text))},
		MaxTokens: 1024,
	})
	if !res.Success {
		return map[string]any{}
	}
	var data map[string]any
	if !llm.ExtractJSON(res.Text(), &data) || data == nil {
		return map[string]any{}
	}
	return data
}
