package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/legitcheck/internal/llm"
)

const (
	defaultConcurrency = 4

	searchFailedText  = "Search failed"
	summaryFailedText = "Summary generation failed"
)

// Search is the outcome of one research query.
type Search struct {
	Query   string   `json:"query"`
	Results string   `json:"results"`
	Sources []string `json:"sources"`
	Failed  bool     `json:"failed,omitempty"`
}

// Data is everything gathered about a target on the open web.
type Data struct {
	Searches          []Search `json:"searches"`
	Summary           string   `json:"summary"`
	KeyFindings       []string `json:"key_findings"`
	RegistrableDomain string   `json:"registrable_domain,omitempty"`
}

// Researcher runs the fixed research plan for a target through an LLM.
type Researcher struct {
	llm         llm.Sender
	cache       Cache
	ttl         time.Duration
	concurrency int
	logger      *slog.Logger
}

type Option func(*Researcher)

// WithCache caches successful searches for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Researcher) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithConcurrency bounds the number of searches in flight.
func WithConcurrency(n int) Option {
	return func(r *Researcher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Researcher) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(sender llm.Sender, opts ...Option) *Researcher {
	r := &Researcher{
		llm:         sender,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Conduct runs every query, then the summary and findings calls. Individual
// failures are recorded in the result; only context cancellation is returned
// as an error.
func (r *Researcher) Conduct(ctx context.Context, targetName, targetURL string) (Data, error) {
	host := hostOf(targetURL)
	if targetURL != "" && host == "" {
		r.logger.Warn("invalid target URL, skipping domain queries", "url", targetURL)
	}

	queries := Queries(targetName, host)
	searches := make([]Search, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			searches[i] = r.search(gctx, q)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Data{}, fmt.Errorf("research cancelled: %w", err)
	}

	data := Data{Searches: searches}
	if host != "" {
		if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			data.RegistrableDomain = d
		}
	}

	var fg errgroup.Group
	fg.Go(func() error {
		data.Summary = r.summarize(ctx, targetName, searches)
		return nil
	})
	fg.Go(func() error {
		data.KeyFindings = r.findings(ctx, searches)
		return nil
	})
	_ = fg.Wait()
	if err := ctx.Err(); err != nil {
		return Data{}, fmt.Errorf("research cancelled: %w", err)
	}

	return data, nil
}

// Queries builds the deterministic query list for a target. host may be empty.
func Queries(targetName, host string) []string {
	queries := []string{
		targetName + " reviews",
		targetName + " scam complaints",
		targetName + " legitimacy",
		targetName + " BBB rating",
		targetName + " trustpilot reviews",
		targetName + " reddit reviews",
		targetName + " customer complaints",
	}
	if host != "" {
		queries = append(queries,
			"site:"+host,
			host+" scam",
			host+" safe",
			"whois "+host,
		)
	}
	return queries
}

// hostOf returns the hostname of an absolute URL. A bare domain without a
// scheme has no hostname and yields "".
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (r *Researcher) search(ctx context.Context, query string) Search {
	key := cacheKey(query)
	if r.cache != nil {
		if s, ok := r.cache.Get(ctx, key); ok {
			return s
		}
	}

	res := r.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(searchPrompt(query))},
		MaxTokens: 4096,
	})
	if !res.Success {
		r.logger.Warn("research search failed", "query", query, "error", res.Error)
		return Search{Query: query, Results: searchFailedText, Sources: []string{}, Failed: true}
	}

	text := res.Text()
	s := Search{Query: query, Results: text, Sources: ExtractSources(text)}
	if r.cache != nil {
		r.cache.Set(ctx, key, s, r.ttl)
	}
	return s
}

func (r *Researcher) summarize(ctx context.Context, targetName string, searches []Search) string {
	res := r.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(summaryPrompt(targetName, searches))},
		MaxTokens: 2048,
	})
	if !res.Success {
		r.logger.Warn("research summary failed", "target", targetName, "error", res.Error)
		return summaryFailedText
	}
	return res.Text()
}

func (r *Researcher) findings(ctx context.Context, searches []Search) []string {
	res := r.llm.Send(ctx, llm.Request{
		Messages:  []llm.Message{llm.UserText(findingsPrompt(searches))},
		MaxTokens: 1024,
	})
	if !res.Success {
		r.logger.Warn("research findings failed", "error", res.Error)
		return []string{}
	}
	return llm.ExtractBullets(res.Text())
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractSources returns the distinct URLs in text, in order of first use.
func ExtractSources(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, u := range urlPattern.FindAllString(text, -1) {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
