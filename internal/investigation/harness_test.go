package investigation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kalambet/legitcheck/internal/analysis"
	"github.com/kalambet/legitcheck/internal/blob"
	"github.com/kalambet/legitcheck/internal/documents"
	"github.com/kalambet/legitcheck/internal/events"
	"github.com/kalambet/legitcheck/internal/llm"
	"github.com/kalambet/legitcheck/internal/notify"
	"github.com/kalambet/legitcheck/internal/report"
	"github.com/kalambet/legitcheck/internal/research"
	"github.com/kalambet/legitcheck/internal/storage"
)

const analysisJSON = "```json\n" + `{
  "legitimacy_score": 8,
  "confidence_level": 0.75,
  "recommendation": "TRUST",
  "executive_summary": "Acme Corp is an established business.",
  "red_flags": [],
  "legitimacy_indicators": [{"indicator": "Registered company", "strength": "strong", "evidence": "State registry"}],
  "risk_breakdown": {
    "financial": {"level": "low", "description": "Card payments"},
    "privacy": {"level": "low", "description": "GDPR policy"},
    "reputation": {"level": "medium", "description": "Mixed reviews"},
    "legal": {"level": "low", "description": "No actions"}
  },
  "business_intelligence": {"business_model": "retail"},
  "evidence_sources": [{"source": "Registry", "url": "https://registry.test", "key_findings": ["Active"]}],
  "key_findings": ["Registered since 1999"],
  "recommendations": {"for_user": ["Proceed normally"], "next_steps": ["Keep receipts"]}
}` + "\n```"

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

// fakeLLM answers the analysis prompt with analysisJSON and everything else
// with a short bullet list.
type fakeLLM struct {
	failAnalysis atomic.Bool
	analysisCall atomic.Int32
	calls        atomic.Int32
}

func (f *fakeLLM) Send(_ context.Context, req llm.Request) llm.Result {
	f.calls.Add(1)
	blocks := req.Messages[0].Content
	prompt := blocks[len(blocks)-1].Text
	if strings.Contains(prompt, "senior fraud detection analyst") {
		f.analysisCall.Add(1)
		if f.failAnalysis.Load() {
			return llm.Result{Success: false, Error: "model overloaded"}
		}
		return textResult(analysisJSON)
	}
	return textResult("- looks fine\n- registered business")
}

func textResult(s string) llm.Result {
	return llm.Result{Success: true, Data: &llm.Response{Content: []llm.Block{llm.TextBlock(s)}}}
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (p *recordingPublisher) PublishStatus(_ context.Context, ev events.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Status
	}
	return out
}

type fakeCapturer struct {
	data []byte
	err  error
	seen []string
}

func (c *fakeCapturer) Capture(_ context.Context, url string) ([]byte, error) {
	c.seen = append(c.seen, url)
	return c.data, c.err
}

type harness struct {
	store  *storage.Store
	blobs  *blob.LocalStore
	llm    *fakeLLM
	mailer *fakeMailer
	events *recordingPublisher
	orch   *Orchestrator
	svc    *Service
	files  *httptest.Server
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newHarness(t *testing.T, capture Capturer) *harness {
	t.Helper()
	store := openTestStore(t)
	blobs, err := blob.NewLocalStore(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	mux := http.NewServeMux()
	mux.HandleFunc("/shot.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	})
	files := httptest.NewServer(mux)
	t.Cleanup(files.Close)

	h := &harness{
		store:  store,
		blobs:  blobs,
		llm:    &fakeLLM{},
		mailer: &fakeMailer{},
		events: &recordingPublisher{},
		files:  files,
	}
	opts := report.DefaultOptions()
	h.orch = New(Deps{
		Store:      store,
		Researcher: research.New(h.llm),
		Documents:  documents.New(h.llm),
		Generator:  analysis.NewGenerator(h.llm, nil),
		Blobs:      blobs,
		Mailer:     h.mailer,
		Events:     h.events,
		Capture:    capture,
		Report:     opts,
	})
	h.svc = NewService(store, nil, h.events, 3, nil)
	return h
}

func (h *harness) create(t *testing.T, inv storage.Investigation) storage.Investigation {
	t.Helper()
	if inv.TargetName == "" {
		inv.TargetName = "Acme Corp"
	}
	if inv.InvestigationMode == "" {
		inv.InvestigationMode = storage.ModePortal
	}
	got, err := h.store.CreateInvestigation(inv)
	if err != nil {
		t.Fatalf("CreateInvestigation: %v", err)
	}
	return got
}

var errSMTP = errors.New("smtp unavailable")
