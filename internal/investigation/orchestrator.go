// Package investigation runs the investigation pipeline: research, document
// analysis, scoring, report rendering and client notification.
package investigation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/legitcheck/internal/analysis"
	"github.com/kalambet/legitcheck/internal/blob"
	"github.com/kalambet/legitcheck/internal/documents"
	"github.com/kalambet/legitcheck/internal/events"
	"github.com/kalambet/legitcheck/internal/notify"
	"github.com/kalambet/legitcheck/internal/report"
	"github.com/kalambet/legitcheck/internal/research"
	"github.com/kalambet/legitcheck/internal/storage"
)

const defaultTimeout = 15 * time.Minute

type Researcher interface {
	Conduct(ctx context.Context, targetName, targetURL string) (research.Data, error)
}

type DocumentAnalyzer interface {
	AnalyzeAll(ctx context.Context, fileURLs []string) []documents.Analysis
	AnalyzeScreenshotImage(ctx context.Context, label string, data []byte) documents.Analysis
}

type Generator interface {
	Generate(ctx context.Context, in analysis.Input) (analysis.Result, analysis.Report, error)
}

// Capturer screenshots a live site.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

type BlobStore interface {
	Put(ctx context.Context, bucket, name string, r io.Reader, upsert bool) (blob.Object, error)
}

// Deps wires an Orchestrator. Mailer, Events and Capture are optional.
type Deps struct {
	Store      *storage.Store
	Researcher Researcher
	Documents  DocumentAnalyzer
	Generator  Generator
	Blobs      BlobStore
	Mailer     notify.Mailer
	Events     events.Publisher
	Capture    Capturer
	Report     report.Options
	Timeout    time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Orchestrator sequences one investigation run.
type Orchestrator struct {
	store     *storage.Store
	research  Researcher
	docs      DocumentAnalyzer
	generator Generator
	blobs     BlobStore
	mailer    notify.Mailer
	events    events.Publisher
	capture   Capturer
	report    report.Options
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		store:     d.Store,
		research:  d.Researcher,
		docs:      d.Documents,
		generator: d.Generator,
		blobs:     d.Blobs,
		mailer:    d.Mailer,
		events:    d.Events,
		capture:   d.Capture,
		report:    d.Report,
		timeout:   d.Timeout,
		now:       d.Now,
		logger:    d.Logger,
	}
	if o.events == nil {
		o.events = events.Nop{}
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.report.Now == nil {
		o.report.Now = o.now
	}
	return o
}

// rawData is the audit blob stored with a completed investigation.
type rawData struct {
	Research         *research.Data       `json:"research"`
	DocumentAnalysis []documents.Analysis `json:"document_analysis"`
}

// Run executes the pipeline for investigation id under token. Re-running a
// token that already completed returns the stored record.
func (o *Orchestrator) Run(ctx context.Context, id, token string) (storage.Investigation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	inv, err := o.store.BeginRun(id, token, o.now())
	if err != nil {
		return storage.Investigation{}, fmt.Errorf("starting run: %w", err)
	}
	if inv.Status == storage.StatusCompleted {
		o.logger.Info("run already completed", "investigation_id", id)
		o.notifyClient(ctx, inv)
		return o.reload(inv), nil
	}

	o.logger.Info("investigation started", "investigation_id", id, "attempt", inv.Attempts)
	o.publish(ctx, inv, storage.StatusProcessing, "")

	out, err := o.execute(ctx, inv)
	if err == nil {
		err = o.store.Finalize(id, token, out, o.now())
	}
	if err != nil {
		o.fail(inv, token, err)
		return storage.Investigation{}, err
	}

	done, err := o.store.GetInvestigation(id)
	if err != nil {
		return storage.Investigation{}, fmt.Errorf("reloading investigation: %w", err)
	}
	o.logger.Info("investigation completed", "investigation_id", id,
		"score", out.Result.LegitimacyScore, "recommendation", out.Result.Recommendation)
	o.publish(ctx, done, storage.StatusCompleted, "")

	o.notifyClient(ctx, done)
	return o.reload(done), nil
}

func (o *Orchestrator) execute(ctx context.Context, inv storage.Investigation) (storage.Outcome, error) {
	var webData *research.Data
	if strings.TrimSpace(inv.TargetName) != "" {
		d, err := o.research.Conduct(ctx, inv.TargetName, inv.TargetURL)
		if err != nil {
			return storage.Outcome{}, fmt.Errorf("web research: %w", err)
		}
		webData = &d
	}

	var docs []documents.Analysis
	if len(inv.UploadedFiles) > 0 {
		o.logger.Info("analyzing uploaded files", "investigation_id", inv.ID, "count", len(inv.UploadedFiles))
		docs = o.docs.AnalyzeAll(ctx, inv.UploadedFiles)
	}
	if o.capture != nil && inv.TargetURL != "" {
		shot, err := o.capture.Capture(ctx, inv.TargetURL)
		if err != nil {
			o.logger.Warn("site capture failed", "investigation_id", inv.ID, "url", inv.TargetURL, "error", err)
		} else {
			docs = append(docs, o.docs.AnalyzeScreenshotImage(ctx, inv.TargetURL, shot))
		}
	}
	if err := ctx.Err(); err != nil {
		return storage.Outcome{}, fmt.Errorf("investigation cancelled: %w", err)
	}

	res, rep, err := o.generator.Generate(ctx, analysis.Input{
		TargetName:    inv.TargetName,
		TargetType:    inv.TargetType,
		TargetURL:     inv.TargetURL,
		FormResponses: inv.FormResponses,
		PastedContent: inv.PastedContent,
		SubmittedURLs: inv.SubmittedURLs,
		Research:      webData,
		Documents:     docs,
	})
	if err != nil {
		return storage.Outcome{}, err
	}

	raw, err := json.Marshal(rawData{Research: webData, DocumentAnalysis: docs})
	if err != nil {
		return storage.Outcome{}, fmt.Errorf("encoding raw data: %w", err)
	}

	return storage.Outcome{
		Result:    res,
		Report:    rep,
		RawData:   raw,
		ReportURL: o.uploadReport(ctx, inv, res),
	}, nil
}

// uploadReport renders and stores the PDF. It returns "" when either step
// fails; the run continues without a report.
func (o *Orchestrator) uploadReport(ctx context.Context, inv storage.Investigation, res analysis.Result) string {
	if o.blobs == nil {
		return ""
	}
	pdf, err := report.Render(report.Target{
		ID:   inv.ID,
		Name: inv.TargetName,
		Type: inv.TargetType,
		URL:  inv.TargetURL,
	}, res, o.report)
	if err != nil {
		o.logger.Warn("report render failed", "investigation_id", inv.ID, "error", err)
		return ""
	}
	obj, err := o.blobs.Put(ctx, blob.BucketReports, blob.ReportName(inv.ID), bytes.NewReader(pdf), true)
	if err != nil {
		o.logger.Warn("report upload failed", "investigation_id", inv.ID, "error", err)
		return ""
	}
	return obj.URL
}

// notifyClient sends the report-complete email at most once per
// investigation. Failures are logged and recorded in the email log only.
func (o *Orchestrator) notifyClient(ctx context.Context, inv storage.Investigation) {
	if inv.ClientEmail == "" || o.mailer == nil || inv.Result == nil {
		return
	}
	reserved, err := o.store.ReserveEmail(inv.ID, storage.EmailReportComplete, inv.ClientEmail, o.now())
	if err != nil {
		o.logger.Warn("email reservation failed", "investigation_id", inv.ID, "error", err)
		return
	}
	if !reserved {
		o.logger.Debug("report email already sent", "investigation_id", inv.ID)
		return
	}

	msg, sendErr := notify.BuildReportEmail(notify.ReportReady{
		Recipient:        inv.ClientEmail,
		RecipientName:    inv.ClientName,
		TargetName:       inv.TargetName,
		LegitimacyScore:  inv.LegitimacyScore,
		Recommendation:   string(inv.Recommendation),
		ReportURL:        inv.ReportURL,
		ExecutiveSummary: inv.ExecutiveSummary,
	})
	if sendErr == nil {
		sendErr = o.mailer.Send(ctx, msg)
	}
	if err := o.store.MarkEmail(inv.ID, storage.EmailReportComplete, sendErr, o.now()); err != nil {
		o.logger.Warn("email log update failed", "investigation_id", inv.ID, "error", err)
	}
	if sendErr != nil {
		o.logger.Warn("report email failed", "investigation_id", inv.ID, "recipient", inv.ClientEmail, "error", sendErr)
		return
	}
	o.logger.Info("report email sent", "investigation_id", inv.ID, "recipient", inv.ClientEmail)
}

func (o *Orchestrator) fail(inv storage.Investigation, token string, cause error) {
	o.logger.Error("investigation failed", "investigation_id", inv.ID, "attempt", inv.Attempts, "error", cause)
	if err := o.store.MarkFailed(inv.ID, token, cause.Error(), o.now()); err != nil {
		o.logger.Error("failed to mark investigation failed", "investigation_id", inv.ID, "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.publish(ctx, inv, storage.StatusFailed, cause.Error())
}

func (o *Orchestrator) publish(ctx context.Context, inv storage.Investigation, status storage.Status, errMsg string) {
	ev := events.StatusEvent{
		InvestigationID: inv.ID,
		Status:          string(status),
		Attempts:        inv.Attempts,
		Error:           errMsg,
		At:              o.now(),
	}
	if err := o.events.PublishStatus(ctx, ev); err != nil {
		o.logger.Warn("status event publish failed", "investigation_id", inv.ID, "status", status, "error", err)
	}
}

// reload picks up report_sent_at after notification. It falls back to inv.
func (o *Orchestrator) reload(inv storage.Investigation) storage.Investigation {
	fresh, err := o.store.GetInvestigation(inv.ID)
	if err != nil {
		return inv
	}
	return fresh
}
