package investigation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/legitcheck/internal/events"
	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/storage"
)

// JobType is the queue job that runs one investigation.
const JobType = "investigation_run"

type runPayload struct {
	InvestigationID string `json:"investigation_id"`
	RunToken        string `json:"run_token"`
}

// Service accepts intake submissions and schedules runs on the job queue.
type Service struct {
	store       *storage.Store
	catalog     *forms.Catalog
	events      events.Publisher
	maxAttempts int
	logger      *slog.Logger
}

// NewService creates a Service. catalog and pub may be nil.
func NewService(store *storage.Store, catalog *forms.Catalog, pub events.Publisher, maxAttempts int, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: catalog, events: pub, maxAttempts: maxAttempts, logger: logger}
}

// Trigger schedules a run of a pending or failed investigation under a fresh
// run token and returns the job id.
func (s *Service) Trigger(id string) (string, error) {
	inv, err := s.store.GetInvestigation(id)
	if err != nil {
		return "", err
	}
	switch inv.Status {
	case storage.StatusProcessing:
		return "", storage.ErrRunInProgress
	case storage.StatusCompleted:
		return "", storage.ErrAlreadyCompleted
	}
	return s.enqueue(inv.ID)
}

// Retry moves a failed investigation back to pending and schedules a new run.
func (s *Service) Retry(id string) (string, error) {
	inv, err := s.store.ResetForRetry(id)
	if err != nil {
		return "", err
	}
	s.publishPending(inv)
	return s.enqueue(inv.ID)
}

// SubmitForm validates responses against the template named by the record's
// form_id, stores them and schedules a run.
func (s *Service) SubmitForm(id string, responses map[string]any) (storage.Investigation, error) {
	inv, err := s.store.GetInvestigation(id)
	if err != nil {
		return storage.Investigation{}, err
	}
	if s.catalog != nil && inv.FormID != "" {
		if tmpl, ok := s.catalog.Get(inv.FormID); ok {
			if err := tmpl.Validate(responses); err != nil {
				return storage.Investigation{}, err
			}
		}
	}
	if responses == nil {
		responses = map[string]any{}
	}
	return s.submit(id, storage.Intake{FormResponses: responses})
}

// Portal is the portal-mode intake. Nil fields are left unchanged.
type Portal struct {
	UploadedFiles []string `json:"uploaded_files"`
	PastedContent *string  `json:"pasted_content"`
	SubmittedURLs []string `json:"submitted_urls"`
}

// SubmitPortal stores uploaded files, pasted text and URLs and schedules a
// run.
func (s *Service) SubmitPortal(id string, p Portal) (storage.Investigation, error) {
	return s.submit(id, storage.Intake{
		UploadedFiles: p.UploadedFiles,
		PastedContent: p.PastedContent,
		SubmittedURLs: p.SubmittedURLs,
	})
}

func (s *Service) submit(id string, in storage.Intake) (storage.Investigation, error) {
	inv, err := s.store.UpdateIntake(id, in)
	if err != nil {
		return storage.Investigation{}, err
	}
	s.publishPending(inv)
	if _, err := s.enqueue(inv.ID); err != nil {
		return storage.Investigation{}, err
	}
	return inv, nil
}

func (s *Service) enqueue(id string) (string, error) {
	payload, err := json.Marshal(runPayload{InvestigationID: id, RunToken: uuid.NewString()})
	if err != nil {
		return "", err
	}
	jobID, err := s.store.EnqueueJob(storage.Job{
		Type:        JobType,
		PayloadJSON: string(payload),
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return "", fmt.Errorf("scheduling investigation %s: %w", id, err)
	}
	s.logger.Info("investigation scheduled", "investigation_id", id, "job_id", jobID)
	return jobID, nil
}

func (s *Service) publishPending(inv storage.Investigation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.events.PublishStatus(ctx, events.StatusEvent{
		InvestigationID: inv.ID,
		Status:          string(storage.StatusPending),
		Attempts:        inv.Attempts,
		At:              time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("status event publish failed", "investigation_id", inv.ID, "status", storage.StatusPending, "error", err)
	}
}

// RecoverStale fails runs left processing for longer than timeout, e.g. by a
// crashed server, and returns their ids.
func (s *Service) RecoverStale(timeout time.Duration) ([]string, error) {
	now := time.Now().UTC()
	ids, err := s.store.RecoverStale(now.Add(-timeout), now)
	if err != nil {
		return nil, fmt.Errorf("recovering stale runs: %w", err)
	}
	for _, id := range ids {
		s.logger.Warn("abandoned run marked failed", "investigation_id", id)
	}
	return ids, nil
}

// RecoverInterrupted requeues runs a stopped server left mid-flight. A
// requeued job re-enters its investigation under the same run token. When
// the job has no attempts left the investigation is marked failed instead.
func (s *Service) RecoverInterrupted() (int, error) {
	now := time.Now().UTC()
	requeued, exhausted, err := s.store.RequeueRunningJobs(now, "server stopped during run")
	if err != nil {
		return 0, fmt.Errorf("requeueing interrupted jobs: %w", err)
	}
	for _, job := range exhausted {
		var p runPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil || p.InvestigationID == "" {
			s.logger.Warn("interrupted job has no investigation", "job_id", job.ID)
			continue
		}
		if err := s.store.MarkFailed(p.InvestigationID, p.RunToken, "run abandoned", now); err != nil {
			s.logger.Warn("failed to mark interrupted run failed", "investigation_id", p.InvestigationID, "error", err)
			continue
		}
		s.logger.Warn("interrupted run out of attempts", "investigation_id", p.InvestigationID, "job_id", job.ID)
	}
	return requeued, nil
}
