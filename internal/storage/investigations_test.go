package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/legitcheck/internal/analysis"
)

func createTestInvestigation(t *testing.T, s *Store, inv Investigation) Investigation {
	t.Helper()
	if inv.TargetName == "" {
		inv.TargetName = "Acme Corp"
	}
	if inv.InvestigationMode == "" {
		inv.InvestigationMode = ModePortal
	}
	got, err := s.CreateInvestigation(inv)
	if err != nil {
		t.Fatalf("CreateInvestigation: %v", err)
	}
	return got
}

func sampleResult() analysis.Result {
	return analysis.Result{
		LegitimacyScore:  3,
		ConfidenceLevel:  0.82,
		Recommendation:   analysis.Avoid,
		ExecutiveSummary: "Several warning signs.",
		RedFlags: []analysis.RedFlag{
			{Flag: "No registration", Severity: analysis.Critical, Evidence: "registry search", Impact: "no recourse"},
		},
		LegitimacyIndicators: []analysis.Indicator{
			{Indicator: "HTTPS", Strength: analysis.Weak, Evidence: "valid cert"},
		},
		RiskBreakdown: analysis.RiskBreakdown{
			Financial:  analysis.RiskCategory{Level: analysis.High, Description: "prepayment"},
			Privacy:    analysis.RiskCategory{Level: analysis.Medium, Description: "collects ID"},
			Reputation: analysis.RiskCategory{Level: analysis.Low, Description: "few reviews"},
			Legal:      analysis.RiskCategory{Level: analysis.Critical, Description: "unlicensed"},
		},
		BusinessIntelligence: map[string]any{"business_model": "dropshipping"},
		EvidenceSources: []analysis.EvidenceSource{
			{Source: "Trustpilot", URL: "https://trustpilot.com", KeyFindings: []string{"1.2 stars"}, Reliability: "medium"},
		},
		KeyFindings:     []string{"Domain registered last month"},
		Recommendations: analysis.Recommendations{ForUser: []string{"Do not pay"}, NextSteps: []string{"Report it"}},
	}
}

func TestCreateInvestigation_Defaults(t *testing.T) {
	s := openTestStore(t)

	inv := createTestInvestigation(t, s, Investigation{})
	if inv.ID == "" {
		t.Fatal("ID not generated")
	}
	if inv.Status != StatusPending {
		t.Errorf("Status = %q, want pending", inv.Status)
	}
	if inv.CreatedBy != "" {
		t.Errorf("CreatedBy = %q, want unowned", inv.CreatedBy)
	}
	if inv.Result != nil {
		t.Error("new investigation should carry no analysis")
	}
	if inv.SubmittedURLs == nil || inv.UploadedFiles == nil || inv.FormResponses == nil {
		t.Error("intake collections should be empty, not nil")
	}
}

func TestGetInvestigationNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetInvestigation("does-not-exist")
	if err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestOwnershipScoping(t *testing.T) {
	s := openTestStore(t)

	owned := createTestInvestigation(t, s, Investigation{CreatedBy: "user-1", InvestigationMode: ModeForm})
	anon := createTestInvestigation(t, s, Investigation{})

	if _, err := s.GetOwnedInvestigation(owned.ID, "user-1"); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
	if _, err := s.GetOwnedInvestigation(owned.ID, "user-2"); err != ErrNotFound {
		t.Errorf("other owner lookup = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPublicInvestigation(owned.ID); err != ErrNotFound {
		t.Errorf("public lookup of owned record = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPublicInvestigation(anon.ID); err != nil {
		t.Errorf("public lookup of anonymous record: %v", err)
	}

	if err := s.DeleteInvestigation(owned.ID, "user-2"); err != ErrNotFound {
		t.Errorf("delete by non-owner = %v, want ErrNotFound", err)
	}
	if err := s.DeleteInvestigation(owned.ID, "user-1"); err != nil {
		t.Fatalf("DeleteInvestigation: %v", err)
	}
	if _, err := s.GetInvestigation(owned.ID); err != ErrNotFound {
		t.Errorf("after delete = %v, want ErrNotFound", err)
	}
}

func TestListInvestigations(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"first", "second", "third"} {
		createTestInvestigation(t, s, Investigation{TargetName: name, CreatedBy: "user-1"})
	}
	createTestInvestigation(t, s, Investigation{TargetName: "other", CreatedBy: "user-2"})

	got, err := s.ListInvestigations(ListFilter{Owner: "user-1", Limit: 2})
	if err != nil {
		t.Fatalf("ListInvestigations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TargetName != "third" || got[1].TargetName != "second" {
		t.Errorf("order = %q, %q", got[0].TargetName, got[1].TargetName)
	}

	got, err = s.ListInvestigations(ListFilter{Owner: "user-1", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListInvestigations offset: %v", err)
	}
	if len(got) != 1 || got[0].TargetName != "first" {
		t.Errorf("page 2 = %+v", got)
	}

	all, err := s.ListInvestigations(ListFilter{})
	if err != nil {
		t.Fatalf("ListInvestigations all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}
}

func TestBeginRun_Transitions(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})
	now := time.Now()

	got, err := s.BeginRun(inv.ID, "tok-a", now)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if got.Status != StatusProcessing || got.Attempts != 1 || got.RunToken != "tok-a" {
		t.Errorf("after begin = %s attempts=%d token=%q", got.Status, got.Attempts, got.RunToken)
	}

	if _, err := s.BeginRun(inv.ID, "tok-b", now); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent BeginRun = %v, want ErrRunInProgress", err)
	}

	got, err = s.BeginRun(inv.ID, "tok-a", now)
	if err != nil {
		t.Fatalf("re-entering BeginRun: %v", err)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}

	if _, err := s.BeginRun("missing", "tok-a", now); err != ErrNotFound {
		t.Errorf("missing = %v, want ErrNotFound", err)
	}
}

func TestFailedRunCanRestart(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})
	now := time.Now()

	if _, err := s.BeginRun(inv.ID, "tok-a", now); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := s.MarkFailed(inv.ID, "tok-a", "analysis generation failed: boom", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, _ := s.GetInvestigation(inv.ID)
	if got.Status != StatusFailed || got.LastError != "analysis generation failed: boom" {
		t.Errorf("after fail = %s %q", got.Status, got.LastError)
	}

	got, err := s.BeginRun(inv.ID, "tok-b", now)
	if err != nil {
		t.Fatalf("BeginRun after failure: %v", err)
	}
	if got.Status != StatusProcessing || got.LastError != "" || got.Attempts != 2 {
		t.Errorf("restart = %s %q attempts=%d", got.Status, got.LastError, got.Attempts)
	}

	// A stale token can no longer fail the record.
	if err := s.MarkFailed(inv.ID, "tok-a", "late", now); err != nil {
		t.Fatalf("MarkFailed stale: %v", err)
	}
	got, _ = s.GetInvestigation(inv.ID)
	if got.Status != StatusProcessing {
		t.Errorf("stale MarkFailed changed status to %s", got.Status)
	}
}

func TestFinalizeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{ClientEmail: "a@b.test"})
	now := time.Now().UTC().Truncate(time.Second)

	if _, err := s.BeginRun(inv.ID, "tok", now); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	want := sampleResult()
	out := Outcome{
		Result:    want,
		Report:    analysis.Report{Defaulted: []string{"business_intelligence"}, Coerced: []string{}},
		RawData:   json.RawMessage(`{"research":null,"document_analysis":[]}`),
		ReportURL: "http://localhost/files/reports/report-x.pdf",
	}
	if err := s.Finalize(inv.ID, "tok", out, now); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := s.GetInvestigation(inv.ID)
	if err != nil {
		t.Fatalf("GetInvestigation: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s", got.Status)
	}
	if got.Result == nil {
		t.Fatal("Result not loaded")
	}
	if diff := cmp.Diff(want, *got.Result); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(out.Report, *got.DefaultedFields); diff != "" {
		t.Errorf("defaulted_fields mismatch (-want +got):\n%s", diff)
	}
	if string(got.RawData) != string(out.RawData) {
		t.Errorf("RawData = %s", got.RawData)
	}
	if got.ReportURL != out.ReportURL {
		t.Errorf("ReportURL = %q", got.ReportURL)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, now)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})
	now := time.Now()

	if _, err := s.BeginRun(inv.ID, "tok", now); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	first := Outcome{Result: sampleResult(), ReportURL: "first"}
	if err := s.Finalize(inv.ID, "tok", first, now); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	second := Outcome{Result: sampleResult(), ReportURL: "second"}
	second.Result.LegitimacyScore = 9
	if err := s.Finalize(inv.ID, "tok", second, now); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	got, _ := s.GetInvestigation(inv.ID)
	if got.ReportURL != "first" || got.LegitimacyScore != 3 {
		t.Errorf("second Finalize overwrote the record: %q score=%d", got.ReportURL, got.LegitimacyScore)
	}

	if err := s.Finalize(inv.ID, "other", second, now); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("Finalize other token = %v, want ErrAlreadyCompleted", err)
	}
	if _, err := s.BeginRun(inv.ID, "other", now); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("BeginRun other token = %v, want ErrAlreadyCompleted", err)
	}
	got, err := s.BeginRun(inv.ID, "tok", now)
	if err != nil || got.Status != StatusCompleted {
		t.Errorf("BeginRun same token after completion = %v, %s", err, got.Status)
	}
}

func TestFinalizeRequiresProcessing(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})

	err := s.Finalize(inv.ID, "tok", Outcome{Result: sampleResult()}, time.Now())
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Finalize on pending = %v, want ErrRunInProgress", err)
	}
}

func TestUpdateIntake(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})

	text := "They asked for a wire transfer"
	got, err := s.UpdateIntake(inv.ID, Intake{
		PastedContent: &text,
		SubmittedURLs: []string{"https://acme.test/offer"},
		UploadedFiles: []string{"http://localhost/files/investigation-files/a.png"},
	})
	if err != nil {
		t.Fatalf("UpdateIntake: %v", err)
	}
	if got.PastedContent != text || len(got.SubmittedURLs) != 1 || len(got.UploadedFiles) != 1 {
		t.Errorf("intake = %+v", got)
	}

	got, err = s.UpdateIntake(inv.ID, Intake{FormResponses: map[string]any{"q": "a"}})
	if err != nil {
		t.Fatalf("UpdateIntake form: %v", err)
	}
	if got.PastedContent != text {
		t.Error("nil field overwrote pasted content")
	}
	if got.FormResponses["q"] != "a" {
		t.Errorf("FormResponses = %v", got.FormResponses)
	}

	if _, err := s.BeginRun(inv.ID, "tok", time.Now()); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if _, err := s.UpdateIntake(inv.ID, Intake{PastedContent: &text}); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("UpdateIntake while processing = %v, want ErrRunInProgress", err)
	}
}

func TestUpdateIntakeClearsAnalysis(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})
	now := time.Now()

	if _, err := s.BeginRun(inv.ID, "tok", now); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := s.Finalize(inv.ID, "tok", Outcome{Result: sampleResult(), ReportURL: "r"}, now); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := s.UpdateIntake(inv.ID, Intake{SubmittedURLs: []string{"https://x.test"}})
	if err != nil {
		t.Fatalf("UpdateIntake: %v", err)
	}
	if got.Status != StatusPending || got.Result != nil || got.ReportURL != "" || got.CompletedAt != nil {
		t.Errorf("analysis not cleared: status=%s result=%v report=%q", got.Status, got.Result, got.ReportURL)
	}
}

func TestRecoverStale(t *testing.T) {
	s := openTestStore(t)
	stale := createTestInvestigation(t, s, Investigation{TargetName: "stale"})
	fresh := createTestInvestigation(t, s, Investigation{TargetName: "fresh"})

	old := time.Now().Add(-time.Hour)
	if _, err := s.BeginRun(stale.ID, "a", old); err != nil {
		t.Fatalf("BeginRun stale: %v", err)
	}
	if _, err := s.BeginRun(fresh.ID, "b", time.Now()); err != nil {
		t.Fatalf("BeginRun fresh: %v", err)
	}

	ids, err := s.RecoverStale(time.Now().Add(-15*time.Minute), time.Now())
	if err != nil {
		t.Fatalf("RecoverStale: %v", err)
	}
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Fatalf("recovered = %v, want [%s]", ids, stale.ID)
	}

	got, _ := s.GetInvestigation(stale.ID)
	if got.Status != StatusFailed || got.LastError != "run abandoned" {
		t.Errorf("stale = %s %q", got.Status, got.LastError)
	}
	got, _ = s.GetInvestigation(fresh.ID)
	if got.Status != StatusProcessing {
		t.Errorf("fresh = %s, want processing", got.Status)
	}
}

func TestResetForRetry(t *testing.T) {
	s := openTestStore(t)
	inv := createTestInvestigation(t, s, Investigation{})
	now := time.Now()

	if _, err := s.BeginRun(inv.ID, "tok", now); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if _, err := s.ResetForRetry(inv.ID); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("retry while processing = %v", err)
	}
	if err := s.MarkFailed(inv.ID, "tok", "boom", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, err := s.ResetForRetry(inv.ID)
	if err != nil {
		t.Fatalf("ResetForRetry: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
}

func TestInvestigationJSONInlinesAnalysis(t *testing.T) {
	res := sampleResult()
	inv := Investigation{ID: "x", TargetName: "Acme", Status: StatusCompleted, Result: &res, RunToken: "secret"}

	b, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["legitimacy_score"] != float64(3) {
		t.Errorf("legitimacy_score = %v", m["legitimacy_score"])
	}
	if _, ok := m["run_token"]; ok {
		t.Error("run token leaked into JSON")
	}

	pending, _ := json.Marshal(Investigation{ID: "y", TargetName: "Acme"})
	var pm map[string]any
	if err := json.Unmarshal(pending, &pm); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := pm["recommendation"]; ok {
		t.Error("pending record should carry no analysis fields")
	}
}
