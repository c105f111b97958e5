package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/legitcheck/internal/analysis"
)

const investigationColumns = `id, created_by, form_id, target_name, target_type, target_url, investigation_mode, status,
	form_responses, pasted_content, submitted_urls, uploaded_files,
	legitimacy_score, confidence_level, recommendation, executive_summary, red_flags, legitimacy_indicators,
	risk_breakdown, business_intelligence, evidence_sources, key_findings, recommendations,
	defaulted_fields, raw_data, report_url, report_sent_at, client_email, client_name,
	attempts, run_token, last_error, created_at, updated_at, completed_at`

const defaultListLimit = 20

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvestigation(row rowScanner) (Investigation, error) {
	var inv Investigation
	var (
		createdBy                                   sql.NullString
		formResponses, submittedURLs, uploadedFiles sql.NullString
		score                                       sql.NullInt64
		confidence                                  sql.NullFloat64
		recommendation, summary                     sql.NullString
		redFlags, indicators, risk, bi, sources     sql.NullString
		keyFindings, recs, defaulted, rawData       sql.NullString
		reportSentAt, completedAt                   sql.NullString
		createdAt, updatedAt                        string
	)
	err := row.Scan(
		&inv.ID, &createdBy, &inv.FormID, &inv.TargetName, &inv.TargetType, &inv.TargetURL, &inv.InvestigationMode, &inv.Status,
		&formResponses, &inv.PastedContent, &submittedURLs, &uploadedFiles,
		&score, &confidence, &recommendation, &summary, &redFlags, &indicators,
		&risk, &bi, &sources, &keyFindings, &recs,
		&defaulted, &rawData, &inv.ReportURL, &reportSentAt, &inv.ClientEmail, &inv.ClientName,
		&inv.Attempts, &inv.RunToken, &inv.LastError, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return Investigation{}, err
	}
	inv.CreatedBy = createdBy.String

	inv.FormResponses = map[string]any{}
	inv.SubmittedURLs = []string{}
	inv.UploadedFiles = []string{}
	for _, f := range []struct {
		col sql.NullString
		dst any
	}{
		{formResponses, &inv.FormResponses},
		{submittedURLs, &inv.SubmittedURLs},
		{uploadedFiles, &inv.UploadedFiles},
	} {
		if err := decodeJSON(f.col, f.dst); err != nil {
			return Investigation{}, fmt.Errorf("decoding intake of %s: %w", inv.ID, err)
		}
	}

	if score.Valid {
		res := &analysis.Result{
			LegitimacyScore:  int(score.Int64),
			ConfidenceLevel:  confidence.Float64,
			Recommendation:   analysis.Recommendation(recommendation.String),
			ExecutiveSummary: summary.String,
		}
		for _, f := range []struct {
			col sql.NullString
			dst any
		}{
			{redFlags, &res.RedFlags},
			{indicators, &res.LegitimacyIndicators},
			{risk, &res.RiskBreakdown},
			{bi, &res.BusinessIntelligence},
			{sources, &res.EvidenceSources},
			{keyFindings, &res.KeyFindings},
			{recs, &res.Recommendations},
		} {
			if err := decodeJSON(f.col, f.dst); err != nil {
				return Investigation{}, fmt.Errorf("decoding analysis of %s: %w", inv.ID, err)
			}
		}
		inv.Result = res
	}
	if defaulted.Valid {
		var rep analysis.Report
		if err := decodeJSON(defaulted, &rep); err != nil {
			return Investigation{}, fmt.Errorf("decoding defaulted_fields of %s: %w", inv.ID, err)
		}
		inv.DefaultedFields = &rep
	}
	if rawData.Valid && rawData.String != "" {
		inv.RawData = []byte(rawData.String)
	}

	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return Investigation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Investigation{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	if inv.ReportSentAt, err = parseNullTime(reportSentAt); err != nil {
		return Investigation{}, fmt.Errorf("parsing report_sent_at: %w", err)
	}
	if inv.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return Investigation{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	return inv, nil
}

// CreateInvestigation inserts a new record and returns it as stored. The ID
// is generated when empty, and the status defaults to pending.
func (s *Store) CreateInvestigation(inv Investigation) (Investigation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = StatusPending
	}
	if inv.FormResponses == nil {
		inv.FormResponses = map[string]any{}
	}
	if inv.SubmittedURLs == nil {
		inv.SubmittedURLs = []string{}
	}
	if inv.UploadedFiles == nil {
		inv.UploadedFiles = []string{}
	}
	formResponses, err := encodeJSON(inv.FormResponses)
	if err != nil {
		return Investigation{}, fmt.Errorf("encoding form responses: %w", err)
	}
	submitted, _ := encodeJSON(inv.SubmittedURLs)
	uploaded, _ := encodeJSON(inv.UploadedFiles)

	now := formatTime(time.Now())
	_, err = s.db.Exec(`
		INSERT INTO investigations (id, created_by, form_id, target_name, target_type, target_url, investigation_mode, status,
			form_responses, pasted_content, submitted_urls, uploaded_files, client_email, client_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, nullIfEmpty(inv.CreatedBy), inv.FormID, inv.TargetName, inv.TargetType, inv.TargetURL,
		string(inv.InvestigationMode), string(inv.Status), formResponses, inv.PastedContent, submitted, uploaded,
		inv.ClientEmail, inv.ClientName, now, now,
	)
	if err != nil {
		return Investigation{}, fmt.Errorf("inserting investigation: %w", err)
	}
	return s.GetInvestigation(inv.ID)
}

func (s *Store) GetInvestigation(id string) (Investigation, error) {
	inv, err := scanInvestigation(s.db.QueryRow(`SELECT `+investigationColumns+` FROM investigations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Investigation{}, ErrNotFound
	}
	return inv, err
}

// GetOwnedInvestigation matches on both id and owner.
func (s *Store) GetOwnedInvestigation(id, owner string) (Investigation, error) {
	inv, err := scanInvestigation(s.db.QueryRow(
		`SELECT `+investigationColumns+` FROM investigations WHERE id = ? AND created_by = ?`, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return Investigation{}, ErrNotFound
	}
	return inv, err
}

// GetPublicInvestigation returns only records created without an owner.
func (s *Store) GetPublicInvestigation(id string) (Investigation, error) {
	inv, err := scanInvestigation(s.db.QueryRow(
		`SELECT `+investigationColumns+` FROM investigations WHERE id = ? AND created_by IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Investigation{}, ErrNotFound
	}
	return inv, err
}

// ListInvestigations returns records newest first.
func (s *Store) ListInvestigations(f ListFilter) ([]Investigation, error) {
	var where []string
	var args []any
	if f.Owner != "" {
		where = append(where, "created_by = ?")
		args = append(args, f.Owner)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + investigationColumns + ` FROM investigations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Investigation{}
	for rows.Next() {
		inv, err := scanInvestigation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, inv)
	}
	return results, rows.Err()
}

// DeleteInvestigation removes an owned record and its email log.
func (s *Store) DeleteInvestigation(id, owner string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM investigations WHERE id = ? AND created_by = ?`, id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM email_logs WHERE investigation_id = ?`, id); err != nil {
		return fmt.Errorf("deleting email log: %w", err)
	}
	return tx.Commit()
}

func currentRun(tx *sql.Tx, id string) (Status, string, error) {
	var status, token string
	err := tx.QueryRow(`SELECT status, run_token FROM investigations WHERE id = ?`, id).Scan(&status, &token)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return Status(status), token, nil
}

// UpdateIntake stores the supplied intake fields and resets the record to
// pending, clearing any earlier analysis. A processing record is rejected.
func (s *Store) UpdateIntake(id string, in Intake) (Investigation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Investigation{}, fmt.Errorf("beginning intake transaction: %w", err)
	}
	defer tx.Rollback()

	status, _, err := currentRun(tx, id)
	if err != nil {
		return Investigation{}, err
	}
	if status == StatusProcessing {
		return Investigation{}, ErrRunInProgress
	}

	sets := []string{"status = 'pending'", "updated_at = ?", "last_error = ''", "completed_at = NULL", "report_url = ''"}
	for _, col := range analysisColumns {
		sets = append(sets, col+" = NULL")
	}
	args := []any{formatTime(time.Now())}
	if in.FormResponses != nil {
		v, err := encodeJSON(in.FormResponses)
		if err != nil {
			return Investigation{}, fmt.Errorf("encoding form responses: %w", err)
		}
		sets = append(sets, "form_responses = ?")
		args = append(args, v)
	}
	if in.PastedContent != nil {
		sets = append(sets, "pasted_content = ?")
		args = append(args, *in.PastedContent)
	}
	if in.SubmittedURLs != nil {
		v, _ := encodeJSON(in.SubmittedURLs)
		sets = append(sets, "submitted_urls = ?")
		args = append(args, v)
	}
	if in.UploadedFiles != nil {
		v, _ := encodeJSON(in.UploadedFiles)
		sets = append(sets, "uploaded_files = ?")
		args = append(args, v)
	}
	args = append(args, id)

	if _, err := tx.Exec(`UPDATE investigations SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return Investigation{}, fmt.Errorf("updating intake: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Investigation{}, fmt.Errorf("committing intake: %w", err)
	}
	return s.GetInvestigation(id)
}

var analysisColumns = []string{
	"legitimacy_score", "confidence_level", "recommendation", "executive_summary", "red_flags",
	"legitimacy_indicators", "risk_breakdown", "business_intelligence", "evidence_sources",
	"key_findings", "recommendations", "defaulted_fields", "raw_data",
}

// BeginRun claims the investigation for the run identified by token.
//
// A completed record finished by the same token is returned unchanged. A
// record completed by another token yields ErrAlreadyCompleted, and one being
// processed by another token yields ErrRunInProgress. Otherwise the record
// moves to processing with attempts incremented.
func (s *Store) BeginRun(id, token string, now time.Time) (Investigation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Investigation{}, fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	status, current, err := currentRun(tx, id)
	if err != nil {
		return Investigation{}, err
	}
	switch status {
	case StatusCompleted:
		if current != token {
			return Investigation{}, ErrAlreadyCompleted
		}
		tx.Rollback()
		return s.GetInvestigation(id)
	case StatusProcessing:
		if current != token {
			return Investigation{}, ErrRunInProgress
		}
	}

	_, err = tx.Exec(`UPDATE investigations
		SET status = 'processing', run_token = ?, attempts = attempts + 1, last_error = '', updated_at = ?
		WHERE id = ?`, token, formatTime(now), id)
	if err != nil {
		return Investigation{}, fmt.Errorf("marking processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Investigation{}, fmt.Errorf("committing run start: %w", err)
	}
	return s.GetInvestigation(id)
}

// Finalize writes the outcome of a run and marks the record completed. Calling
// it again with the same token is a no-op.
func (s *Store) Finalize(id, token string, out Outcome, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning finalize transaction: %w", err)
	}
	defer tx.Rollback()

	status, current, err := currentRun(tx, id)
	if err != nil {
		return err
	}
	if status == StatusCompleted {
		if current == token {
			return nil
		}
		return ErrAlreadyCompleted
	}
	if status != StatusProcessing || current != token {
		return ErrRunInProgress
	}

	r := out.Result
	cols := make([]any, 0, 9)
	for _, v := range []any{
		r.RedFlags, r.LegitimacyIndicators, r.RiskBreakdown, r.BusinessIntelligence,
		r.EvidenceSources, r.KeyFindings, r.Recommendations, out.Report,
	} {
		enc, err := encodeJSON(v)
		if err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		cols = append(cols, enc)
	}
	var raw any
	if len(out.RawData) > 0 {
		raw = string(out.RawData)
	}

	ts := formatTime(now)
	_, err = tx.Exec(`UPDATE investigations SET
			legitimacy_score = ?, confidence_level = ?, recommendation = ?, executive_summary = ?,
			red_flags = ?, legitimacy_indicators = ?, risk_breakdown = ?, business_intelligence = ?,
			evidence_sources = ?, key_findings = ?, recommendations = ?, defaulted_fields = ?,
			raw_data = ?, report_url = ?, status = 'completed', completed_at = ?, updated_at = ?
		WHERE id = ?`,
		r.LegitimacyScore, r.ConfidenceLevel, string(r.Recommendation), r.ExecutiveSummary,
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6], cols[7],
		raw, out.ReportURL, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("writing analysis: %w", err)
	}
	return tx.Commit()
}

// MarkFailed records a failed run. It only applies while the record is still
// processing under token.
func (s *Store) MarkFailed(id, token, errMsg string, now time.Time) error {
	res, err := s.db.Exec(`UPDATE investigations SET status = 'failed', last_error = ?, updated_at = ?
		WHERE id = ? AND run_token = ? AND status = 'processing'`, errMsg, formatTime(now), id, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM investigations WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// RecoverStale fails processing records not updated since before cutoff and
// returns their ids.
func (s *Store) RecoverStale(cutoff, now time.Time) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning recovery transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM investigations WHERE status = 'processing' AND updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE investigations SET status = 'failed', last_error = 'run abandoned', updated_at = ? WHERE id = ?`,
			formatTime(now), id); err != nil {
			return nil, fmt.Errorf("failing %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ResetForRetry moves a failed record back to pending. Pending records are
// left as they are.
func (s *Store) ResetForRetry(id string) (Investigation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Investigation{}, fmt.Errorf("beginning retry transaction: %w", err)
	}
	defer tx.Rollback()

	status, _, err := currentRun(tx, id)
	if err != nil {
		return Investigation{}, err
	}
	switch status {
	case StatusProcessing:
		return Investigation{}, ErrRunInProgress
	case StatusCompleted:
		return Investigation{}, ErrAlreadyCompleted
	case StatusFailed:
		if _, err := tx.Exec(`UPDATE investigations SET status = 'pending', updated_at = ? WHERE id = ?`,
			formatTime(time.Now()), id); err != nil {
			return Investigation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Investigation{}, err
	}
	return s.GetInvestigation(id)
}
