package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReserveEmail claims the (investigation, type) email slot. It reports false
// when that email was already sent; pending or failed slots are reclaimed.
func (s *Store) ReserveEmail(investigationID, emailType, recipient string, now time.Time) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO email_logs (id, investigation_id, email_type, recipient, status, error, created_at)
		VALUES (?, ?, ?, ?, 'pending', '', ?)
		ON CONFLICT(investigation_id, email_type) DO UPDATE
			SET recipient = excluded.recipient, status = 'pending', error = ''
			WHERE email_logs.status != 'sent'`,
		uuid.NewString(), investigationID, emailType, recipient, formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("reserving email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkEmail settles a reserved email. A nil sendErr marks it sent and stamps
// report_sent_at on the investigation in the same transaction.
func (s *Store) MarkEmail(investigationID, emailType string, sendErr error, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning email transaction: %w", err)
	}
	defer tx.Rollback()

	ts := formatTime(now)
	var res sql.Result
	if sendErr != nil {
		res, err = tx.Exec(`UPDATE email_logs SET status = 'failed', error = ? WHERE investigation_id = ? AND email_type = ?`,
			sendErr.Error(), investigationID, emailType)
	} else {
		res, err = tx.Exec(`UPDATE email_logs SET status = 'sent', error = '', sent_at = ? WHERE investigation_id = ? AND email_type = ?`,
			ts, investigationID, emailType)
	}
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

	if sendErr == nil {
		if _, err := tx.Exec(`UPDATE investigations SET report_sent_at = ?, updated_at = ? WHERE id = ?`, ts, ts, investigationID); err != nil {
			return fmt.Errorf("stamping report_sent_at: %w", err)
		}
	}
	return tx.Commit()
}

// ListEmailLogs returns the most recent email log rows, optionally for one
// investigation.
func (s *Store) ListEmailLogs(investigationID string, limit int) ([]EmailLog, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, investigation_id, email_type, recipient, status, error, created_at, sent_at FROM email_logs`
	args := []any{}
	if investigationID != "" {
		query += ` WHERE investigation_id = ?`
		args = append(args, investigationID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []EmailLog{}
	for rows.Next() {
		var l EmailLog
		var createdAt string
		var sentAt sql.NullString
		if err := rows.Scan(&l.ID, &l.InvestigationID, &l.EmailType, &l.Recipient, &l.Status, &l.Error, &createdAt, &sentAt); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if l.SentAt, err = parseNullTime(sentAt); err != nil {
			return nil, fmt.Errorf("parsing sent_at: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
