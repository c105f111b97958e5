package storage

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/kalambet/legitcheck/internal/analysis"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress is returned when another run holds the investigation.
	ErrRunInProgress = errors.New("investigation run already in progress")
	// ErrAlreadyCompleted is returned when a different run already finished
	// the investigation.
	ErrAlreadyCompleted = errors.New("investigation already completed")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Mode string

const (
	ModeForm   Mode = "form"
	ModePortal Mode = "portal"
)

func (m Mode) Valid() bool { return m == ModeForm || m == ModePortal }

// Investigation is one legitimacy check. Result is nil until the record is
// completed; its fields are inlined in the JSON form.
type Investigation struct {
	ID                string         `json:"id"`
	CreatedBy         string         `json:"created_by,omitempty"`
	FormID            string         `json:"form_id,omitempty"`
	TargetName        string         `json:"target_name"`
	TargetType        string         `json:"target_type,omitempty"`
	TargetURL         string         `json:"target_url,omitempty"`
	InvestigationMode Mode           `json:"investigation_mode"`
	Status            Status         `json:"status"`
	FormResponses     map[string]any `json:"form_responses"`
	PastedContent     string         `json:"pasted_content,omitempty"`
	SubmittedURLs     []string       `json:"submitted_urls"`
	UploadedFiles     []string       `json:"uploaded_files"`

	*analysis.Result
	DefaultedFields *analysis.Report `json:"defaulted_fields,omitempty"`
	RawData         json.RawMessage  `json:"raw_data,omitempty"`

	ReportURL    string     `json:"report_url,omitempty"`
	ReportSentAt *time.Time `json:"report_sent_at,omitempty"`
	ClientEmail  string     `json:"client_email,omitempty"`
	ClientName   string     `json:"client_name,omitempty"`

	Attempts  int    `json:"attempts"`
	RunToken  string `json:"-"`
	LastError string `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Intake carries intake fields to store. Nil fields are left unchanged.
type Intake struct {
	FormResponses map[string]any
	PastedContent *string
	SubmittedURLs []string
	UploadedFiles []string
}

// Outcome is everything a successful run writes in one transaction.
type Outcome struct {
	Result    analysis.Result
	Report    analysis.Report
	RawData   json.RawMessage
	ReportURL string
}

// ListFilter scopes ListInvestigations. An empty Owner lists every record.
type ListFilter struct {
	Owner  string
	Status Status
	Limit  int
	Offset int
}

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

const EmailReportComplete = "report_complete"

type EmailLog struct {
	ID              string      `json:"id"`
	InvestigationID string      `json:"investigation_id"`
	EmailType       string      `json:"email_type"`
	Recipient       string      `json:"recipient"`
	Status          EmailStatus `json:"status"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	SentAt          *time.Time  `json:"sent_at,omitempty"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

type APIToken struct {
	OwnerID   string
	Label     string
	CreatedAt time.Time
}

// TableCount is one row of TableStatus.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}
