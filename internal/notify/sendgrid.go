// Package notify sends transactional email through the SendGrid v3 API.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	mailSendPath   = "/v3/mail/send"
	defaultTimeout = 15 * time.Second
)

// Message is a single outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid is a Mailer backed by the sendgrid-go mail-send client.
type SendGrid struct {
	mu      sync.Mutex // SendWithContext sets the body on the shared request
	client  *sendgrid.Client
	from    *mail.Email
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*SendGrid)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(s *SendGrid) {
		if u != "" {
			s.client.BaseURL = strings.TrimRight(u, "/") + mailSendPath
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *SendGrid) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SendGrid) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSendGrid(apiKey, from, fromName string, opts ...Option) *SendGrid {
	s := &SendGrid{
		client:  sendgrid.NewSendClient(apiKey),
		from:    mail.NewEmail(fromName, from),
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type apiErrors struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("sendgrid: recipient is required")
	}

	var contents []*mail.Content
	if msg.Text != "" {
		contents = append(contents, mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		contents = append(contents, mail.NewContent("text/html", msg.HTML))
	}
	m := mail.NewV3MailInit(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), contents...)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	resp, err := s.client.SendWithContext(ctx, m)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
		return nil
	}

	var apiErr apiErrors
	if json.Unmarshal([]byte(resp.Body), &apiErr) == nil && len(apiErr.Errors) > 0 {
		msgs := make([]string, len(apiErr.Errors))
		for i, e := range apiErr.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("sendgrid: unexpected status %d", resp.StatusCode)
}
