package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newRecordingPublisher(fail error) (*NATSPublisher, *[]string, *[][]byte) {
	var subjects []string
	var payloads [][]byte
	p := &NATSPublisher{
		subject: "investigations.status",
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		publish: func(subject string, data []byte) error {
			if fail != nil {
				return fail
			}
			subjects = append(subjects, subject)
			payloads = append(payloads, data)
			return nil
		},
	}
	return p, &subjects, &payloads
}

func TestPublishStatus(t *testing.T) {
	p, subjects, payloads := newRecordingPublisher(nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.PublishStatus(context.Background(), StatusEvent{
		InvestigationID: "inv-1", Status: "failed", Attempts: 2, Error: "analysis generation failed", At: at,
	})
	if err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}

	if len(*subjects) != 1 || (*subjects)[0] != "investigations.status.failed" {
		t.Fatalf("subjects = %v", *subjects)
	}
	var got StatusEvent
	if err := json.Unmarshal((*payloads)[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.InvestigationID != "inv-1" || got.Attempts != 2 || !got.At.Equal(at) {
		t.Errorf("event = %+v", got)
	}
}

func TestPublishStatus_Errors(t *testing.T) {
	p, _, _ := newRecordingPublisher(errors.New("nats: connection closed"))
	if err := p.PublishStatus(context.Background(), StatusEvent{Status: "completed"}); err == nil {
		t.Fatal("expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, subjects, _ := newRecordingPublisher(nil)
	if err := ok.PublishStatus(ctx, StatusEvent{Status: "completed"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(*subjects) != 0 {
		t.Error("published after cancellation")
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.PublishStatus(context.Background(), StatusEvent{}); err != nil {
		t.Errorf("Nop.PublishStatus = %v", err)
	}
	p.Close()
}
