package capture

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		target string
		ok     bool
	}{
		{"https://acme.test", true},
		{"http://acme.test/path?q=1", true},
		{"file:///etc/passwd", false},
		{"javascript:alert(1)", false},
		{"acme.test", false},
		{"https://", false},
	}
	for _, tt := range tests {
		_, err := ValidateTarget(tt.target)
		if tt.ok && err != nil {
			t.Errorf("ValidateTarget(%q) = %v", tt.target, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnsupportedURL) && err == nil {
			t.Errorf("ValidateTarget(%q) accepted", tt.target)
		}
	}
}

func TestCaptureRejectsBeforeLaunching(t *testing.T) {
	b := New(Config{}, nil)
	if _, err := b.Capture(context.Background(), "file:///etc/passwd"); !errors.Is(err, ErrUnsupportedURL) {
		t.Fatalf("err = %v, want ErrUnsupportedURL", err)
	}
	if b.browser != nil || b.launcher != nil {
		t.Error("browser started for rejected target")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on idle browser: %v", err)
	}
}

// TestCaptureLive needs a local Chrome; set LEGITCHECK_TEST_CHROME=1 to run it.
func TestCaptureLive(t *testing.T) {
	if os.Getenv("LEGITCHECK_TEST_CHROME") == "" {
		t.Skip("LEGITCHECK_TEST_CHROME not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><h1>Acme</h1></body></html>"))
	}))
	defer srv.Close()

	b := New(Config{}, nil)
	defer b.Close()

	data, err := b.Capture(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("screenshot is not a PNG")
	}
}
