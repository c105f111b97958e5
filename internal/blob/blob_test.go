package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

var ctx = context.Background()

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndOpen(t *testing.T) {
	s := newTestStore(t)

	obj, err := s.Put(ctx, BucketFiles, "a.txt", strings.NewReader("hello"), false)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.URL != "http://localhost:8080/files/investigation-files/a.txt" {
		t.Errorf("URL = %q", obj.URL)
	}
	if obj.Size != 5 {
		t.Errorf("Size = %d", obj.Size)
	}

	f, err := s.Open(ctx, BucketFiles, "a.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestPutWithoutUpsertRejectsExisting(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Put(ctx, BucketFiles, "a.txt", strings.NewReader("one"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, BucketFiles, "a.txt", strings.NewReader("two"), false); !errors.Is(err, ErrExists) {
		t.Fatalf("second Put = %v, want ErrExists", err)
	}
}

func TestPutUpsertReplaces(t *testing.T) {
	s := newTestStore(t)

	for _, body := range []string{"first", "second"} {
		if _, err := s.Put(ctx, BucketReports, ReportName("abc"), strings.NewReader(body), true); err != nil {
			t.Fatalf("Put %s: %v", body, err)
		}
	}
	f, err := s.Open(ctx, BucketReports, "report-abc.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
}

func TestPutRejectsInvalidNames(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", "../x", "a/../../x", "/etc/passwd", "a//b"} {
		if _, err := s.Put(ctx, BucketFiles, name, strings.NewReader("x"), true); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Put(%q) = %v, want ErrInvalidPath", name, err)
		}
	}
	if _, err := s.Put(ctx, "other", "a.txt", strings.NewReader("x"), true); !errors.Is(err, ErrNoBucket) {
		t.Errorf("unknown bucket = %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Put(ctx, BucketFiles, "gone.txt", strings.NewReader("x"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, BucketFiles, "gone.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, BucketFiles, "gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestServeObject(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Put(ctx, BucketReports, "report-1.pdf", strings.NewReader("%PDF-1.3"), true); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeObject(rec, httptest.NewRequest(http.MethodGet, "/", nil), BucketReports, "report-1.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = httptest.NewRecorder()
	s.ServeObject(rec, httptest.NewRequest(http.MethodGet, "/", nil), BucketReports, "missing.pdf")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
}

func TestUniqueName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := UniqueName("Scan.JPG", now)
	if !regexp.MustCompile(`^1700000000123-[0-9a-f]{8}\.jpg$`).MatchString(name) {
		t.Errorf("UniqueName = %q", name)
	}
	if UniqueName("Scan.JPG", now) == name {
		t.Error("names should differ between calls")
	}
	if got := UniqueName("README", now); strings.Contains(got, ".") {
		t.Errorf("no-extension name = %q", got)
	}
}

func TestOpenMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Open(ctx, BucketFiles, "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open missing = %v, want ErrNotFound", err)
	}
}

func TestPutStoresUnderRoot(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Put(ctx, BucketFiles, "scan.png", strings.NewReader("png"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), BucketFiles, "scan.png"))
	if err != nil {
		t.Fatalf("reading object file: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("content = %q", data)
	}
}
