// Package blob stores uploaded files and rendered reports in named buckets
// and hands out public URLs for them. Buckets are gocloud.dev buckets backed
// by fileblob directories under a root.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gcblob "gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

const (
	BucketFiles   = "investigation-files"
	BucketReports = "reports"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrInvalidPath = errors.New("invalid object path")
	ErrNoBucket    = errors.New("unknown bucket")
)

// Object describes a stored file.
type Object struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
}

// LocalStore keeps each bucket as a fileblob directory under root.
type LocalStore struct {
	root    string
	baseURL string
	buckets map[string]*gcblob.Bucket
}

// NewLocalStore opens a bucket directory per name under root, creating it if
// needed. Public URLs are baseURL + "/files/<bucket>/<path>".
func NewLocalStore(root, baseURL string, buckets ...string) (*LocalStore, error) {
	if len(buckets) == 0 {
		buckets = []string{BucketFiles, BucketReports}
	}
	s := &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		buckets: make(map[string]*gcblob.Bucket, len(buckets)),
	}
	for _, name := range buckets {
		b, err := fileblob.OpenBucket(filepath.Join(root, name), &fileblob.Options{CreateDir: true, NoTempDir: true})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening bucket %s: %w", name, err)
		}
		s.buckets[name] = b
	}
	return s, nil
}

// Root is the directory that holds the buckets.
func (s *LocalStore) Root() string { return s.root }

// Close releases every bucket.
func (s *LocalStore) Close() error {
	var errs []error
	for _, b := range s.buckets {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

func (s *LocalStore) bucket(bucket, name string) (*gcblob.Bucket, error) {
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBucket, bucket)
	}
	clean := path.Clean("/" + name)
	if name == "" || clean == "/" || clean != "/"+name {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return b, nil
}

func notFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

// Put writes r to bucket/name. Without upsert an existing object yields
// ErrExists.
func (s *LocalStore) Put(ctx context.Context, bucket, name string, r io.Reader, upsert bool) (Object, error) {
	b, err := s.bucket(bucket, name)
	if err != nil {
		return Object{}, err
	}
	if !upsert {
		exists, err := b.Exists(ctx, name)
		if err != nil {
			return Object{}, fmt.Errorf("checking %s/%s: %w", bucket, name, err)
		}
		if exists {
			return Object{}, fmt.Errorf("%w: %s/%s", ErrExists, bucket, name)
		}
	}

	w, err := b.NewWriter(ctx, name, &gcblob.WriterOptions{ContentType: mime.TypeByExtension(path.Ext(name))})
	if err != nil {
		return Object{}, fmt.Errorf("creating %s/%s: %w", bucket, name, err)
	}
	n, err := io.Copy(w, r)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("writing %s/%s: %w", bucket, name, err)
	}

	return Object{Bucket: bucket, Path: name, URL: s.PublicURL(bucket, name), Size: n}, nil
}

// Open returns a reader for bucket/name.
func (s *LocalStore) Open(ctx context.Context, bucket, name string) (*gcblob.Reader, error) {
	b, err := s.bucket(bucket, name)
	if err != nil {
		return nil, err
	}
	rd, err := b.NewReader(ctx, name, nil)
	if notFound(err) {
		return nil, ErrNotFound
	}
	return rd, err
}

func (s *LocalStore) Delete(ctx context.Context, bucket, name string) error {
	b, err := s.bucket(bucket, name)
	if err != nil {
		return err
	}
	err = b.Delete(ctx, name)
	if notFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *LocalStore) PublicURL(bucket, name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/files/" + bucket + "/" + strings.Join(segments, "/")
}

// ServeObject writes bucket/name to w with its stored content type.
func (s *LocalStore) ServeObject(w http.ResponseWriter, r *http.Request, bucket, name string) {
	rd, err := s.Open(r.Context(), bucket, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rd.Close()

	if ct := rd.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, path.Base(name), rd.ModTime(), rd)
}

// UniqueName builds "<unix-ms>-<random>.<ext>" from an uploaded file name.
func UniqueName(original string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%d-%s", now.UnixMilli(), random)
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), ".")); ext != "" {
		name += "." + ext
	}
	return name
}

// ReportName is the object name of an investigation's PDF report.
func ReportName(investigationID string) string {
	return "report-" + investigationID + ".pdf"
}
