package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/legitcheck/internal/blob"
)

const maxFileSize = 20 << 20 // 20MB

// maxUploadBody caps a whole multipart upload.
var maxUploadBody int64 = 10 * maxFileSize

var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

type uploadedFile struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// validateFile returns the problem with fh, or "".
func validateFile(fh *multipart.FileHeader) string {
	if fh.Size > maxFileSize {
		return "File size exceeds 20MB limit"
	}
	ct := fh.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "image/") || allowedFileTypes[ct] {
		return ""
	}
	return fmt.Sprintf("File type %s is not allowed", ct)
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Blobs == nil {
			httpError(w, http.StatusServiceUnavailable, "server_error", "file storage is not configured")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":   "File validation failed",
					"details": []string{fmt.Sprintf("Upload exceeds %dMB limit", tooLarge.Limit>>20)},
				})
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart body: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "No files provided")
			return
		}

		var details []string
		for i, fh := range files {
			if problem := validateFile(fh); problem != "" {
				details = append(details, fmt.Sprintf("File %d (%s): %s", i+1, fh.Filename, problem))
			}
		}
		if len(details) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "File validation failed",
				"details": details,
			})
			return
		}

		stored := make([]uploadedFile, 0, len(files))
		for i, fh := range files {
			obj, err := putFile(r.Context(), deps.Blobs, fh)
			if err != nil {
				deps.Logger.Error("storing upload", "file", fh.Filename, "error", err)
				details = append(details, fmt.Sprintf("File %d (%s): %v", i+1, fh.Filename, err))
				continue
			}
			stored = append(stored, uploadedFile{URL: obj.URL, Path: obj.Path})
		}
		if len(details) > 0 {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Some files failed to upload",
				"details": details,
				"partial": stored,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": stored})
	}
}

func putFile(ctx context.Context, store *blob.LocalStore, fh *multipart.FileHeader) (blob.Object, error) {
	f, err := fh.Open()
	if err != nil {
		return blob.Object{}, err
	}
	defer f.Close()
	return store.Put(ctx, blob.BucketFiles, blob.UniqueName(fh.Filename, time.Now()), f, false)
}
