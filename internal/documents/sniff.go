package documents

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
	MediaGIF  = "image/gif"
	MediaWEBP = "image/webp"
	MediaPDF  = "application/pdf"
)

// ErrUnsupported is returned for content the analyzer cannot send to a model.
var ErrUnsupported = errors.New("unsupported file type")

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	magicGIF7 = []byte("GIF87a")
	magicGIF9 = []byte("GIF89a")
	magicRIFF = []byte("RIFF")
	magicWEBP = []byte("WEBP")
	magicPDF  = []byte("%PDF-")
)

// sniffImage matches data against the image magic numbers.
func sniffImage(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return MediaPNG, true
	case bytes.HasPrefix(data, magicJPEG):
		return MediaJPEG, true
	case bytes.HasPrefix(data, magicGIF7), bytes.HasPrefix(data, magicGIF9):
		return MediaGIF, true
	case len(data) >= 12 && bytes.Equal(data[:4], magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return MediaWEBP, true
	}
	return "", false
}

// SniffImage returns the image type of data, defaulting to JPEG.
func SniffImage(data []byte) string {
	if mt, ok := sniffImage(data); ok {
		return mt
	}
	return MediaJPEG
}

// Sniff matches data against every supported magic number.
func Sniff(data []byte) (string, bool) {
	if bytes.HasPrefix(data, magicPDF) {
		return MediaPDF, true
	}
	return sniffImage(data)
}

// ResolveMediaType picks the type sent to the model from the declared
// content type and the payload bytes.
func ResolveMediaType(declared string, data []byte) (string, error) {
	ct := strings.ToLower(declared)
	switch {
	case strings.Contains(ct, "pdf"):
		return MediaPDF, nil
	case strings.Contains(ct, "image"):
		return SniffImage(data), nil
	case ct == "" || strings.HasPrefix(ct, "application/octet-stream"):
		if mt, ok := Sniff(data); ok {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, declared)
}
