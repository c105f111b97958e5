package documents

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageCount parses data as a PDF and returns its number of pages.
func PageCount(data []byte) (n int, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing pdf: %w", err)
	}
	return r.NumPage(), nil
}
