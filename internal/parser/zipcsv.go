package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// ParseZipCSV parses the first member of a zip archive as CSV, dropping empty columns
func ParseZipCSV(body []byte, opts CSVOptions) (*table.Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid zip archive: %v", apperrors.ErrSchemaMismatch, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("%w: empty zip archive", apperrors.ErrSchemaMismatch)
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", zr.File[0].Name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", zr.File[0].Name, err)
	}

	opts.DropEmpty = true
	return ParseCSV(data, opts)
}
