package source

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

// readCSV parses a CSV file with a header row. Malformed rows (wrong field
// count, unreadable) are skipped with a warning; they never abort the file.
func readCSV(path string, cfg config.IngestConfig) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeFileNotFound, "cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // row length validated against the header below
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, lenserr.MalformedRecordError("cannot read CSV header in "+path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	b := newRowBuilder(path, "csv", cfg)
	var reqs []*store.Requirement

	for rowNum := 2; ; rowNum++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			b.skip(rowNum, "unparseable row: "+err.Error())
			continue
		}
		if len(row) != len(header) {
			b.skip(rowNum, "column count mismatch")
			continue
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = strings.TrimSpace(row[i])
		}
		if req := b.build(rowNum, fields); req != nil {
			reqs = append(reqs, req)
		}
	}

	return &ReadResult{Requirements: reqs, Skipped: b.skipped}, nil
}
