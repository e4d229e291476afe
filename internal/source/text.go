package source

import (
	"bufio"
	"os"
	"strings"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

// readText parses a plain-text or markdown file: one requirement per
// non-empty paragraph (blank-line delimited). Ids are always generated;
// markdown headers become the requirement name for the paragraphs below.
func readText(path string, cfg config.IngestConfig) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeFileNotFound, "cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	// Text files carry no id column; generation is the only option.
	cfg.AutoGenerateIDs = true

	b := newRowBuilder(path, "text", cfg)
	var reqs []*store.Requirement

	var paragraph []string
	currentName := ""
	rowNum := 0

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		rowNum++
		text := strings.TrimSpace(strings.Join(paragraph, " "))
		paragraph = paragraph[:0]
		if text == "" {
			return
		}
		fields := map[string]string{"description": text}
		if currentName != "" {
			fields["name"] = currentName
		}
		if req := b.build(rowNum, fields); req != nil {
			reqs = append(reqs, req)
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#"):
			flush()
			currentName = strings.TrimSpace(strings.TrimLeft(line, "# "))
		default:
			paragraph = append(paragraph, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, lenserr.MalformedRecordError("error reading "+path, err)
	}
	flush()

	return &ReadResult{Requirements: reqs, Skipped: b.skipped}, nil
}
