// Package source loads requirement records from files and remote
// requirements-management APIs. Readers produce raw store.Requirement
// values; enrichment happens downstream in the pipeline.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

// ReadResult is the outcome of reading one file: parsed records plus counts
// of rows skipped for being empty or malformed. Skips are logged, never
// fatal.
type ReadResult struct {
	Requirements []*store.Requirement
	Skipped      int
}

// ReadFile parses a requirements file, dispatching on extension.
// Supported: .csv, .json, .txt, .md.
func ReadFile(path string, cfg config.IngestConfig) (*ReadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeFileNotFound, "cannot read "+path, err)
	}
	if info.IsDir() {
		return nil, lenserr.New(lenserr.ErrCodeInvalidInput, path+" is a directory", nil)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path, cfg)
	case ".json":
		return readJSON(path, cfg)
	case ".txt", ".md":
		return readText(path, cfg)
	default:
		return nil, lenserr.New(lenserr.ErrCodeFileUnsupported,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil).
			WithSuggestion("supported formats: .csv, .json, .txt, .md")
	}
}

// rowBuilder accumulates per-file state for turning raw field maps into
// requirements: auto-generated ids, skip accounting, source labeling.
type rowBuilder struct {
	cfg        config.IngestConfig
	sourceType string
	path       string
	nextAutoID int
	skipped    int
	seen       map[string]bool
}

func newRowBuilder(path, sourceType string, cfg config.IngestConfig) *rowBuilder {
	return &rowBuilder{
		cfg:        cfg,
		sourceType: sourceType,
		path:       path,
		nextAutoID: 1,
		seen:       make(map[string]bool),
	}
}

// build turns one record's field map into a Requirement, or nil when the
// row must be skipped.
func (b *rowBuilder) build(rowNum int, fields map[string]string) *store.Requirement {
	m := b.cfg.Mapping

	text := strings.TrimSpace(pick(fields, m.Description, "description", "text"))
	if text == "" && b.cfg.SkipEmpty {
		b.skip(rowNum, "empty description")
		return nil
	}

	id := strings.TrimSpace(pick(fields, m.ID, "id"))
	if id == "" {
		if !b.cfg.AutoGenerateIDs {
			b.skip(rowNum, "missing id")
			return nil
		}
		id = b.generateID()
	}
	if b.seen[id] {
		b.skip(rowNum, "duplicate id "+id)
		return nil
	}
	b.seen[id] = true

	reqType := pick(fields, m.Type, "type")
	if reqType == "" {
		reqType = b.cfg.DefaultType
	}

	req := &store.Requirement{
		ID:         id,
		Name:       strings.TrimSpace(pick(fields, m.Name, "name", "title")),
		Text:       text,
		SourceType: b.sourceType,
		Priority:   pick(fields, m.Priority, "priority"),
		Status:     pick(fields, m.Status, "status"),
		Tags:       splitTags(pick(fields, m.Tags, "tags")),
		IngestedAt: time.Now().UTC(),
	}
	if reqType != "" {
		req.CustomFields = map[string]string{"type": reqType}
	}

	// Everything not claimed by the mapping rides along as a custom field.
	claimed := map[string]bool{}
	for _, col := range []string{m.ID, m.Name, m.Description, m.Type, m.Priority, m.Status, m.Tags,
		"id", "name", "title", "description", "text", "type", "priority", "status", "tags"} {
		if col != "" {
			claimed[strings.ToLower(col)] = true
		}
	}
	for k, v := range fields {
		if claimed[strings.ToLower(k)] || strings.TrimSpace(v) == "" {
			continue
		}
		if req.CustomFields == nil {
			req.CustomFields = map[string]string{}
		}
		req.CustomFields[k] = v
	}

	return req
}

func (b *rowBuilder) generateID() string {
	for {
		id := fmt.Sprintf("REQ-%04d", b.nextAutoID)
		b.nextAutoID++
		if !b.seen[id] {
			return id
		}
	}
}

func (b *rowBuilder) skip(rowNum int, reason string) {
	b.skipped++
	slog.Warn("skipping record", "file", b.path, "row", rowNum, "reason", reason)
}

// pick returns the first non-empty field among the mapped column and its
// conventional fallbacks. Lookup is case-insensitive.
func pick(fields map[string]string, names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, ok := fields[name]; ok && v != "" {
			return v
		}
		for k, v := range fields {
			if strings.EqualFold(k, name) && v != "" {
				return v
			}
		}
	}
	return ""
}

// splitTags splits a delimited tag field on commas or semicolons.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ";", ",")
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
