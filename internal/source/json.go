package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

// readJSON parses a JSON file holding an array of record objects, an object
// with a "requirements" array, or a single record object. Record fields are flattened to
// strings; nested objects and arrays are skipped per field, not per record.
func readJSON(path string, cfg config.IngestConfig) (*ReadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeFileNotFound, "cannot read "+path, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, lenserr.MalformedRecordError("cannot parse JSON in "+path, err)
	}

	b := newRowBuilder(path, "json", cfg)
	var reqs []*store.Requirement

	for i, rec := range records {
		fields := flattenRecord(rec)
		if len(fields) == 0 {
			b.skip(i+1, "not an object")
			continue
		}
		if req := b.build(i+1, fields); req != nil {
			reqs = append(reqs, req)
		}
	}

	return &ReadResult{Requirements: reqs, Skipped: b.skipped}, nil
}

// decodeRecords accepts a top-level array, {"requirements": [...]}, or a
// single record object.
func decodeRecords(data []byte) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var wrapper struct {
		Requirements []json.RawMessage `json:"requirements"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Requirements != nil {
		return wrapper.Requirements, nil
	}

	// A lone object without a "requirements" key is one record.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || len(obj) == 0 {
		return nil, fmt.Errorf("expected an array, a \"requirements\" key, or a record object")
	}
	return []json.RawMessage{json.RawMessage(data)}, nil
}

// flattenRecord converts a JSON object to a string field map. Scalars are
// stringified; string arrays join with commas (for tags); anything nested
// is dropped.
func flattenRecord(raw json.RawMessage) map[string]string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = formatNumber(val)
		case bool:
			fields[k] = fmt.Sprintf("%t", val)
		case []any:
			var parts []string
			for _, item := range val {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				fields[k] = strings.Join(parts, ",")
			}
		}
	}
	return fields
}

// formatNumber renders integers without a trailing ".000000".
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
