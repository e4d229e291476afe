package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// schemaVersion is the current metadata schema version.
const schemaVersion = 1

// SQLiteMetadataStore persists enriched requirements and their business rules
// in SQLite. WAL mode allows queries to proceed while ingestion writes.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens or creates the metadata database at path.
// Empty path creates an in-memory database for testing.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if needed.
func (s *SQLiteMetadataStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requirements (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		text          TEXT NOT NULL,
		source_type   TEXT NOT NULL DEFAULT '',
		priority      TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT '',
		tags          TEXT NOT NULL DEFAULT '',
		custom_fields TEXT NOT NULL DEFAULT '{}',
		project_id    TEXT NOT NULL DEFAULT '',
		tokens        TEXT NOT NULL DEFAULT '[]',
		entities      TEXT NOT NULL DEFAULT '[]',
		category      TEXT NOT NULL DEFAULT '',
		confidence    REAL NOT NULL DEFAULT 0,
		ingested_at   INTEGER NOT NULL,
		enriched_at   INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS business_rules (
		requirement_id TEXT NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
		kind           TEXT NOT NULL,
		condition      TEXT NOT NULL,
		action         TEXT NOT NULL DEFAULT '',
		confidence     REAL NOT NULL,
		span_start     INTEGER NOT NULL DEFAULT 0,
		span_end       INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_rules_requirement ON business_rules(requirement_id);
	CREATE INDEX IF NOT EXISTS idx_requirements_category ON requirements(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_info").Scan(&count); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("failed to write schema version: %w", err)
		}
	}
	return nil
}

// SaveRequirements upserts fully-enriched requirements with their rules.
// Replace semantics: re-ingesting an id overwrites the prior enrichment.
func (s *SQLiteMetadataStore) SaveRequirements(ctx context.Context, reqs []*Requirement) error {
	if len(reqs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reqStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO requirements
		(id, name, text, source_type, priority, status, tags, custom_fields,
		 project_id, tokens, entities, category, confidence, ingested_at, enriched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare requirement statement: %w", err)
	}
	defer func() { _ = reqStmt.Close() }()

	ruleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO business_rules
		(requirement_id, kind, condition, action, confidence, span_start, span_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rule statement: %w", err)
	}
	defer func() { _ = ruleStmt.Close() }()

	for _, req := range reqs {
		customJSON, err := json.Marshal(orEmptyMap(req.CustomFields))
		if err != nil {
			return fmt.Errorf("marshal custom fields for %s: %w", req.ID, err)
		}
		tokensJSON, err := json.Marshal(orEmptySlice(req.Tokens))
		if err != nil {
			return fmt.Errorf("marshal tokens for %s: %w", req.ID, err)
		}
		entitiesJSON, err := json.Marshal(orEmptyEntities(req.Entities))
		if err != nil {
			return fmt.Errorf("marshal entities for %s: %w", req.ID, err)
		}

		if _, err := reqStmt.ExecContext(ctx,
			req.ID, req.Name, req.Text, req.SourceType, req.Priority, req.Status,
			strings.Join(req.Tags, ","), string(customJSON), req.ProjectID,
			string(tokensJSON), string(entitiesJSON),
			string(req.Category), req.Confidence,
			req.IngestedAt.Unix(), req.EnrichedAt.Unix(),
		); err != nil {
			return fmt.Errorf("save requirement %s: %w", req.ID, err)
		}

		// Replace rules wholesale with their parent
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM business_rules WHERE requirement_id = ?", req.ID); err != nil {
			return fmt.Errorf("clear rules for %s: %w", req.ID, err)
		}
		for _, rule := range req.Rules {
			if _, err := ruleStmt.ExecContext(ctx,
				req.ID, string(rule.Kind), rule.Condition, rule.Action,
				rule.Confidence, rule.Start, rule.End,
			); err != nil {
				return fmt.Errorf("save rule for %s: %w", req.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRequirement returns one requirement with its rules, or nil if absent.
func (s *SQLiteMetadataStore) GetRequirement(ctx context.Context, id string) (*Requirement, error) {
	reqs, err := s.GetRequirements(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[0], nil
}

// GetRequirements batch-fetches requirements by ID, preserving input order.
func (s *SQLiteMetadataStore) GetRequirements(ctx context.Context, ids []string) ([]*Requirement, error) {
	if len(ids) == 0 {
		return []*Requirement{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, text, source_type, priority, status, tags, custom_fields,
		       project_id, tokens, entities, category, confidence, ingested_at, enriched_at
		FROM requirements WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Requirement, len(ids))
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		byID[req.ID] = req
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}

	if err := s.attachRules(ctx, byID); err != nil {
		return nil, err
	}

	// Preserve input order; missing IDs are skipped
	result := make([]*Requirement, 0, len(byID))
	for _, id := range ids {
		if req, ok := byID[id]; ok {
			result = append(result, req)
		}
	}
	return result, nil
}

// attachRules loads the business rules for every requirement in byID.
func (s *SQLiteMetadataStore) attachRules(ctx context.Context, byID map[string]*Requirement) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]any, 0, len(byID))
	placeholders := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
		placeholders = append(placeholders, "?")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT requirement_id, kind, condition, action, confidence, span_start, span_end
		FROM business_rules WHERE requirement_id IN (%s)
		ORDER BY confidence DESC`, strings.Join(placeholders, ",")), ids...)
	if err != nil {
		return fmt.Errorf("query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var reqID, kind string
		rule := &BusinessRule{}
		if err := rows.Scan(&reqID, &kind, &rule.Condition, &rule.Action,
			&rule.Confidence, &rule.Start, &rule.End); err != nil {
			return fmt.Errorf("scan rule: %w", err)
		}
		rule.Kind = RuleKind(kind)
		if req, ok := byID[reqID]; ok {
			req.Rules = append(req.Rules, rule)
		}
	}
	return rows.Err()
}

// ListRules returns all stored business rules with their parent requirement IDs.
func (s *SQLiteMetadataStore) ListRules(ctx context.Context) ([]*StoredRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT requirement_id, kind, condition, action, confidence, span_start, span_end
		FROM business_rules
		ORDER BY requirement_id, confidence DESC`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*StoredRule
	for rows.Next() {
		var reqID, kind string
		var rule BusinessRule
		if err := rows.Scan(&reqID, &kind, &rule.Condition, &rule.Action,
			&rule.Confidence, &rule.Start, &rule.End); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Kind = RuleKind(kind)
		result = append(result, &StoredRule{RequirementID: reqID, Rule: rule})
	}
	return result, rows.Err()
}

// DeleteRequirement removes a requirement and its rules. Absent is a no-op.
func (s *SQLiteMetadataStore) DeleteRequirement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM requirements WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete requirement %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored requirements.
func (s *SQLiteMetadataStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requirements").Scan(&count); err != nil {
		return 0, fmt.Errorf("count requirements: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanRequirement reads a requirement row.
func scanRequirement(rows *sql.Rows) (*Requirement, error) {
	var (
		req                                  Requirement
		tags, customJSON, tokensJSON, entJSON string
		category                             string
		ingestedAt, enrichedAt               int64
	)
	if err := rows.Scan(&req.ID, &req.Name, &req.Text, &req.SourceType,
		&req.Priority, &req.Status, &tags, &customJSON, &req.ProjectID,
		&tokensJSON, &entJSON, &category, &req.Confidence,
		&ingestedAt, &enrichedAt); err != nil {
		return nil, fmt.Errorf("scan requirement: %w", err)
	}

	if tags != "" {
		req.Tags = strings.Split(tags, ",")
	}
	if err := json.Unmarshal([]byte(customJSON), &req.CustomFields); err != nil {
		return nil, fmt.Errorf("unmarshal custom fields: %w", err)
	}
	if err := json.Unmarshal([]byte(tokensJSON), &req.Tokens); err != nil {
		return nil, fmt.Errorf("unmarshal tokens: %w", err)
	}
	if err := json.Unmarshal([]byte(entJSON), &req.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}

	req.Category = Category(category)
	req.IngestedAt = time.Unix(ingestedAt, 0).UTC()
	if enrichedAt > 0 {
		req.EnrichedAt = time.Unix(enrichedAt, 0).UTC()
	}
	return &req, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyEntities(e []Entity) []Entity {
	if e == nil {
		return []Entity{}
	}
	return e
}
