package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore implements VectorStore with exact brute-force cosine search.
// It is the reference backend: correct for any corpus size, linear per query.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	config  VectorStoreConfig
	closed  bool
}

// memorySnapshot is the gob-encoded persistence format.
type memorySnapshot struct {
	Vectors map[string][]float32
	Config  VectorStoreConfig
}

// NewMemoryStore creates a brute-force in-memory vector store.
func NewMemoryStore(cfg VectorStoreConfig) *MemoryStore {
	return &MemoryStore{
		vectors: make(map[string][]float32),
		config:  cfg,
	}
}

// Add inserts vectors with their IDs. Existing IDs are replaced.
func (s *MemoryStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		s.vectors[id] = vec
	}

	return nil
}

// Search scans all vectors and returns the k most similar by cosine similarity.
func (s *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || len(s.vectors) == 0 {
		return []*VectorResult{}, nil
	}

	results := make([]*VectorResult, 0, len(s.vectors))
	for id, vec := range s.vectors {
		sim := cosineSimilarity(query, vec)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: float32(1.0 - sim),
			Score:    similarityToScore(sim),
		})
	}

	// Score descending, ties by ID ascending for determinism.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes vectors by ID. Absent IDs are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// AllIDs returns all vector IDs in the store.
func (s *MemoryStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	return ids
}

// Contains checks if ID exists.
func (s *MemoryStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, ok := s.vectors[id]
	return ok
}

// Count returns number of vectors.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.vectors)
}

// Save persists the store to disk (temp file + atomic rename).
func (s *MemoryStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}

	snap := memorySnapshot{Vectors: s.vectors, Config: s.config}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode store: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close store file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load loads the store from disk.
func (s *MemoryStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var snap memorySnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode store: %w", err)
	}

	s.vectors = snap.Vectors
	s.config = snap.Config
	return nil
}

// Close releases resources.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.vectors = nil
	return nil
}

// Verify interface implementation
var _ VectorStore = (*MemoryStore)(nil)
