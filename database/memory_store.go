package database

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps vectors in process and ranks them by cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	records []StoreRecord
	index   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

func (s *MemoryStore) Name() string {
	return StoreMemory
}

// Add inserts records, replacing any record with the same ID.
func (s *MemoryStore) Add(_ context.Context, records []StoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int) ([]StoreMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]StoreMatch, 0, len(s.records))
	for _, r := range s.records {
		matches = append(matches, StoreMatch{ID: r.ID, Score: cosineSimilarity(vector, r.Vector)})
	}
	// stable so that ties keep insertion order
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
