package corrections

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Record is one human-confirmed correction. Append-only: newer corrections
// with the same normalized description supersede older ones at read time.
type Record struct {
	ID                    string
	CompanyID             string
	DescriptionNormalized string
	CorrectedCategory     string
	Embedding             []float32
	CreatedAt             time.Time
}

// Store is the persistence boundary. SQL, key-value or vector backends all
// satisfy it; readers must tolerate eventually-consistent data.
type Store interface {
	Insert(ctx context.Context, rec *Record) (string, error)
	ListByCompany(ctx context.Context, companyID string) ([]Record, error)
}

// Match is a similarity hit returned to the classifier.
type Match struct {
	Category   string
	Similarity float64
}

// Memory wraps a Store with the embedding computation and a short-lived
// per-company read cache. Correction ingestion happens on a separate path,
// so a match made moments ago may not be visible yet; that is acceptable.
type Memory struct {
	store Store
	cache *gocache.Cache
}

// NewMemory creates a correction memory over the given store.
func NewMemory(store Store) *Memory {
	return &Memory{
		store: store,
		cache: gocache.New(1*time.Minute, 5*time.Minute),
	}
}

// Store appends a correction for a company and invalidates its read cache.
func (m *Memory) Store(ctx context.Context, companyID, description, correctedCategory string) (string, error) {
	normalized := NormalizeText(description)
	rec := &Record{
		ID:                    uuid.NewString(),
		CompanyID:             companyID,
		DescriptionNormalized: normalized,
		CorrectedCategory:     correctedCategory,
		Embedding:             Embed(description),
		CreatedAt:             time.Now().UTC(),
	}
	id, err := m.store.Insert(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("store correction: %w", err)
	}
	m.cache.Delete(companyID)
	return id, nil
}

// FindSimilar returns the topK corrections most similar to the description,
// ordered by descending cosine similarity. Same-description duplicates are
// resolved last-write-wins before scoring.
func (m *Memory) FindSimilar(ctx context.Context, companyID, description string, topK int) ([]Match, error) {
	records, err := m.records(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || topK <= 0 {
		return nil, nil
	}

	query := Embed(description)
	matches := make([]Match, 0, len(records))
	for i := range records {
		matches = append(matches, Match{
			Category:   records[i].CorrectedCategory,
			Similarity: Cosine(query, records[i].Embedding),
		})
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Similarity > matches[b].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) records(ctx context.Context, companyID string) ([]Record, error) {
	if cached, ok := m.cache.Get(companyID); ok {
		return cached.([]Record), nil
	}
	records, err := m.store.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	records = latestPerDescription(records)
	m.cache.Set(companyID, records, gocache.DefaultExpiration)
	return records, nil
}

// latestPerDescription keeps only the newest record for each normalized
// description.
func latestPerDescription(records []Record) []Record {
	latest := make(map[string]Record, len(records))
	for _, r := range records {
		if prev, ok := latest[r.DescriptionNormalized]; !ok || r.CreatedAt.After(prev.CreatedAt) {
			latest[r.DescriptionNormalized] = r
		}
	}
	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	return out
}

// InMemoryStore is a map-backed Store for tests and single-instance runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewInMemoryStore creates an empty in-memory correction store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

func (s *InMemoryStore) Insert(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CompanyID] = append(s.records[rec.CompanyID], *rec)
	return rec.ID, nil
}

func (s *InMemoryStore) ListByCompany(ctx context.Context, companyID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records[companyID]))
	copy(out, s.records[companyID])
	return out, nil
}
