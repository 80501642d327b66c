package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

// MemoryStore keeps reports in process memory. It backs development servers
// started without DATABASE_URL; data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]domain.Report
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[uuid.UUID]domain.Report),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func copyReport(r domain.Report) *domain.Report {
	r.Inspection = r.Inspection.Clone()
	return &r
}

func (s *MemoryStore) Create(ctx context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; ok {
		return domain.Conflict("store.create", "report already exists")
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.reports[r.ID] = *copyReport(*r)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, domain.NotFound("store.get", "report", id.String())
	}
	return copyReport(r), nil
}

func (s *MemoryStore) Save(ctx context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; !ok {
		return domain.NotFound("store.save", "report", r.ID.String())
	}
	r.UpdatedAt = s.now()
	s.reports[r.ID] = *copyReport(*r)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ReportSummary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return domain.NotFound("store.delete", "report", id.String())
	}
	delete(s.reports, id)
	return nil
}
