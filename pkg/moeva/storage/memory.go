package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps run records in process memory. Useful for tests and for
// runs where persistence is not requested.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string]RunRecord{}}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) SaveRun(_ context.Context, record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[record.ID] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.runs[id]
	if !ok {
		return RunRecord{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, experiment string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RunRecord
	for _, record := range s.runs {
		if record.Experiment == experiment {
			out = append(out, cloneRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneRecord(r RunRecord) RunRecord {
	out := r
	out.SuccessRates = append([]float64(nil), r.SuccessRates...)
	return out
}
