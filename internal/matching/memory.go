package matching

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps profiles, preference vectors and matches in process.
// It backs the "memory" preference store in development and the unit tests.
type MemoryStore struct {
	mu          sync.RWMutex
	profiles    map[int64]*Profile
	preferences map[int64]*PreferenceVector
	matches     map[[2]int64]*MatchRecord
	nextMatchID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:    make(map[int64]*Profile),
		preferences: make(map[int64]*PreferenceVector),
		matches:     make(map[[2]int64]*MatchRecord),
	}
}

// PutProfile inserts or replaces a profile.
func (s *MemoryStore) PutProfile(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p.Clone()
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListCandidates(ctx context.Context, userID int64, filter CandidateFilter) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := NewIDSet(filter.ExcludeIDs...)
	excluded[userID] = struct{}{}

	ids := make([]int64, 0, len(s.profiles))
	for id := range s.profiles {
		if !excluded.Has(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Profile, 0, len(ids))
	for _, id := range ids {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, s.profiles[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) UpdateMetrics(ctx context.Context, userID int64, fn func(m *ProfileMetrics)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	if p.Metrics == nil {
		m := DefaultMetrics()
		p.Metrics = &m
	}
	fn(p.Metrics)
	return nil
}

func (s *MemoryStore) TouchLastActive(ctx context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	p.LastActive = &at
	return nil
}

func (s *MemoryStore) GetPreferences(ctx context.Context, userID int64) (*PreferenceVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SavePreferences(ctx context.Context, p *PreferenceVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if current, ok := s.preferences[p.UserID]; ok {
		stored = current.Version
	}
	if stored != p.Version {
		return ErrVersionConflict
	}

	p.Version++
	s.preferences[p.UserID] = p.Clone()
	return nil
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, userA, userB int64, at time.Time) (*MatchRecord, bool, error) {
	a, b := PairKey(userA, userB)
	key := [2]int64{a, b}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.matches[key]; ok {
		m := *existing
		return &m, false, nil
	}

	s.nextMatchID++
	rec := &MatchRecord{ID: s.nextMatchID, UserA: a, UserB: b, CreatedAt: at, Active: true}
	s.matches[key] = rec
	m := *rec
	return &m, true, nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, userID int64, activeOnly bool) ([]*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*MatchRecord, 0)
	for _, rec := range s.matches {
		if rec.UserA != userID && rec.UserB != userID {
			continue
		}
		if activeOnly && !rec.Active {
			continue
		}
		m := *rec
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
