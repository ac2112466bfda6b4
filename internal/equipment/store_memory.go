package equipment

import (
	"context"
	"sort"
	"sync"

	"checkout-zone-backend/internal/platform/apperr"
)

// MemoryStore はテストと dev/demo 起動用のインメモリ実装。
// 全操作をストア単位のロックで直列化するため、Reserve の CAS は線形化可能。
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Equipment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Equipment)}
}

func (s *MemoryStore) Insert(_ context.Context, e *Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.items {
		if v.InternalID == e.InternalID {
			return apperr.Conflict("internal_id already exists")
		}
	}
	s.items[e.EquipmentID] = *e
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("equipment not found")
	}
	cp := v
	return &cp, nil
}

func (s *MemoryStore) GetByInternalID(_ context.Context, internalID string) (*Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if v.InternalID == internalID {
			cp := v
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("equipment not found")
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Equipment, 0, len(s.items))
	for _, v := range s.items {
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		if f.Type != nil && v.Type != *f.Type {
			continue
		}
		if f.InternalID != nil && v.InternalID != *f.InternalID {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalID < out[j].InternalID })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, e *Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[e.EquipmentID]
	if !ok {
		return apperr.NotFound("equipment not found")
	}
	// status は Update では触らない
	next := *e
	next.Status = cur.Status
	s.items[e.EquipmentID] = next
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return apperr.NotFound("equipment not found")
	}
	if cur.Status != from {
		return apperr.InvalidState("equipment is " + string(cur.Status))
	}
	cur.Status = to
	s.items[id] = cur
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return apperr.NotFound("equipment not found")
	}
	if cur.Status != StatusAvailable {
		return apperr.Unavailable("equipment " + cur.InternalID + " is " + string(cur.Status))
	}
	cur.Status = StatusReserved
	s.items[id] = cur
	return nil
}

func (s *MemoryStore) Release(_ context.Context, id string, cond Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return apperr.NotFound("equipment not found")
	}
	if cur.Status != StatusReserved {
		return apperr.InvalidState("equipment is not reserved")
	}
	cur.Status = StatusAvailable
	cur.Condition = cond
	s.items[id] = cur
	return nil
}

func (s *MemoryStore) ConditionOf(_ context.Context, id string) (Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return "", apperr.NotFound("equipment not found")
	}
	return v.Condition, nil
}

func (s *MemoryStore) AvailabilityOf(_ context.Context, id string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return "", apperr.NotFound("equipment not found")
	}
	return v.Status, nil
}
