package checkout

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/apperr"
)

// MemoryStore はテストと dev/demo 起動用のインメモリ実装。
// 状態遷移はストア単位のロック内で検査・更新するので CAS になる。
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]CheckoutRequest
	records  map[string]CheckoutRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]CheckoutRequest),
		records:  make(map[string]CheckoutRecord),
	}
}

func copyRequest(r CheckoutRequest) CheckoutRequest {
	cp := r
	cp.EquipmentIDs = append([]string(nil), r.EquipmentIDs...)
	return cp
}

func (s *MemoryStore) InsertRequest(_ context.Context, r *CheckoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.RequestID] = copyRequest(*r)
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*CheckoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("checkout request not found")
	}
	cp := copyRequest(v)
	return &cp, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, f RequestFilter) ([]CheckoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CheckoutRequest, 0, len(s.requests))
	for _, v := range s.requests {
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		if f.UserID != nil && v.RequestedBy != *f.UserID {
			continue
		}
		out = append(out, copyRequest(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetDecision(_ context.Context, id string, to RequestStatus, approvedBy string, at time.Time, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[id]
	if !ok {
		return apperr.NotFound("checkout request not found")
	}
	if !CanTransition(cur.Status, to) || cur.Status != StatusPending {
		return apperr.InvalidState("request is " + string(cur.Status))
	}
	cur.Status = to
	cur.ApprovedBy = &approvedBy
	cur.ApprovalDate = &at
	cur.ApprovalNotes = notes
	cur.UpdatedAt = at
	s.requests[id] = cur
	return nil
}

func (s *MemoryStore) CompleteWithRecords(_ context.Context, id string, at time.Time, recs []*CheckoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[id]
	if !ok {
		return apperr.NotFound("checkout request not found")
	}
	if !CanTransition(cur.Status, StatusCompleted) {
		return apperr.InvalidState("request is " + string(cur.Status))
	}
	cur.Status = StatusCompleted
	cur.UpdatedAt = at
	s.requests[id] = cur
	for _, r := range recs {
		s.records[r.RecordID] = *r
	}
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id string) (*CheckoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[id]
	if !ok {
		return nil, apperr.NotFound("checkout record not found")
	}
	cp := v
	return &cp, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, f RecordFilter) ([]CheckoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CheckoutRecord, 0, len(s.records))
	for _, v := range s.records {
		if f.UserID != nil && v.UserID != *f.UserID {
			continue
		}
		if f.EquipmentID != nil && v.EquipmentID != *f.EquipmentID {
			continue
		}
		if f.OpenOnly && !v.Open() {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckoutDate.Before(out[j].CheckoutDate) })
	return out, nil
}

func (s *MemoryStore) CloseRecord(_ context.Context, id string, at time.Time, cond equipment.Condition, notes *string, receivedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return apperr.NotFound("checkout record not found")
	}
	if !cur.Open() {
		return apperr.InvalidState("record is already closed")
	}
	cur.ActualReturnDate = &at
	cur.ConditionAtReturn = &cond
	cur.ReturnNotes = notes
	cur.ReceivedBy = &receivedBy
	cur.UpdatedAt = at
	s.records[id] = cur
	return nil
}

func (s *MemoryStore) ReopenRecord(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return apperr.NotFound("checkout record not found")
	}
	if cur.Open() {
		return apperr.InvalidState("record is not closed")
	}
	cur.ActualReturnDate = nil
	cur.ConditionAtReturn = nil
	cur.ReturnNotes = nil
	cur.ReceivedBy = nil
	cur.UpdatedAt = at
	s.records[id] = cur
	return nil
}
