package checkout

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New() string
}

type ulidGen struct{}

func (ulidGen) New() string { return ulid.Make().String() }

// Ledger は資産台帳。equipment.Store がそのまま満たす。
// Reserve が二重貸出を防ぐ唯一の同期点。
type Ledger interface {
	Reserve(ctx context.Context, equipmentID string) error
	Release(ctx context.Context, equipmentID string, cond equipment.Condition) error
	ConditionOf(ctx context.Context, equipmentID string) (equipment.Condition, error)
	AvailabilityOf(ctx context.Context, equipmentID string) (equipment.Status, error)
}

// ===== Service本体 =====

// Service は貸出申請のライフサイクルエンジン。
// PENDING → APPROVED → COMPLETED / PENDING → REJECTED 以外の遷移は存在しない。
type Service struct {
	store  Store
	ledger Ledger
	clock  Clock
	id     IDGen
}

func NewService(store Store, ledger Ledger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		clock:  realClock{},
		id:     ulidGen{},
	}
}

// 申請作成。機材集合は空不可・重複は除去。
// 可用性はこの時点のスナップショット確認のみで、予約はしない。
func (s *Service) Submit(ctx context.Context, in CreateRequestInput) (RequestResponse, error) {
	if in.UserID == "" {
		return RequestResponse{}, apperr.InvalidRequest("user_id is required")
	}
	ids := normalizeEquipmentIDs(in.EquipmentIDs)
	if len(ids) == 0 {
		return RequestResponse{}, apperr.InvalidRequest("equipment_ids must not be empty")
	}

	var neededBy *time.Time
	if in.NeededBy != nil && *in.NeededBy != "" {
		t, err := time.Parse(dateLayout, *in.NeededBy)
		if err != nil {
			return RequestResponse{}, apperr.InvalidRequest("invalid needed_by format, expected YYYY-MM-DD")
		}
		neededBy = &t
	}

	// 提出時点の可用性チェック
	for _, eqID := range ids {
		st, err := s.ledger.AvailabilityOf(ctx, eqID)
		if err != nil {
			return RequestResponse{}, err
		}
		if st != equipment.StatusAvailable {
			return RequestResponse{}, apperr.InvalidRequest("equipment " + eqID + " is not available")
		}
	}

	now := s.clock.Now()
	req := &CheckoutRequest{
		RequestID:    s.id.New(),
		RequestedBy:  in.UserID,
		EquipmentIDs: ids,
		Purpose:      in.Purpose,
		NeededBy:     neededBy,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertRequest(ctx, req); err != nil {
		return RequestResponse{}, err
	}
	return requestToDTO(req), nil
}

// 承認。提出から決裁までの間に可用性が変わり得るため、ここで再確認する。
// 予約はまだしない（決裁と現物払出を独立に再試行可能にするため）。
func (s *Service) Approve(ctx context.Context, requestID string, in DecisionInput) (RequestResponse, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return RequestResponse{}, err
	}
	if req.Status != StatusPending {
		return RequestResponse{}, apperr.InvalidState("request is " + string(req.Status))
	}

	// 再チェック関門。RETIRED になった機材もここでは Unavailable 扱い。
	for _, eqID := range req.EquipmentIDs {
		st, err := s.ledger.AvailabilityOf(ctx, eqID)
		if err != nil {
			return RequestResponse{}, err
		}
		if st != equipment.StatusAvailable {
			return RequestResponse{}, apperr.Unavailable("equipment " + eqID + " is no longer available")
		}
	}

	if err := s.store.SetDecision(ctx, requestID, StatusApproved, in.ApproverID, s.clock.Now(), in.Notes); err != nil {
		return RequestResponse{}, err
	}
	return s.getRequestDTO(ctx, requestID)
}

// 却下。機材への副作用はない。
func (s *Service) Reject(ctx context.Context, requestID string, in DecisionInput) (RequestResponse, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return RequestResponse{}, err
	}
	if req.Status != StatusPending {
		return RequestResponse{}, apperr.InvalidState("request is " + string(req.Status))
	}
	if err := s.store.SetDecision(ctx, requestID, StatusRejected, in.ApproverID, s.clock.Now(), in.Notes); err != nil {
		return RequestResponse{}, err
	}
	return s.getRequestDTO(ctx, requestID)
}

// 払出。承認済み申請を機材1点ごとの貸出記録に変換し、機材を予約する。
// 予約は機材ID昇順に取る（重複集合を持つ払出同士のデッドロック回避）。
// 1点でも取れなければ取得済みの予約を全て解放して失敗し、申請は APPROVED のまま残る。
// 成立の確定点は APPROVED→COMPLETED の CAS。冒頭のステータス確認は早期失敗用の
// スナップショットにすぎず、CAS が成立しなければ予約を巻き戻して失敗する。
// これにより同一申請の二重払出は記録を1件も残さない。
func (s *Service) Fulfill(ctx context.Context, requestID string, in FulfillInput) ([]RecordResponse, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusApproved {
		return nil, apperr.InvalidState("request is " + string(req.Status))
	}

	var expected *time.Time
	if in.ExpectedReturnDate != nil && *in.ExpectedReturnDate != "" {
		t, err := time.Parse(dateLayout, *in.ExpectedReturnDate)
		if err != nil {
			return nil, apperr.InvalidRequest("invalid expected_return_date format, expected YYYY-MM-DD")
		}
		expected = &t
	}

	// EquipmentIDs は昇順で保存されている
	reserved := make([]string, 0, len(req.EquipmentIDs))
	rollback := func() {
		for i := len(reserved) - 1; i >= 0; i-- {
			cond, cerr := s.ledger.ConditionOf(ctx, reserved[i])
			if cerr != nil {
				log.Printf("fulfill rollback: failed to read condition of %s: %v", reserved[i], cerr)
				continue
			}
			if rerr := s.ledger.Release(ctx, reserved[i], cond); rerr != nil {
				log.Printf("fulfill rollback: failed to release %s: %v", reserved[i], rerr)
			}
		}
	}

	for _, eqID := range req.EquipmentIDs {
		if err := s.ledger.Reserve(ctx, eqID); err != nil {
			rollback()
			return nil, err
		}
		reserved = append(reserved, eqID)
	}

	now := s.clock.Now()
	recs := make([]*CheckoutRecord, 0, len(req.EquipmentIDs))
	for _, eqID := range req.EquipmentIDs {
		cond, err := s.ledger.ConditionOf(ctx, eqID)
		if err != nil {
			rollback()
			return nil, err
		}
		recs = append(recs, &CheckoutRecord{
			RecordID:            s.id.New(),
			UserID:              req.RequestedBy,
			EquipmentID:         eqID,
			RequestID:           req.RequestID,
			CheckoutDate:        now,
			ExpectedReturnDate:  expected,
			ConditionAtCheckout: cond,
			CheckedOutBy:        in.ManagerID,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	if err := s.store.CompleteWithRecords(ctx, requestID, now, recs); err != nil {
		rollback()
		return nil, err
	}

	out := make([]RecordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordToDTO(r))
	}
	return out, nil
}

// 返却。記録を閉じ、返却時の状態評価を新基準として機材を台帳へ戻す。
func (s *Service) Return(ctx context.Context, recordID string, in ReturnInput) (RecordResponse, error) {
	cond := equipment.Condition(strings.ToUpper(in.Condition))
	if !cond.Valid() {
		return RecordResponse{}, apperr.InvalidRequest("invalid condition")
	}

	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return RecordResponse{}, err
	}
	if !rec.Open() {
		return RecordResponse{}, apperr.InvalidState("record is already closed")
	}

	now := s.clock.Now()
	if err := s.store.CloseRecord(ctx, recordID, now, cond, in.Notes, in.ManagerID); err != nil {
		return RecordResponse{}, err
	}

	if err := s.ledger.Release(ctx, rec.EquipmentID, cond); err != nil {
		// 台帳へ反映できなければ記録の閉鎖を取り消し、返却をやり直せる状態に戻す
		if rerr := s.store.ReopenRecord(ctx, recordID, s.clock.Now()); rerr != nil {
			log.Printf("return: failed to reopen record %s after release failure: %v", recordID, rerr)
		}
		return RecordResponse{}, err
	}

	closed, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return RecordResponse{}, err
	}
	return recordToDTO(closed), nil
}

// ---- 参照系 ----

func (s *Service) GetRequest(ctx context.Context, requestID string) (RequestResponse, error) {
	return s.getRequestDTO(ctx, requestID)
}

func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]RequestResponse, error) {
	items, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]RequestResponse, 0, len(items))
	for i := range items {
		out = append(out, requestToDTO(&items[i]))
	}
	return out, nil
}

func (s *Service) GetRecord(ctx context.Context, recordID string) (RecordResponse, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return RecordResponse{}, err
	}
	return recordToDTO(rec), nil
}

// ListOpenRecords: 貸出中の記録。userID が空なら全件。
func (s *Service) ListOpenRecords(ctx context.Context, userID string) ([]RecordResponse, error) {
	f := RecordFilter{OpenOnly: true}
	if userID != "" {
		f.UserID = &userID
	}
	return s.listRecordDTOs(ctx, f)
}

// ListEquipmentHistory: 機材1点の貸出履歴（返却済みも含む）
func (s *Service) ListEquipmentHistory(ctx context.Context, equipmentID string) ([]RecordResponse, error) {
	return s.listRecordDTOs(ctx, RecordFilter{EquipmentID: &equipmentID})
}

// ---- helpers ----

func (s *Service) getRequestDTO(ctx context.Context, requestID string) (RequestResponse, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return RequestResponse{}, err
	}
	return requestToDTO(req), nil
}

func (s *Service) listRecordDTOs(ctx context.Context, f RecordFilter) ([]RecordResponse, error) {
	items, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]RecordResponse, 0, len(items))
	for i := range items {
		out = append(out, recordToDTO(&items[i]))
	}
	return out, nil
}

// 昇順・重複除去。払出時の予約順序もこの並びに従う。
func normalizeEquipmentIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
