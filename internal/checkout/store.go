package checkout

import (
	"context"
	"time"

	"checkout-zone-backend/internal/equipment"
)

// Store は申請と貸出記録の永続化層。
// 状態を進める操作（SetDecision / CompleteWithRecords / CloseRecord）は
// 現在状態を前提条件とする CAS であること。前提が崩れていたら INVALID_STATE。
type Store interface {
	// ---- 申請 ----

	InsertRequest(ctx context.Context, r *CheckoutRequest) error
	GetRequest(ctx context.Context, requestID string) (*CheckoutRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]CheckoutRequest, error)

	// SetDecision: PENDING→APPROVED|REJECTED の CAS。承認者・時刻・メモも書く。
	SetDecision(ctx context.Context, requestID string, to RequestStatus, approvedBy string, at time.Time, notes *string) error

	// CompleteWithRecords: APPROVED→COMPLETED の CAS と貸出記録の挿入を不可分に行う。
	// CAS が成立しなければ記録は1件も書かずに INVALID_STATE。
	// 払出の成立はこの遷移が唯一の確定点。
	CompleteWithRecords(ctx context.Context, requestID string, at time.Time, recs []*CheckoutRecord) error

	// ---- 貸出記録 ----

	GetRecord(ctx context.Context, recordID string) (*CheckoutRecord, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]CheckoutRecord, error)

	// CloseRecord: 返却未済を前提とする CAS。返却日・状態・メモ・受領者を書く。
	CloseRecord(ctx context.Context, recordID string, at time.Time, cond equipment.Condition, notes *string, receivedBy string) error

	// ReopenRecord: 台帳への返却反映に失敗したとき CloseRecord を取り消す補償操作。
	ReopenRecord(ctx context.Context, recordID string, at time.Time) error
}
