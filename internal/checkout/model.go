package checkout

import (
	"time"

	"checkout-zone-backend/internal/equipment"
)

// RequestStatus は貸出申請の状態
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCompleted RequestStatus = "COMPLETED"
)

// 申請の合法遷移。PENDING へ戻るエッジは存在しない。
var validNext = map[RequestStatus]map[RequestStatus]bool{
	StatusPending:   {StatusApproved: true, StatusRejected: true},
	StatusApproved:  {StatusCompleted: true},
	StatusRejected:  {},
	StatusCompleted: {},
}

func CanTransition(from, to RequestStatus) bool {
	return validNext[from][to]
}

// CheckoutRequest は checkout_requests テーブルの1行を表す。
// 監査のため削除されることはない。
type CheckoutRequest struct {
	RequestID    string
	RequestedBy  string
	EquipmentIDs []string // 昇順・重複なし
	Purpose      *string
	NeededBy     *time.Time
	Status       RequestStatus
	// 承認／却下後にのみ入る
	ApprovedBy    *string
	ApprovalDate  *time.Time
	ApprovalNotes *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CheckoutRecord は checkout_records テーブルの1行を表す。
// 貸出1件 = 機材1点。ActualReturnDate が nil の間は「貸出中」。
// 返却時に一度だけ更新され、以後変更されない。
type CheckoutRecord struct {
	RecordID            string
	UserID              string
	EquipmentID         string
	RequestID           string
	CheckoutDate        time.Time
	ExpectedReturnDate  *time.Time
	ActualReturnDate    *time.Time
	ConditionAtCheckout equipment.Condition
	ConditionAtReturn   *equipment.Condition
	ReturnNotes         *string
	CheckedOutBy        string
	ReceivedBy          *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Open: 返却未済か
func (r *CheckoutRecord) Open() bool { return r.ActualReturnDate == nil }

// 申請の検索条件
type RequestFilter struct {
	Status *RequestStatus
	UserID *string
}

// 貸出記録の検索条件
type RecordFilter struct {
	UserID      *string
	EquipmentID *string
	OpenOnly    bool
}
