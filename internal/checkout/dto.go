package checkout

import (
	"time"

	"checkout-zone-backend/internal/equipment"
)

// 貸出申請リクエスト
type CreateRequestInput struct {
	UserID       string   `json:"user_id" binding:"required"`
	EquipmentIDs []string `json:"equipment_ids" binding:"required"`
	Purpose      *string  `json:"purpose,omitempty"`
	// "2006-01-02" 形式
	NeededBy *string `json:"needed_by,omitempty"`
}

// 承認／却下リクエスト
type DecisionInput struct {
	ApproverID string  `json:"approver_id" binding:"required"`
	Notes      *string `json:"notes,omitempty"`
}

// 払出リクエスト
type FulfillInput struct {
	ManagerID string `json:"manager_id" binding:"required"`
	// "2006-01-02" 形式
	ExpectedReturnDate *string `json:"expected_return_date,omitempty"`
}

// 返却リクエスト
type ReturnInput struct {
	ManagerID string  `json:"manager_id" binding:"required"`
	Condition string  `json:"condition" binding:"required"`
	Notes     *string `json:"notes,omitempty"`
}

// 申請レスポンス
type RequestResponse struct {
	RequestID     string        `json:"request_id"`
	RequestedBy   string        `json:"requested_by"`
	EquipmentIDs  []string      `json:"equipment_ids"`
	Purpose       *string       `json:"purpose,omitempty"`
	NeededBy      *time.Time    `json:"needed_by,omitempty"`
	Status        RequestStatus `json:"status"`
	ApprovedBy    *string       `json:"approved_by,omitempty"`
	ApprovalDate  *time.Time    `json:"approval_date,omitempty"`
	ApprovalNotes *string       `json:"approval_notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// 貸出記録レスポンス
type RecordResponse struct {
	RecordID            string               `json:"record_id"`
	UserID              string               `json:"user_id"`
	EquipmentID         string               `json:"equipment_id"`
	RequestID           string               `json:"request_id"`
	CheckoutDate        time.Time            `json:"checkout_date"`
	ExpectedReturnDate  *time.Time           `json:"expected_return_date,omitempty"`
	ActualReturnDate    *time.Time           `json:"actual_return_date,omitempty"`
	ConditionAtCheckout equipment.Condition  `json:"condition_at_checkout"`
	ConditionAtReturn   *equipment.Condition `json:"condition_at_return,omitempty"`
	ReturnNotes         *string              `json:"return_notes,omitempty"`
	CheckedOutBy        string               `json:"checked_out_by"`
	ReceivedBy          *string              `json:"received_by,omitempty"`
	Open                bool                 `json:"open"`
}

func requestToDTO(r *CheckoutRequest) RequestResponse {
	return RequestResponse{
		RequestID:     r.RequestID,
		RequestedBy:   r.RequestedBy,
		EquipmentIDs:  r.EquipmentIDs,
		Purpose:       r.Purpose,
		NeededBy:      r.NeededBy,
		Status:        r.Status,
		ApprovedBy:    r.ApprovedBy,
		ApprovalDate:  r.ApprovalDate,
		ApprovalNotes: r.ApprovalNotes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func recordToDTO(r *CheckoutRecord) RecordResponse {
	return RecordResponse{
		RecordID:            r.RecordID,
		UserID:              r.UserID,
		EquipmentID:         r.EquipmentID,
		RequestID:           r.RequestID,
		CheckoutDate:        r.CheckoutDate,
		ExpectedReturnDate:  r.ExpectedReturnDate,
		ActualReturnDate:    r.ActualReturnDate,
		ConditionAtCheckout: r.ConditionAtCheckout,
		ConditionAtReturn:   r.ConditionAtReturn,
		ReturnNotes:         r.ReturnNotes,
		CheckedOutBy:        r.CheckedOutBy,
		ReceivedBy:          r.ReceivedBy,
		Open:                r.Open(),
	}
}
