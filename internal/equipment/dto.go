package equipment

import "time"

// 機材登録リクエスト
type CreateEquipmentRequest struct {
	InternalID   string  `json:"internal_id" binding:"required"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Name         string  `json:"name" binding:"required"`
	Model        *string `json:"model,omitempty"`
	Brand        *string `json:"brand,omitempty"`
	Type         string  `json:"type" binding:"required"`
	// 未指定なら GOOD
	Condition *string `json:"condition,omitempty"`
	Location  *string `json:"location,omitempty"`
	// "2006-01-02" 形式
	AcquisitionDate *string `json:"acquisition_date,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// 機材更新リクエスト（nil のフィールドは変更しない）
type UpdateEquipmentRequest struct {
	SerialNumber *string `json:"serial_number,omitempty"`
	Name         *string `json:"name,omitempty"`
	Model        *string `json:"model,omitempty"`
	Brand        *string `json:"brand,omitempty"`
	Type         *string `json:"type,omitempty"`
	Condition    *string `json:"condition,omitempty"`
	// AVAILABLE | IN_MAINTENANCE のみ指定可。RESERVED への遷移は台帳専用。
	Status   *string `json:"status,omitempty"`
	Location *string `json:"location,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// 機材レスポンス
type EquipmentResponse struct {
	EquipmentID     string     `json:"equipment_id"`
	InternalID      string     `json:"internal_id"`
	SerialNumber    *string    `json:"serial_number,omitempty"`
	Name            string     `json:"name"`
	Model           *string    `json:"model,omitempty"`
	Brand           *string    `json:"brand,omitempty"`
	Type            string     `json:"type"`
	Condition       Condition  `json:"condition"`
	Status          Status     `json:"status"`
	Location        *string    `json:"location,omitempty"`
	AcquisitionDate *time.Time `json:"acquisition_date,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toDTO(e *Equipment) EquipmentResponse {
	return EquipmentResponse{
		EquipmentID:     e.EquipmentID,
		InternalID:      e.InternalID,
		SerialNumber:    e.SerialNumber,
		Name:            e.Name,
		Model:           e.Model,
		Brand:           e.Brand,
		Type:            e.Type,
		Condition:       e.Condition,
		Status:          e.Status,
		Location:        e.Location,
		AcquisitionDate: e.AcquisitionDate,
		Notes:           e.Notes,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
