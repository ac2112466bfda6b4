package equipment

import (
	"context"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"checkout-zone-backend/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

// Service は機材カタログの管理とステータス遷移の窓口。
// AVAILABLE⇔RESERVED の遷移はここでは扱わない（checkout 側が Store の台帳APIを直接叩く）。
type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// Store は台帳APIを checkout 側へ渡すためのアクセサ
func (s *Service) Store() Store { return s.store }

func (s *Service) Create(ctx context.Context, in CreateEquipmentRequest) (EquipmentResponse, error) {
	if strings.TrimSpace(in.InternalID) == "" || strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Type) == "" {
		return EquipmentResponse{}, apperr.InvalidRequest("internal_id, name, type are required")
	}

	cond := CondGood
	if in.Condition != nil && *in.Condition != "" {
		cond = Condition(strings.ToUpper(*in.Condition))
		if !cond.Valid() {
			return EquipmentResponse{}, apperr.InvalidRequest("invalid condition")
		}
	}

	var acqDate *time.Time
	if in.AcquisitionDate != nil && *in.AcquisitionDate != "" {
		t, err := time.Parse(dateLayout, *in.AcquisitionDate)
		if err != nil {
			return EquipmentResponse{}, apperr.InvalidRequest("invalid acquisition_date format, expected YYYY-MM-DD")
		}
		acqDate = &t
	}

	now := time.Now().UTC()
	e := &Equipment{
		EquipmentID:     ulid.Make().String(),
		InternalID:      strings.TrimSpace(in.InternalID),
		SerialNumber:    in.SerialNumber,
		Name:            strings.TrimSpace(in.Name),
		Model:           in.Model,
		Brand:           in.Brand,
		Type:            strings.TrimSpace(in.Type),
		Condition:       cond,
		Status:          StatusAvailable,
		Location:        in.Location,
		AcquisitionDate: acqDate,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return EquipmentResponse{}, err
	}
	return toDTO(e), nil
}

func (s *Service) Get(ctx context.Context, equipmentID string) (EquipmentResponse, error) {
	e, err := s.store.GetByID(ctx, equipmentID)
	if err != nil {
		return EquipmentResponse{}, err
	}
	return toDTO(e), nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]EquipmentResponse, error) {
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]EquipmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toDTO(&items[i]))
	}
	return out, nil
}

func (s *Service) ListAvailable(ctx context.Context) ([]EquipmentResponse, error) {
	st := StatusAvailable
	return s.List(ctx, Filter{Status: &st})
}

func (s *Service) Update(ctx context.Context, equipmentID string, in UpdateEquipmentRequest) (EquipmentResponse, error) {
	e, err := s.store.GetByID(ctx, equipmentID)
	if err != nil {
		return EquipmentResponse{}, err
	}

	if in.SerialNumber != nil {
		e.SerialNumber = in.SerialNumber
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return EquipmentResponse{}, apperr.InvalidRequest("name must not be empty")
		}
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Model != nil {
		e.Model = in.Model
	}
	if in.Brand != nil {
		e.Brand = in.Brand
	}
	if in.Type != nil {
		if strings.TrimSpace(*in.Type) == "" {
			return EquipmentResponse{}, apperr.InvalidRequest("type must not be empty")
		}
		e.Type = strings.TrimSpace(*in.Type)
	}
	if in.Condition != nil {
		c := Condition(strings.ToUpper(*in.Condition))
		if !c.Valid() {
			return EquipmentResponse{}, apperr.InvalidRequest("invalid condition")
		}
		e.Condition = c
	}
	if in.Location != nil {
		e.Location = in.Location
	}
	if in.Notes != nil {
		e.Notes = in.Notes
	}

	if err := s.store.Update(ctx, e); err != nil {
		return EquipmentResponse{}, err
	}

	// status 変更は CAS で別立て（RESERVED は台帳専用なので指定不可）
	if in.Status != nil {
		to := Status(strings.ToUpper(*in.Status))
		if to != StatusAvailable && to != StatusInMaintenance {
			return EquipmentResponse{}, apperr.InvalidRequest("status must be AVAILABLE or IN_MAINTENANCE")
		}
		if e.Status == StatusReserved {
			return EquipmentResponse{}, apperr.InvalidState("equipment is on loan")
		}
		if e.Status != to {
			if err := s.store.SetStatus(ctx, equipmentID, e.Status, to); err != nil {
				return EquipmentResponse{}, err
			}
		}
	}

	out, err := s.store.GetByID(ctx, equipmentID)
	if err != nil {
		return EquipmentResponse{}, err
	}
	return toDTO(out), nil
}

// Retire: 貸出中でない機材を廃棄状態にする
func (s *Service) Retire(ctx context.Context, equipmentID string) error {
	e, err := s.store.GetByID(ctx, equipmentID)
	if err != nil {
		return err
	}
	switch e.Status {
	case StatusRetired:
		return apperr.InvalidState("equipment is already retired")
	case StatusReserved:
		return apperr.InvalidState("equipment is on loan")
	}
	return s.store.SetStatus(ctx, equipmentID, e.Status, StatusRetired)
}
