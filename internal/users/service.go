package users

import (
	"context"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"checkout-zone-backend/internal/platform/apperr"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

func (s *Service) Create(ctx context.Context, in CreateUserRequest) (UserResponse, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" ||
		strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return UserResponse{}, apperr.InvalidRequest("username, email, first_name, last_name are required")
	}
	if !strings.Contains(email, "@") {
		return UserResponse{}, apperr.InvalidRequest("email must be valid")
	}

	role := RoleEmployee
	if in.Role != nil && *in.Role != "" {
		role = Role(strings.ToUpper(*in.Role))
		if !role.Valid() {
			return UserResponse{}, apperr.InvalidRequest("invalid role")
		}
	}

	now := time.Now().UTC()
	u := &User{
		UserID:     ulid.Make().String(),
		Username:   username,
		Email:      email,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Department: in.Department,
		EmployeeID: in.EmployeeID,
		Role:       role,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return UserResponse{}, err
	}
	return toDTO(u), nil
}

func (s *Service) Get(ctx context.Context, userID string) (UserResponse, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return UserResponse{}, err
	}
	return toDTO(u), nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (UserResponse, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return UserResponse{}, err
	}
	return toDTO(u), nil
}

func (s *Service) List(ctx context.Context) ([]UserResponse, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(items))
	for i := range items {
		out = append(out, toDTO(&items[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, userID string, in UpdateUserRequest) (UserResponse, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return UserResponse{}, err
	}
	prev := u.UpdatedAt
	if in.Email != nil {
		e := strings.TrimSpace(*in.Email)
		if e == "" || !strings.Contains(e, "@") {
			return UserResponse{}, apperr.InvalidRequest("email must be valid")
		}
		u.Email = e
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Department != nil {
		u.Department = in.Department
	}
	if in.EmployeeID != nil {
		u.EmployeeID = in.EmployeeID
	}
	if in.Role != nil {
		r := Role(strings.ToUpper(*in.Role))
		if !r.Valid() {
			return UserResponse{}, apperr.InvalidRequest("invalid role")
		}
		u.Role = r
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	u.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, u, prev); err != nil {
		return UserResponse{}, err
	}
	return toDTO(u), nil
}

// Deactivate: 論理削除。貸出履歴が参照するため物理削除はしない。
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active {
		return apperr.InvalidState("user is already inactive")
	}
	prev := u.UpdatedAt
	u.Active = false
	u.UpdatedAt = time.Now().UTC()
	return s.store.Update(ctx, u, prev)
}

// RequireActive: ID解決と在籍チェック。checkout 側の呼び出し前提条件をここで担保する。
func (s *Service) RequireActive(ctx context.Context, userID string) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.InvalidRequest("user " + u.Username + " is inactive")
	}
	return u, nil
}
