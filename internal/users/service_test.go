package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-zone-backend/internal/platform/apperr"
)

func strp(s string) *string { return &s }

func newTestService() *Service {
	return NewService(NewMemoryStore())
}

func TestCreate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	got, err := svc.Create(ctx, CreateUserRequest{
		Username:  "jane.smith",
		Email:     "jane.smith@example.com",
		FirstName: "Jane",
		LastName:  "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleEmployee, got.Role)
	assert.True(t, got.Active)
	assert.NotEmpty(t, got.UserID)

	// role は小文字でも受ける
	mgr, err := svc.Create(ctx, CreateUserRequest{
		Username:  "bob.manager",
		Email:     "bob@example.com",
		FirstName: "Bob",
		LastName:  "Manager",
		Role:      strp("manager"),
	})
	require.NoError(t, err)
	assert.Equal(t, RoleManager, mgr.Role)

	_, err = svc.Create(ctx, CreateUserRequest{
		Username: "x", Email: "not-an-email", FirstName: "X", LastName: "Y",
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	_, err = svc.Create(ctx, CreateUserRequest{
		Username: "y", Email: "y@example.com", FirstName: "Y", LastName: "Z", Role: strp("SUPERUSER"),
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	// username の重複は弾く
	_, err = svc.Create(ctx, CreateUserRequest{
		Username: "jane.smith", Email: "other@example.com", FirstName: "Jane", LastName: "Doe",
	})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestGetByUsername(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateUserRequest{
		Username: "jane.smith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith",
	})
	require.NoError(t, err)

	got, err := svc.GetByUsername(ctx, "jane.smith")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, got.UserID)

	_, err = svc.GetByUsername(ctx, "nobody")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

// 古い読み出しに基づく更新は後勝ちで上書きせず CONFLICT になる
func TestStoreUpdate_StaleReadConflicts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateUserRequest{
		Username: "jane.smith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith",
	})
	require.NoError(t, err)

	st := svc.store
	a, err := st.GetByID(ctx, created.UserID)
	require.NoError(t, err)
	b, err := st.GetByID(ctx, created.UserID)
	require.NoError(t, err)

	prev := a.UpdatedAt
	a.Department = strp("Marketing")
	a.UpdatedAt = prev.Add(time.Second)
	require.NoError(t, st.Update(ctx, a, prev))

	// b は a の更新前の読み出しのまま
	b.Department = strp("Sales")
	b.UpdatedAt = prev.Add(2 * time.Second)
	err = st.Update(ctx, b, prev)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	got, err := svc.Get(ctx, created.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.Department)
	assert.Equal(t, "Marketing", *got.Department)
}

func TestDeactivateAndRequireActive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateUserRequest{
		Username: "jane.smith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith",
	})
	require.NoError(t, err)

	u, err := svc.RequireActive(ctx, created.UserID)
	require.NoError(t, err)
	assert.Equal(t, "jane.smith", u.Username)

	require.NoError(t, svc.Deactivate(ctx, created.UserID))

	// 退職済みユーザーは申請等の主体になれない
	_, err = svc.RequireActive(ctx, created.UserID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	// 二重無効化は不可
	err = svc.Deactivate(ctx, created.UserID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	// 再雇用は Update で戻せる
	active := true
	got, err := svc.Update(ctx, created.UserID, UpdateUserRequest{Active: &active})
	require.NoError(t, err)
	assert.True(t, got.Active)

	_, err = svc.RequireActive(ctx, "no-such-user")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
