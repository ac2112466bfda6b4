package users

import (
	"context"
	"time"
)

type Store interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, userID string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)

	// Update: 読み出し時の updated_at を前提とする CAS。
	// 前提が崩れていたら CONFLICT（並行更新に上書きされないため）。
	Update(ctx context.Context, u *User, prevUpdatedAt time.Time) error
}
