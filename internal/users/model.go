package users

import "time"

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User は users テーブルの1行を表す。
// 認証情報は持たない（認証ポリシーは別系統）。
type User struct {
	UserID     string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Department *string
	EmployeeID *string
	Role       Role
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
