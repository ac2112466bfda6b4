package users

import "time"

// 利用者登録リクエスト
type CreateUserRequest struct {
	Username   string  `json:"username" binding:"required"`
	Email      string  `json:"email" binding:"required"`
	FirstName  string  `json:"first_name" binding:"required"`
	LastName   string  `json:"last_name" binding:"required"`
	Department *string `json:"department,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	// 未指定なら EMPLOYEE
	Role *string `json:"role,omitempty"`
}

// 利用者更新リクエスト（nil のフィールドは変更しない）
type UpdateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Department *string `json:"department,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	Role       *string `json:"role,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type UserResponse struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Department *string   `json:"department,omitempty"`
	EmployeeID *string   `json:"employee_id,omitempty"`
	Role       Role      `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toDTO(u *User) UserResponse {
	return UserResponse{
		UserID:     u.UserID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Department: u.Department,
		EmployeeID: u.EmployeeID,
		Role:       u.Role,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
