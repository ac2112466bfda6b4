package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"checkout-zone-backend/internal/platform/apperr"
)

type MySQLStore struct {
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB行に対応（スキャン用）
type userRow struct {
	UserID     string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Department sql.NullString
	EmployeeID sql.NullString
	Role       string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r userRow) toModel() User {
	u := User{
		UserID:    r.UserID,
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      Role(r.Role),
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Department.Valid {
		v := r.Department.String
		u.Department = &v
	}
	if r.EmployeeID.Valid {
		v := r.EmployeeID.String
		u.EmployeeID = &v
	}
	return u
}

const userCols = `
	user_id, username, email, first_name, last_name, department, employee_id,
	role, active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var r userRow
	if err := row.Scan(
		&r.UserID, &r.Username, &r.Email, &r.FirstName, &r.LastName,
		&r.Department, &r.EmployeeID, &r.Role, &r.Active, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m := r.toModel()
	return &m, nil
}

func (s *MySQLStore) Insert(ctx context.Context, u *User) error {
	const q = `
	INSERT INTO users
	(user_id, username, email, first_name, last_name, department, employee_id, role, active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		u.UserID, u.Username, u.Email, u.FirstName, u.LastName,
		u.Department, u.EmployeeID, string(u.Role), u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return apperr.Conflict("username or email already exists")
		}
		return err
	}
	return nil
}

func (s *MySQLStore) getBy(ctx context.Context, where string, arg any) (*User, error) {
	q := `SELECT` + userCols + ` FROM users WHERE ` + where + ` = ?`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *MySQLStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "user_id", id)
}

func (s *MySQLStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *MySQLStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *MySQLStore) List(ctx context.Context) ([]User, error) {
	q := `SELECT` + userCols + ` FROM users ORDER BY username ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Update(ctx context.Context, u *User, prevUpdatedAt time.Time) error {
	// 読み出し時の updated_at を前提とする CAS
	const q = `
	UPDATE users SET
		email = ?, first_name = ?, last_name = ?, department = ?, employee_id = ?,
		role = ?, active = ?, updated_at = ?
	WHERE user_id = ? AND updated_at = ?`
	res, err := s.db.ExecContext(ctx, q,
		u.Email, u.FirstName, u.LastName, u.Department, u.EmployeeID,
		string(u.Role), u.Active, u.UpdatedAt, u.UserID, prevUpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return apperr.Conflict("email already exists")
		}
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, u.UserID); err != nil {
		return err
	}
	return apperr.Conflict("user was updated concurrently")
}
