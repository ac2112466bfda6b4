package equipment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"checkout-zone-backend/internal/platform/apperr"
)

// MySQLStore は equipment テーブルを扱う本番実装。
// Reserve/Release/SetStatus は条件付きUPDATE（affected rows 判定）で CAS する。
type MySQLStore struct {
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB行に対応（スキャン用）
type equipmentRow struct {
	EquipmentID     string
	InternalID      string
	SerialNumber    sql.NullString
	Name            string
	Model           sql.NullString
	Brand           sql.NullString
	Type            string
	Condition       string
	Status          string
	Location        sql.NullString
	AcquisitionDate sql.NullTime
	Notes           sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r equipmentRow) toModel() Equipment {
	e := Equipment{
		EquipmentID: r.EquipmentID,
		InternalID:  r.InternalID,
		Name:        r.Name,
		Type:        r.Type,
		Condition:   Condition(r.Condition),
		Status:      Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.SerialNumber.Valid {
		v := r.SerialNumber.String
		e.SerialNumber = &v
	}
	if r.Model.Valid {
		v := r.Model.String
		e.Model = &v
	}
	if r.Brand.Valid {
		v := r.Brand.String
		e.Brand = &v
	}
	if r.Location.Valid {
		v := r.Location.String
		e.Location = &v
	}
	if r.AcquisitionDate.Valid {
		v := r.AcquisitionDate.Time.UTC()
		e.AcquisitionDate = &v
	}
	if r.Notes.Valid {
		v := r.Notes.String
		e.Notes = &v
	}
	return e
}

const equipmentCols = `
	equipment_id, internal_id, serial_number, name, model, brand, type,
	condition_rating, status, location, acquisition_date, notes, created_at, updated_at`

func scanEquipment(row interface{ Scan(dest ...any) error }) (*Equipment, error) {
	var r equipmentRow
	if err := row.Scan(
		&r.EquipmentID, &r.InternalID, &r.SerialNumber, &r.Name, &r.Model, &r.Brand, &r.Type,
		&r.Condition, &r.Status, &r.Location, &r.AcquisitionDate, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m := r.toModel()
	return &m, nil
}

func (s *MySQLStore) Insert(ctx context.Context, e *Equipment) error {
	const q = `
	INSERT INTO equipment
	(equipment_id, internal_id, serial_number, name, model, brand, type,
	 condition_rating, status, location, acquisition_date, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.EquipmentID, e.InternalID, e.SerialNumber, e.Name, e.Model, e.Brand, e.Type,
		string(e.Condition), string(e.Status), e.Location, e.AcquisitionDate, e.Notes,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return apperr.Conflict("internal_id already exists")
		}
		return err
	}
	return nil
}

func (s *MySQLStore) GetByID(ctx context.Context, id string) (*Equipment, error) {
	q := `SELECT` + equipmentCols + ` FROM equipment WHERE equipment_id = ?`
	e, err := scanEquipment(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("equipment not found")
		}
		return nil, err
	}
	return e, nil
}

func (s *MySQLStore) GetByInternalID(ctx context.Context, internalID string) (*Equipment, error) {
	q := `SELECT` + equipmentCols + ` FROM equipment WHERE internal_id = ?`
	e, err := scanEquipment(s.db.QueryRowContext(ctx, q, internalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("equipment not found")
		}
		return nil, err
	}
	return e, nil
}

func (s *MySQLStore) List(ctx context.Context, f Filter) ([]Equipment, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT` + equipmentCols + ` FROM equipment WHERE 1=1`)
	args := []any{}
	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.Type != nil {
		sb.WriteString(` AND type = ?`)
		args = append(args, *f.Type)
	}
	if f.InternalID != nil {
		sb.WriteString(` AND internal_id = ?`)
		args = append(args, *f.InternalID)
	}
	sb.WriteString(` ORDER BY internal_id ASC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Update(ctx context.Context, e *Equipment) error {
	// status には触れない（台帳専用）
	const q = `
	UPDATE equipment SET
		serial_number = ?, name = ?, model = ?, brand = ?, type = ?,
		condition_rating = ?, location = ?, acquisition_date = ?, notes = ?,
		updated_at = CURRENT_TIMESTAMP(6)
	WHERE equipment_id = ?`
	res, err := s.db.ExecContext(ctx, q,
		e.SerialNumber, e.Name, e.Model, e.Brand, e.Type,
		string(e.Condition), e.Location, e.AcquisitionDate, e.Notes, e.EquipmentID,
	)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.NotFound("equipment not found")
	}
	return nil
}

func (s *MySQLStore) SetStatus(ctx context.Context, id string, from, to Status) error {
	const q = `
	UPDATE equipment SET status = ?, updated_at = CURRENT_TIMESTAMP(6)
	WHERE equipment_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	cur, err := s.AvailabilityOf(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("equipment is " + string(cur))
}

func (s *MySQLStore) Reserve(ctx context.Context, id string) error {
	// 単一の check-and-set。同時実行でも成功は1件だけ。
	const q = `
	UPDATE equipment SET status = ?, updated_at = CURRENT_TIMESTAMP(6)
	WHERE equipment_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(StatusReserved), id, string(StatusAvailable))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	cur, err := s.AvailabilityOf(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Unavailable("equipment is " + string(cur))
}

func (s *MySQLStore) Release(ctx context.Context, id string, cond Condition) error {
	const q = `
	UPDATE equipment SET status = ?, condition_rating = ?, updated_at = CURRENT_TIMESTAMP(6)
	WHERE equipment_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(StatusAvailable), string(cond), id, string(StatusReserved))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	if _, err := s.AvailabilityOf(ctx, id); err != nil {
		return err
	}
	return apperr.InvalidState("equipment is not reserved")
}

func (s *MySQLStore) ConditionOf(ctx context.Context, id string) (Condition, error) {
	const q = `SELECT condition_rating FROM equipment WHERE equipment_id = ?`
	var c string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&c); err != nil {
		if err == sql.ErrNoRows {
			return "", apperr.NotFound("equipment not found")
		}
		return "", err
	}
	return Condition(c), nil
}

func (s *MySQLStore) AvailabilityOf(ctx context.Context, id string) (Status, error) {
	const q = `SELECT status FROM equipment WHERE equipment_id = ?`
	var st string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&st); err != nil {
		if err == sql.ErrNoRows {
			return "", apperr.NotFound("equipment not found")
		}
		return "", err
	}
	return Status(st), nil
}
