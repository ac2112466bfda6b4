package checkout

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/apperr"
	"checkout-zone-backend/internal/platform/db"
)

// MySQLStore は checkout_requests / request_equipment / checkout_records を扱う本番実装。
// 状態遷移は条件付きUPDATE（affected rows 判定）で CAS する。
type MySQLStore struct {
	conn *sql.DB
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(conn *sql.DB) *MySQLStore { return &MySQLStore{conn: conn} }

// ---- 申請 ----

type requestRow struct {
	RequestID     string
	RequestedBy   string
	Purpose       sql.NullString
	NeededBy      sql.NullTime
	Status        string
	ApprovedBy    sql.NullString
	ApprovalDate  sql.NullTime
	ApprovalNotes sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r requestRow) toModel() CheckoutRequest {
	m := CheckoutRequest{
		RequestID:   r.RequestID,
		RequestedBy: r.RequestedBy,
		Status:      RequestStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Purpose.Valid {
		v := r.Purpose.String
		m.Purpose = &v
	}
	if r.NeededBy.Valid {
		v := r.NeededBy.Time.UTC()
		m.NeededBy = &v
	}
	if r.ApprovedBy.Valid {
		v := r.ApprovedBy.String
		m.ApprovedBy = &v
	}
	if r.ApprovalDate.Valid {
		v := r.ApprovalDate.Time.UTC()
		m.ApprovalDate = &v
	}
	if r.ApprovalNotes.Valid {
		v := r.ApprovalNotes.String
		m.ApprovalNotes = &v
	}
	return m
}

const requestCols = `
	request_id, requested_by, purpose, needed_by, status,
	approved_by, approval_date, approval_notes, created_at, updated_at`

func scanRequest(row interface{ Scan(dest ...any) error }) (*CheckoutRequest, error) {
	var r requestRow
	if err := row.Scan(
		&r.RequestID, &r.RequestedBy, &r.Purpose, &r.NeededBy, &r.Status,
		&r.ApprovedBy, &r.ApprovalDate, &r.ApprovalNotes, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m := r.toModel()
	return &m, nil
}

func (s *MySQLStore) InsertRequest(ctx context.Context, r *CheckoutRequest) error {
	// 申請本体と request_equipment を同一Txで書く
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		const q = `
		INSERT INTO checkout_requests
		(request_id, requested_by, purpose, needed_by, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q,
			r.RequestID, r.RequestedBy, r.Purpose, r.NeededBy, string(r.Status),
			r.CreatedAt, r.UpdatedAt,
		); err != nil {
			return err
		}
		const jq = `INSERT INTO request_equipment (request_id, equipment_id) VALUES (?, ?)`
		for _, eqID := range r.EquipmentIDs {
			if _, err := tx.ExecContext(ctx, jq, r.RequestID, eqID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MySQLStore) loadEquipmentIDs(ctx context.Context, requestID string) ([]string, error) {
	const q = `SELECT equipment_id FROM request_equipment WHERE request_id = ? ORDER BY equipment_id ASC`
	rows, err := s.conn.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *MySQLStore) GetRequest(ctx context.Context, id string) (*CheckoutRequest, error) {
	q := `SELECT` + requestCols + ` FROM checkout_requests WHERE request_id = ?`
	r, err := scanRequest(s.conn.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("checkout request not found")
		}
		return nil, err
	}
	if r.EquipmentIDs, err = s.loadEquipmentIDs(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *MySQLStore) ListRequests(ctx context.Context, f RequestFilter) ([]CheckoutRequest, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT` + requestCols + ` FROM checkout_requests WHERE 1=1`)
	args := []any{}
	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.UserID != nil {
		sb.WriteString(` AND requested_by = ?`)
		args = append(args, *f.UserID)
	}
	sb.WriteString(` ORDER BY created_at ASC`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckoutRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].EquipmentIDs, err = s.loadEquipmentIDs(ctx, out[i].RequestID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *MySQLStore) SetDecision(ctx context.Context, id string, to RequestStatus, approvedBy string, at time.Time, notes *string) error {
	const q = `
	UPDATE checkout_requests
	SET status = ?, approved_by = ?, approval_date = ?, approval_notes = ?, updated_at = ?
	WHERE request_id = ? AND status = ?`
	res, err := s.conn.ExecContext(ctx, q, string(to), approvedBy, at, notes, at, id, string(StatusPending))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	cur, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("request is " + string(cur.Status))
}

// CompleteWithRecords: 遷移 CAS と記録挿入を同一Txで行う。
// CAS が成立しなければ ROLLBACK され、記録は残らない。
func (s *MySQLStore) CompleteWithRecords(ctx context.Context, id string, at time.Time, recs []*CheckoutRecord) error {
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		const uq = `
		UPDATE checkout_requests SET status = ?, updated_at = ?
		WHERE request_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, uq, string(StatusCompleted), at, id, string(StatusApproved))
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			var cur string
			if err := tx.QueryRowContext(ctx,
				`SELECT status FROM checkout_requests WHERE request_id = ?`, id,
			).Scan(&cur); err != nil {
				if err == sql.ErrNoRows {
					return apperr.NotFound("checkout request not found")
				}
				return err
			}
			return apperr.InvalidState("request is " + cur)
		}

		const iq = `
		INSERT INTO checkout_records
		(record_id, user_id, equipment_id, request_id, checkout_date, expected_return_date,
		 condition_at_checkout, checked_out_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		for _, r := range recs {
			if _, err := tx.ExecContext(ctx, iq,
				r.RecordID, r.UserID, r.EquipmentID, r.RequestID, r.CheckoutDate, r.ExpectedReturnDate,
				string(r.ConditionAtCheckout), r.CheckedOutBy, r.CreatedAt, r.UpdatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ---- 貸出記録 ----

type recordRow struct {
	RecordID            string
	UserID              string
	EquipmentID         string
	RequestID           string
	CheckoutDate        time.Time
	ExpectedReturnDate  sql.NullTime
	ActualReturnDate    sql.NullTime
	ConditionAtCheckout string
	ConditionAtReturn   sql.NullString
	ReturnNotes         sql.NullString
	CheckedOutBy        string
	ReceivedBy          sql.NullString
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r recordRow) toModel() CheckoutRecord {
	m := CheckoutRecord{
		RecordID:            r.RecordID,
		UserID:              r.UserID,
		EquipmentID:         r.EquipmentID,
		RequestID:           r.RequestID,
		CheckoutDate:        r.CheckoutDate.UTC(),
		ConditionAtCheckout: equipment.Condition(r.ConditionAtCheckout),
		CheckedOutBy:        r.CheckedOutBy,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.ExpectedReturnDate.Valid {
		v := r.ExpectedReturnDate.Time.UTC()
		m.ExpectedReturnDate = &v
	}
	if r.ActualReturnDate.Valid {
		v := r.ActualReturnDate.Time.UTC()
		m.ActualReturnDate = &v
	}
	if r.ConditionAtReturn.Valid {
		v := equipment.Condition(r.ConditionAtReturn.String)
		m.ConditionAtReturn = &v
	}
	if r.ReturnNotes.Valid {
		v := r.ReturnNotes.String
		m.ReturnNotes = &v
	}
	if r.ReceivedBy.Valid {
		v := r.ReceivedBy.String
		m.ReceivedBy = &v
	}
	return m
}

const recordCols = `
	record_id, user_id, equipment_id, request_id, checkout_date, expected_return_date,
	actual_return_date, condition_at_checkout, condition_at_return, return_notes,
	checked_out_by, received_by, created_at, updated_at`

func scanRecord(row interface{ Scan(dest ...any) error }) (*CheckoutRecord, error) {
	var r recordRow
	if err := row.Scan(
		&r.RecordID, &r.UserID, &r.EquipmentID, &r.RequestID, &r.CheckoutDate, &r.ExpectedReturnDate,
		&r.ActualReturnDate, &r.ConditionAtCheckout, &r.ConditionAtReturn, &r.ReturnNotes,
		&r.CheckedOutBy, &r.ReceivedBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m := r.toModel()
	return &m, nil
}

func (s *MySQLStore) GetRecord(ctx context.Context, id string) (*CheckoutRecord, error) {
	q := `SELECT` + recordCols + ` FROM checkout_records WHERE record_id = ?`
	r, err := scanRecord(s.conn.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("checkout record not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *MySQLStore) ListRecords(ctx context.Context, f RecordFilter) ([]CheckoutRecord, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT` + recordCols + ` FROM checkout_records WHERE 1=1`)
	args := []any{}
	if f.UserID != nil {
		sb.WriteString(` AND user_id = ?`)
		args = append(args, *f.UserID)
	}
	if f.EquipmentID != nil {
		sb.WriteString(` AND equipment_id = ?`)
		args = append(args, *f.EquipmentID)
	}
	if f.OpenOnly {
		sb.WriteString(` AND actual_return_date IS NULL`)
	}
	sb.WriteString(` ORDER BY checkout_date ASC`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckoutRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CloseRecord(ctx context.Context, id string, at time.Time, cond equipment.Condition, notes *string, receivedBy string) error {
	// 返却未済（actual_return_date IS NULL）を前提とする CAS
	const q = `
	UPDATE checkout_records
	SET actual_return_date = ?, condition_at_return = ?, return_notes = ?, received_by = ?, updated_at = ?
	WHERE record_id = ? AND actual_return_date IS NULL`
	res, err := s.conn.ExecContext(ctx, q, at, string(cond), notes, receivedBy, at, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	if _, err := s.GetRecord(ctx, id); err != nil {
		return err
	}
	return apperr.InvalidState("record is already closed")
}

func (s *MySQLStore) ReopenRecord(ctx context.Context, id string, at time.Time) error {
	// CloseRecord の補償。返却済みであることを前提とする CAS。
	const q = `
	UPDATE checkout_records
	SET actual_return_date = NULL, condition_at_return = NULL, return_notes = NULL,
	    received_by = NULL, updated_at = ?
	WHERE record_id = ? AND actual_return_date IS NOT NULL`
	res, err := s.conn.ExecContext(ctx, q, at, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 1 {
		return nil
	}
	if _, err := s.GetRecord(ctx, id); err != nil {
		return err
	}
	return apperr.InvalidState("record is not closed")
}
