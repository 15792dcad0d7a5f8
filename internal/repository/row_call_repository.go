package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// RowCallRepo provides data access to row_calls.  Calls are never
// deleted; status changes and the fleet order id are the only updates.
type RowCallRepo struct {
	db DBTX
}

// NewRowCallRepo constructs a RowCallRepo with the given handle.
func NewRowCallRepo(db DBTX) *RowCallRepo {
	return &RowCallRepo{db: db}
}

const callSelect = `SELECT c.id, c.table_id, c.row_id, c.requested_at, c.status, c.order_id,
       c.last_action, c.last_status, t.name, COALESCE(r.name, ''), COALESCE(r.article, '')
FROM row_calls c
JOIN work_tables t ON t.id = c.table_id
LEFT JOIN hall_rows r ON r.id = c.row_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(s scanner) (*model.RowCall, error) {
	var (
		c       model.RowCall
		rowID   sql.NullInt64
		orderID sql.NullInt64
		status  string
	)
	if err := s.Scan(&c.ID, &c.TableID, &rowID, &c.RequestedAt, &status, &orderID,
		&c.LastAction, &c.LastStatus, &c.TableName, &c.RowName, &c.Article); err != nil {
		return nil, err
	}
	c.Status = model.CallStatus(status)
	if rowID.Valid {
		v := rowID.Int64
		c.RowID = &v
	}
	if orderID.Valid {
		v := orderID.Int64
		c.OrderID = &v
	}
	c.RequestedAt = c.RequestedAt.UTC()
	return &c, nil
}

func (r *RowCallRepo) one(ctx context.Context, q string, args ...any) (*model.RowCall, error) {
	c, err := scanCall(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCallNotFound
	}
	return c, err
}

func (r *RowCallRepo) many(ctx context.Context, q string, args ...any) ([]model.RowCall, error) {
	rs, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []model.RowCall
	for rs.Next() {
		c, err := scanCall(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rs.Err()
}

// Create inserts a new call.  RequestedAt defaults to now (UTC) and
// Status to Pending.  The ID field is populated on success.
func (r *RowCallRepo) Create(ctx context.Context, call *model.RowCall) error {
	if call.RequestedAt.IsZero() {
		call.RequestedAt = time.Now().UTC()
	}
	if call.Status == "" {
		call.Status = model.CallPending
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO row_calls (table_id, row_id, requested_at, status, order_id, last_action, last_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		call.TableID, nullInt(call.RowID), call.RequestedAt, string(call.Status), nullInt(call.OrderID),
		call.LastAction, call.LastStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	call.ID = id
	return nil
}

// GetByID returns the call or ErrCallNotFound.
func (r *RowCallRepo) GetByID(ctx context.Context, id int64) (*model.RowCall, error) {
	return r.one(ctx, callSelect+` WHERE c.id = ?`, id)
}

// LatestPendingByTable returns the newest pending call of the table.
func (r *RowCallRepo) LatestPendingByTable(ctx context.Context, tableID int64) (*model.RowCall, error) {
	return r.one(ctx, callSelect+`
WHERE c.table_id = ? AND c.status = ?
ORDER BY c.requested_at DESC, c.id DESC
LIMIT 1`, tableID, string(model.CallPending))
}

// LatestByTable returns the newest call of every table, keyed by table id.
func (r *RowCallRepo) LatestByTable(ctx context.Context) (map[int64]model.RowCall, error) {
	calls, err := r.many(ctx, callSelect+`
WHERE c.id = (
    SELECT c2.id FROM row_calls c2
    WHERE c2.table_id = c.table_id
    ORDER BY c2.requested_at DESC, c2.id DESC
    LIMIT 1)`)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]model.RowCall, len(calls))
	for _, c := range calls {
		out[c.TableID] = c
	}
	return out, nil
}

// NextUndispatched returns the oldest pending call of the row that has
// not been handed to the fleet yet.
func (r *RowCallRepo) NextUndispatched(ctx context.Context, rowID int64) (*model.RowCall, error) {
	return r.one(ctx, callSelect+`
WHERE c.row_id = ? AND c.status = ? AND c.order_id IS NULL
ORDER BY c.requested_at, c.id
LIMIT 1`, rowID, string(model.CallPending))
}

// CountDispatchedPending counts pending calls of the row that already
// carry an order id.
func (r *RowCallRepo) CountDispatchedPending(ctx context.Context, rowID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM row_calls WHERE row_id = ? AND status = ? AND order_id IS NOT NULL`,
		rowID, string(model.CallPending)).Scan(&n)
	return n, err
}

// DispatchedPendingByRow returns CountDispatchedPending for every row
// that has at least one dispatched pending call.
func (r *RowCallRepo) DispatchedPendingByRow(ctx context.Context) (map[int64]int, error) {
	rs, err := r.db.QueryContext(ctx,
		`SELECT row_id, COUNT(*) FROM row_calls
		 WHERE status = ? AND order_id IS NOT NULL AND row_id IS NOT NULL
		 GROUP BY row_id`, string(model.CallPending))
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	out := make(map[int64]int)
	for rs.Next() {
		var (
			rowID int64
			n     int
		)
		if err := rs.Scan(&rowID, &n); err != nil {
			return nil, err
		}
		out[rowID] = n
	}
	return out, rs.Err()
}

// AssignOrderID writes the fleet order id.  The update only matches a
// pending call without an order id, which keeps the id immutable even
// when two writers race.
func (r *RowCallRepo) AssignOrderID(ctx context.Context, id, orderID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE row_calls SET order_id = ? WHERE id = ? AND order_id IS NULL AND status = ?`,
		orderID, id, string(model.CallPending))
	if err != nil {
		return err
	}
	return expectAffected(res, ErrOrderIDAssigned)
}

// FindPendingByOrderID returns the pending call correlated with the fleet
// order id or ErrCallNotFound.
func (r *RowCallRepo) FindPendingByOrderID(ctx context.Context, orderID int64) (*model.RowCall, error) {
	return r.one(ctx, callSelect+`
WHERE c.order_id = ? AND c.status = ?
ORDER BY c.id
LIMIT 1`, orderID, string(model.CallPending))
}

// UpdateState persists status, last_action and last_status.
func (r *RowCallRepo) UpdateState(ctx context.Context, call *model.RowCall) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE row_calls SET status = ?, last_action = ?, last_status = ? WHERE id = ?`,
		string(call.Status), call.LastAction, call.LastStatus, call.ID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrCallNotFound)
}

// ListPending returns all pending calls in dispatch order.
func (r *RowCallRepo) ListPending(ctx context.Context) ([]model.RowCall, error) {
	return r.many(ctx, callSelect+`
WHERE c.status = ?
ORDER BY c.requested_at, c.id`, string(model.CallPending))
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
