package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// RowRepo provides data access to hall_rows and pallet_slots.  A row
// owns its slots; deleting a row cascades to them.
type RowRepo struct {
	db DBTX
}

// NewRowRepo constructs a RowRepo with the given handle.
func NewRowRepo(db DBTX) *RowRepo {
	return &RowRepo{db: db}
}

const rowColumns = `id, name, color_hex, capacity, article`

// List returns all rows ordered by name, which is the left-to-right
// order of the hall.  Slots are loaded for every row.
func (r *RowRepo) List(ctx context.Context) ([]model.Row, error) {
	return r.queryRows(ctx, `SELECT `+rowColumns+` FROM hall_rows ORDER BY name, id`)
}

// ListByArticle returns the rows currently holding article, ordered by
// name.
func (r *RowRepo) ListByArticle(ctx context.Context, article string) ([]model.Row, error) {
	return r.queryRows(ctx, `SELECT `+rowColumns+` FROM hall_rows WHERE article = ? ORDER BY name, id`, article)
}

// GetByID returns the row with its slots or ErrRowNotFound.
func (r *RowRepo) GetByID(ctx context.Context, id int64) (*model.Row, error) {
	return r.getOne(ctx, `SELECT `+rowColumns+` FROM hall_rows WHERE id = ?`, false, id)
}

// GetByIDForUpdate is GetByID with SELECT ... FOR UPDATE on the row and
// its slots.  Inside a transaction it serializes concurrent slot
// mutations of the same row across processes.
func (r *RowRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Row, error) {
	return r.getOne(ctx, `SELECT `+rowColumns+` FROM hall_rows WHERE id = ? FOR UPDATE`, true, id)
}

// GetByName returns the row with the given name or ErrRowNotFound.
func (r *RowRepo) GetByName(ctx context.Context, name string) (*model.Row, error) {
	return r.getOne(ctx, `SELECT `+rowColumns+` FROM hall_rows WHERE name = ?`, false, name)
}

func (r *RowRepo) getOne(ctx context.Context, q string, lock bool, arg any) (*model.Row, error) {
	var row model.Row
	err := r.db.QueryRowContext(ctx, q, arg).
		Scan(&row.ID, &row.Name, &row.ColorHex, &row.Capacity, &row.Article)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	slotQ := `SELECT id, row_id, position_index, state FROM pallet_slots WHERE row_id = ? ORDER BY position_index`
	if lock {
		slotQ += ` FOR UPDATE`
	}
	slots, err := r.querySlots(ctx, slotQ, row.ID)
	if err != nil {
		return nil, err
	}
	row.Slots = slots[row.ID]
	return &row, nil
}

func (r *RowRepo) queryRows(ctx context.Context, q string, args ...any) ([]model.Row, error) {
	rs, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []model.Row
	for rs.Next() {
		var row model.Row
		if err := rs.Scan(&row.ID, &row.Name, &row.ColorHex, &row.Capacity, &row.Article); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, len(out))
	marks := make([]string, len(out))
	for i, row := range out {
		ids[i] = row.ID
		marks[i] = "?"
	}
	slots, err := r.querySlots(ctx,
		`SELECT id, row_id, position_index, state FROM pallet_slots
		 WHERE row_id IN (`+strings.Join(marks, ",")+`)
		 ORDER BY row_id, position_index`, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Slots = slots[out[i].ID]
	}
	return out, nil
}

func (r *RowRepo) querySlots(ctx context.Context, q string, args ...any) (map[int64][]model.Slot, error) {
	rs, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	out := make(map[int64][]model.Slot)
	for rs.Next() {
		var (
			s     model.Slot
			state string
		)
		if err := rs.Scan(&s.ID, &s.RowID, &s.Position, &state); err != nil {
			return nil, err
		}
		s.State = model.ParseSlotState(state)
		out[s.RowID] = append(out[s.RowID], s)
	}
	return out, rs.Err()
}

// Create inserts the row together with Capacity empty slots.  The row's
// ID and slots are populated on success.
func (r *RowRepo) Create(ctx context.Context, row *model.Row) error {
	if row.ColorHex == "" {
		row.ColorHex = "#000000"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO hall_rows (name, color_hex, capacity, article) VALUES (?, ?, ?, ?)`,
		row.Name, row.ColorHex, row.Capacity, row.Article)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	row.ID = id
	positions := make([]int, row.Capacity)
	for i := range positions {
		positions[i] = i
	}
	if err := r.AddSlots(ctx, row.ID, positions); err != nil {
		return err
	}
	slots, err := r.querySlots(ctx,
		`SELECT id, row_id, position_index, state FROM pallet_slots WHERE row_id = ? ORDER BY position_index`, row.ID)
	if err != nil {
		return err
	}
	row.Slots = slots[row.ID]
	return nil
}

// UpdateLayout changes colour and capacity of a row.  Slots are not
// touched; callers add or delete them to match the new capacity.
func (r *RowRepo) UpdateLayout(ctx context.Context, id int64, colorHex string, capacity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE hall_rows SET color_hex = ?, capacity = ? WHERE id = ?`, colorHex, capacity, id)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrRowNotFound)
}

// SetArticle stores the article label of a row.
func (r *RowRepo) SetArticle(ctx context.Context, id int64, article string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE hall_rows SET article = ? WHERE id = ?`, article, id)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrRowNotFound)
}

// SetSlotState updates the state of one slot.
func (r *RowRepo) SetSlotState(ctx context.Context, slotID int64, state model.SlotState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pallet_slots SET state = ? WHERE id = ?`, string(state), slotID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrSlotNotFound)
}

// AddSlots inserts empty slots at the given positions.  Passing an empty
// slice has no effect.
func (r *RowRepo) AddSlots(ctx context.Context, rowID int64, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	query := `INSERT INTO pallet_slots (row_id, position_index, state) VALUES `
	args := make([]any, 0, len(positions)*3)
	for i, p := range positions {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, rowID, p, string(model.SlotEmpty))
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteSlotsFrom removes every slot of the row at or above position.
func (r *RowRepo) DeleteSlotsFrom(ctx context.Context, rowID int64, position int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pallet_slots WHERE row_id = ? AND position_index >= ?`, rowID, position)
	return err
}

// expectAffected maps an update that touched nothing onto notFound.
// MySQL reports matched-but-unchanged rows as 0 affected unless the DSN
// sets clientFoundRows, which database.Open does.
func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
