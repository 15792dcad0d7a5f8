package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// TableRepo provides data access to work_tables.
type TableRepo struct {
	db DBTX
}

// NewTableRepo constructs a TableRepo with the given handle.
func NewTableRepo(db DBTX) *TableRepo {
	return &TableRepo{db: db}
}

// List returns all tables ordered by name.
func (r *TableRepo) List(ctx context.Context) ([]model.Table, error) {
	rs, err := r.db.QueryContext(ctx, `SELECT id, name FROM work_tables ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []model.Table
	for rs.Next() {
		var t model.Table
		if err := rs.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rs.Err()
}

// GetByID returns the table or ErrTableNotFound.
func (r *TableRepo) GetByID(ctx context.Context, id int64) (*model.Table, error) {
	var t model.Table
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM work_tables WHERE id = ?`, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Ensure returns the table named name, inserting it first when missing.
func (r *TableRepo) Ensure(ctx context.Context, name string) (*model.Table, bool, error) {
	var t model.Table
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM work_tables WHERE name = ?`, name).Scan(&t.ID, &t.Name)
	if err == nil {
		return &t, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO work_tables (name) VALUES (?)`, name)
	if err != nil {
		return nil, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	return &model.Table{ID: id, Name: name}, true, nil
}
