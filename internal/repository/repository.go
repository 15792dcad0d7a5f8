package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repositories, so
// the same code runs inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RowRepository gives access to hall rows and their slots.
type RowRepository interface {
	List(ctx context.Context) ([]model.Row, error)
	ListByArticle(ctx context.Context, article string) ([]model.Row, error)
	GetByID(ctx context.Context, id int64) (*model.Row, error)
	// GetByIDForUpdate loads the row and its slots with row-level locks.
	// It only locks when called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Row, error)
	GetByName(ctx context.Context, name string) (*model.Row, error)
	Create(ctx context.Context, row *model.Row) error
	UpdateLayout(ctx context.Context, id int64, colorHex string, capacity int) error
	SetArticle(ctx context.Context, id int64, article string) error
	SetSlotState(ctx context.Context, slotID int64, state model.SlotState) error
	AddSlots(ctx context.Context, rowID int64, positions []int) error
	DeleteSlotsFrom(ctx context.Context, rowID int64, position int) error
}

// TableRepository gives access to work tables.
type TableRepository interface {
	List(ctx context.Context) ([]model.Table, error)
	GetByID(ctx context.Context, id int64) (*model.Table, error)
	// Ensure returns the table with the given name, creating it when
	// missing.  created reports whether a record was inserted.
	Ensure(ctx context.Context, name string) (table *model.Table, created bool, err error)
}

// RowCallRepository gives access to row calls.
type RowCallRepository interface {
	Create(ctx context.Context, call *model.RowCall) error
	GetByID(ctx context.Context, id int64) (*model.RowCall, error)
	// LatestPendingByTable returns the newest pending call of the table or
	// ErrCallNotFound.
	LatestPendingByTable(ctx context.Context, tableID int64) (*model.RowCall, error)
	// LatestByTable returns the newest call of every table that has one.
	LatestByTable(ctx context.Context) (map[int64]model.RowCall, error)
	// NextUndispatched returns the oldest pending call of the row without
	// an order id (requested_at, then id) or ErrCallNotFound.
	NextUndispatched(ctx context.Context, rowID int64) (*model.RowCall, error)
	CountDispatchedPending(ctx context.Context, rowID int64) (int, error)
	DispatchedPendingByRow(ctx context.Context) (map[int64]int, error)
	// AssignOrderID stores the order id on a pending call that has none
	// yet.  Any other case returns ErrOrderIDAssigned.
	AssignOrderID(ctx context.Context, id, orderID int64) error
	FindPendingByOrderID(ctx context.Context, orderID int64) (*model.RowCall, error)
	// UpdateState persists status and the raw callback audit fields.
	UpdateState(ctx context.Context, call *model.RowCall) error
	ListPending(ctx context.Context) ([]model.RowCall, error)
}

// SettingsRepository gives access to the hall settings singleton.
type SettingsRepository interface {
	// Get returns the settings, creating the default record when missing.
	Get(ctx context.Context) (*model.HallSettings, error)
	SetStrategy(ctx context.Context, strategy model.Strategy) error
}

// Transactor runs fn against repositories bound to one transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(*Repository) error) error
}

// Repository aggregates the repositories of the hall.
type Repository struct {
	Rows     RowRepository
	Tables   TableRepository
	Calls    RowCallRepository
	Settings SettingsRepository

	tx Transactor
}

// New builds a Repository from explicit parts.  A nil transactor runs
// InTx callbacks inline on the same repositories.
func New(rows RowRepository, tables TableRepository, calls RowCallRepository, settings SettingsRepository, tx Transactor) *Repository {
	return &Repository{Rows: rows, Tables: tables, Calls: calls, Settings: settings, tx: tx}
}

// NewRepository builds the SQL backed Repository over db.
func NewRepository(db *sql.DB) *Repository {
	r := bind(db)
	r.tx = &sqlTransactor{db: db}
	return r
}

func bind(db DBTX) *Repository {
	return &Repository{
		Rows:     NewRowRepo(db),
		Tables:   NewTableRepo(db),
		Calls:    NewRowCallRepo(db),
		Settings: NewSettingsRepo(db),
	}
}

// InTx runs fn inside a transaction.  Calls made on an already
// transactional Repository run inline.
func (r *Repository) InTx(ctx context.Context, fn func(*Repository) error) error {
	if r.tx == nil {
		return fn(r)
	}
	return r.tx.InTx(ctx, fn)
}

type sqlTransactor struct {
	db *sql.DB
}

func (t *sqlTransactor) InTx(ctx context.Context, fn func(*Repository) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
