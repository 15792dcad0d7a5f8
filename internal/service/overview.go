package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/repository"
)

// RowView is a row with its derived counts and queue.
type RowView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	ColorHex   string     `json:"color"`
	Capacity   int        `json:"capacity"`
	Article    string     `json:"article"`
	Slots      []SlotView `json:"slots"`
	Occupied   int        `json:"occupied"`
	Dispatched int        `json:"dispatched"`
	Available  int        `json:"available"`
	Queue      []CallView `json:"queue"`
}

// SlotView is one slot of a RowView.
type SlotView struct {
	Position int             `json:"position"`
	State    model.SlotState `json:"state"`
}

// CallView is a call as shown on the hall displays.
type CallView struct {
	ID          int64            `json:"id"`
	TableID     int64            `json:"table_id"`
	Table       string           `json:"table"`
	RowID       *int64           `json:"row_id,omitempty"`
	Row         string           `json:"row,omitempty"`
	Article     string           `json:"article,omitempty"`
	RequestedAt string           `json:"requested_at"`
	Status      model.CallStatus `json:"status"`
	OrderID     *int64           `json:"order_id,omitempty"`
	Activity    Activity         `json:"activity"`
}

// HallView is the whole hall: rows in hall order and the strategy.
type HallView struct {
	Strategy model.Strategy `json:"strategy"`
	Rows     []RowView      `json:"rows"`
}

// TableView is a table with its pending and latest call.
type TableView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Pending  *CallView `json:"pending,omitempty"`
	LastCall *CallView `json:"last_call,omitempty"`
}

// StatusView is the global status bar: the oldest dispatched call.
type StatusView struct {
	HasActive bool      `json:"has_active"`
	Call      *CallView `json:"call,omitempty"`
}

// Overview builds read models of the hall.  It never mutates state.
type Overview struct {
	repo *repository.Repository
}

// NewOverview returns an Overview reading from repo.
func NewOverview(repo *repository.Repository) *Overview {
	return &Overview{repo: repo}
}

// Hall returns every row with its slots, counts and pending calls.
func (o *Overview) Hall(ctx context.Context) (*HallView, error) {
	settings, err := o.repo.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	rows, err := o.repo.Rows.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	pending, err := o.repo.Calls.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending calls: %w", err)
	}

	queues := make(map[int64][]CallView)
	dispatched := make(map[int64]int)
	for i := range pending {
		c := &pending[i]
		if c.RowID == nil {
			continue
		}
		queues[*c.RowID] = append(queues[*c.RowID], NewCallView(c))
		if c.Dispatched() {
			dispatched[*c.RowID]++
		}
	}

	view := &HallView{Strategy: settings.Strategy, Rows: make([]RowView, 0, len(rows))}
	for i := range rows {
		r := &rows[i]
		rv := RowView{
			ID:         r.ID,
			Name:       r.Name,
			ColorHex:   r.ColorHex,
			Capacity:   r.Capacity,
			Article:    r.Article,
			Slots:      make([]SlotView, 0, len(r.Slots)),
			Occupied:   r.OccupiedCount(),
			Dispatched: dispatched[r.ID],
			Available:  AvailablePallets(r, dispatched[r.ID]),
			Queue:      queues[r.ID],
		}
		for _, s := range r.Slots {
			rv.Slots = append(rv.Slots, SlotView{Position: s.Position, State: s.State})
		}
		if rv.Queue == nil {
			rv.Queue = []CallView{}
		}
		view.Rows = append(view.Rows, rv)
	}
	return view, nil
}

// Tables returns every table with its newest pending call and newest call
// of any status.
func (o *Overview) Tables(ctx context.Context) ([]TableView, error) {
	tables, err := o.repo.Tables.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	pending, err := o.repo.Calls.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending calls: %w", err)
	}
	latest, err := o.repo.Calls.LatestByTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest calls: %w", err)
	}

	// pending is ordered oldest first, so the last one per table wins
	newestPending := make(map[int64]*model.RowCall)
	for i := range pending {
		newestPending[pending[i].TableID] = &pending[i]
	}

	out := make([]TableView, 0, len(tables))
	for _, t := range tables {
		tv := TableView{ID: t.ID, Name: t.Name}
		if c, ok := newestPending[t.ID]; ok {
			v := NewCallView(c)
			tv.Pending = &v
		}
		if c, ok := latest[t.ID]; ok {
			v := NewCallView(&c)
			tv.LastCall = &v
		}
		out = append(out, tv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Table returns the view of one table.
func (o *Overview) Table(ctx context.Context, tableID int64) (*TableView, error) {
	t, err := o.repo.Tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	tables, err := o.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].ID == t.ID {
			return &tables[i], nil
		}
	}
	return &TableView{ID: t.ID, Name: t.Name}, nil
}

// Status returns the oldest dispatched pending call, if any.
func (o *Overview) Status(ctx context.Context) (*StatusView, error) {
	pending, err := o.repo.Calls.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending calls: %w", err)
	}
	for i := range pending {
		if pending[i].Dispatched() {
			v := NewCallView(&pending[i])
			return &StatusView{HasActive: true, Call: &v}, nil
		}
	}
	return &StatusView{}, nil
}

// NewCallView renders a call for the displays.
func NewCallView(c *model.RowCall) CallView {
	return CallView{
		ID:          c.ID,
		TableID:     c.TableID,
		Table:       c.TableName,
		RowID:       c.RowID,
		Row:         c.RowName,
		Article:     c.Article,
		RequestedAt: c.RequestedAt.UTC().Format(time.RFC3339),
		Status:      c.Status,
		OrderID:     c.OrderID,
		Activity:    DescribeActivity(c),
	}
}
