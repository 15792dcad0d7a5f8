package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/repository"
	"github.com/iliyamo/sorting-hall/internal/service"
)

// fakeDispatcher records calls and returns canned results.
type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	created  bool
	requests []string
	slot     *model.Slot
	dispatch *model.RowCall
	strategy model.Strategy
	article  string
}

func (f *fakeDispatcher) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, op)
}

func (f *fakeDispatcher) call(tableID int64, rowID int64) *model.RowCall {
	order := int64(1001)
	return &model.RowCall{
		ID: 9, TableID: tableID, TableName: "T1", RowID: &rowID, RowName: "A", Article: "X",
		RequestedAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), Status: model.CallPending, OrderID: &order,
	}
}

func (f *fakeDispatcher) RequestRow(_ context.Context, tableID, rowID int64) (*service.RequestResult, error) {
	f.record("row")
	if f.err != nil {
		return nil, f.err
	}
	return &service.RequestResult{Call: f.call(tableID, rowID), Created: f.created}, nil
}

func (f *fakeDispatcher) RequestArticle(_ context.Context, tableID int64, article string) (*service.RequestResult, error) {
	f.record("article:" + article)
	if f.err != nil {
		return nil, f.err
	}
	return &service.RequestResult{Call: f.call(tableID, 1), Created: f.created}, nil
}

func (f *fakeDispatcher) CancelCall(_ context.Context, tableID int64) (*model.RowCall, error) {
	f.record("cancel")
	if f.err != nil {
		return nil, f.err
	}
	c := f.call(tableID, 1)
	c.Status = model.CallCancelled
	return c, nil
}

func (f *fakeDispatcher) ConfirmDelivered(_ context.Context, tableID int64) (*model.RowCall, error) {
	f.record("confirm")
	if f.err != nil {
		return nil, f.err
	}
	c := f.call(tableID, 1)
	c.Status = model.CallDelivered
	return c, nil
}

func (f *fakeDispatcher) AddPallet(context.Context, int64) (*model.Slot, error) {
	f.record("add")
	return f.slot, f.err
}

func (f *fakeDispatcher) RemovePallet(context.Context, int64) (*model.Slot, error) {
	f.record("remove")
	return f.slot, f.err
}

func (f *fakeDispatcher) SetArticle(_ context.Context, _ int64, article string) error {
	f.record("set_article")
	f.article = article
	return f.err
}

func (f *fakeDispatcher) SetStrategy(_ context.Context, raw string) (model.Strategy, error) {
	f.record("strategy")
	if f.err != nil {
		return "", f.err
	}
	s, ok := model.ParseStrategy(raw)
	if !ok {
		return "", service.ErrInvalidStrategy
	}
	f.strategy = s
	return s, nil
}

func (f *fakeDispatcher) TryDispatch(context.Context, int64) (*model.RowCall, error) {
	f.record("dispatch")
	return f.dispatch, f.err
}

// fakeViews serves fixed read models.
type fakeViews struct {
	err    error
	tables map[int64]service.TableView
}

func (f *fakeViews) Hall(context.Context) (*service.HallView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.HallView{Strategy: model.StrategyMostFreePallets, Rows: []service.RowView{{ID: 1, Name: "A"}}}, nil
}

func (f *fakeViews) Tables(context.Context) ([]service.TableView, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []service.TableView
	for _, t := range f.tables {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeViews) Table(_ context.Context, id int64) (*service.TableView, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tables[id]
	if !ok {
		return nil, repository.ErrTableNotFound
	}
	return &t, nil
}

func (f *fakeViews) Status(context.Context) (*service.StatusView, error) {
	return &service.StatusView{}, f.err
}

// fakeEvents records fleet events.
type fakeEvents struct {
	mu     sync.Mutex
	events []model.FleetEvent
	err    error
}

func (f *fakeEvents) Handle(_ context.Context, ev model.FleetEvent) (service.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return service.Outcome{Matched: true}, f.err
}

// errorLog records the messages logged at error level.
type errorLog struct {
	logger.NopLogger
	lines []string
}

func (l *errorLog) Errorf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
