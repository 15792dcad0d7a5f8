package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/queue"
	"github.com/iliyamo/sorting-hall/internal/repository"
)

// memStore is an in-memory hall shared by the fake repositories.  Reads
// return copies so callers cannot change stored state behind its back.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*model.Row
	tables   map[int64]*model.Table
	calls    map[int64]*model.RowCall
	strategy model.Strategy
}

func newMemStore() *memStore {
	return &memStore{
		rows:     map[int64]*model.Row{},
		tables:   map[int64]*model.Table{},
		calls:    map[int64]*model.RowCall{},
		strategy: model.StrategyMostFreePallets,
	}
}

func (s *memStore) repo() *repository.Repository {
	return repository.New(memRows{s}, memTables{s}, memCalls{s}, memSettings{s}, nil)
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// addRow stores a row whose occupied pallets sit at the highest positions,
// the way AddPallet fills a row.
func (s *memStore) addRow(name, article string, capacity, occupied int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &model.Row{ID: s.id(), Name: name, ColorHex: "#000000", Capacity: capacity, Article: article}
	for pos := 0; pos < capacity; pos++ {
		state := model.SlotEmpty
		if pos >= capacity-occupied {
			state = model.SlotOccupied
		}
		row.Slots = append(row.Slots, model.Slot{ID: s.id(), RowID: row.ID, Position: pos, State: state})
	}
	s.rows[row.ID] = row
	return row.ID
}

func (s *memStore) addTable(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &model.Table{ID: s.id(), Name: name}
	s.tables[t.ID] = t
	return t.ID
}

func (s *memStore) row(id int64) model.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRow(s.rows[id])
}

func (s *memStore) call(id int64) model.RowCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined(s.calls[id])
}

func (s *memStore) slotStates(id int64) []model.SlotState {
	r := s.row(id)
	out := make([]model.SlotState, len(r.Slots))
	for i, sl := range r.Slots {
		out[i] = sl.State
	}
	return out
}

func (s *memStore) dispatchedPending(rowID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countDispatched(rowID)
}

func (s *memStore) countDispatched(rowID int64) int {
	n := 0
	for _, c := range s.calls {
		if c.RowID != nil && *c.RowID == rowID && c.Status == model.CallPending && c.OrderID != nil {
			n++
		}
	}
	return n
}

func copyRow(r *model.Row) model.Row {
	out := *r
	out.Slots = append([]model.Slot(nil), r.Slots...)
	return out
}

func (s *memStore) joined(c *model.RowCall) model.RowCall {
	out := *c
	if t, ok := s.tables[c.TableID]; ok {
		out.TableName = t.Name
	}
	if c.RowID != nil {
		if r, ok := s.rows[*c.RowID]; ok {
			out.RowName, out.Article = r.Name, r.Article
		}
	}
	return out
}

// sortedCalls returns calls matching keep in requested_at, id order.
func (s *memStore) sortedCalls(keep func(*model.RowCall) bool) []model.RowCall {
	var out []model.RowCall
	for _, c := range s.calls {
		if keep(c) {
			out = append(out, s.joined(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memRows struct{ s *memStore }

func (m memRows) List(ctx context.Context) ([]model.Row, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Row
	for _, r := range m.s.rows {
		out = append(out, copyRow(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memRows) ListByArticle(ctx context.Context, article string) ([]model.Row, error) {
	rows, _ := m.List(ctx)
	var out []model.Row
	for _, r := range rows {
		if r.Article == article {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memRows) GetByID(ctx context.Context, id int64) (*model.Row, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[id]
	if !ok {
		return nil, repository.ErrRowNotFound
	}
	out := copyRow(r)
	return &out, nil
}

func (m memRows) GetByIDForUpdate(ctx context.Context, id int64) (*model.Row, error) {
	return m.GetByID(ctx, id)
}

func (m memRows) GetByName(ctx context.Context, name string) (*model.Row, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.rows {
		if r.Name == name {
			out := copyRow(r)
			return &out, nil
		}
	}
	return nil, repository.ErrRowNotFound
}

func (m memRows) Create(ctx context.Context, row *model.Row) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	row.ID = m.s.id()
	row.Slots = nil
	for pos := 0; pos < row.Capacity; pos++ {
		row.Slots = append(row.Slots, model.Slot{ID: m.s.id(), RowID: row.ID, Position: pos, State: model.SlotEmpty})
	}
	stored := copyRow(row)
	m.s.rows[row.ID] = &stored
	return nil
}

func (m memRows) UpdateLayout(ctx context.Context, id int64, colorHex string, capacity int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[id]
	if !ok {
		return repository.ErrRowNotFound
	}
	r.ColorHex, r.Capacity = colorHex, capacity
	return nil
}

func (m memRows) SetArticle(ctx context.Context, id int64, article string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[id]
	if !ok {
		return repository.ErrRowNotFound
	}
	r.Article = article
	return nil
}

func (m memRows) SetSlotState(ctx context.Context, slotID int64, state model.SlotState) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.rows {
		for i := range r.Slots {
			if r.Slots[i].ID == slotID {
				r.Slots[i].State = state
				return nil
			}
		}
	}
	return repository.ErrSlotNotFound
}

func (m memRows) AddSlots(ctx context.Context, rowID int64, positions []int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[rowID]
	if !ok {
		return repository.ErrRowNotFound
	}
	for _, pos := range positions {
		r.Slots = append(r.Slots, model.Slot{ID: m.s.id(), RowID: rowID, Position: pos, State: model.SlotEmpty})
	}
	sort.Slice(r.Slots, func(i, j int) bool { return r.Slots[i].Position < r.Slots[j].Position })
	return nil
}

func (m memRows) DeleteSlotsFrom(ctx context.Context, rowID int64, position int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[rowID]
	if !ok {
		return repository.ErrRowNotFound
	}
	kept := r.Slots[:0]
	for _, sl := range r.Slots {
		if sl.Position < position {
			kept = append(kept, sl)
		}
	}
	r.Slots = kept
	return nil
}

type memTables struct{ s *memStore }

func (m memTables) List(ctx context.Context) ([]model.Table, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Table
	for _, t := range m.s.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memTables) GetByID(ctx context.Context, id int64) (*model.Table, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tables[id]
	if !ok {
		return nil, repository.ErrTableNotFound
	}
	out := *t
	return &out, nil
}

func (m memTables) Ensure(ctx context.Context, name string) (*model.Table, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tables {
		if t.Name == name {
			out := *t
			return &out, false, nil
		}
	}
	t := &model.Table{ID: m.s.id(), Name: name}
	m.s.tables[t.ID] = t
	out := *t
	return &out, true, nil
}

type memCalls struct{ s *memStore }

func (m memCalls) Create(ctx context.Context, call *model.RowCall) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if call.RequestedAt.IsZero() {
		call.RequestedAt = time.Now().UTC()
	}
	if call.Status == "" {
		call.Status = model.CallPending
	}
	call.ID = m.s.id()
	stored := *call
	m.s.calls[call.ID] = &stored
	return nil
}

func (m memCalls) GetByID(ctx context.Context, id int64) (*model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.calls[id]
	if !ok {
		return nil, repository.ErrCallNotFound
	}
	out := m.s.joined(c)
	return &out, nil
}

func (m memCalls) first(calls []model.RowCall) (*model.RowCall, error) {
	if len(calls) == 0 {
		return nil, repository.ErrCallNotFound
	}
	return &calls[0], nil
}

func (m memCalls) LatestPendingByTable(ctx context.Context, tableID int64) (*model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	calls := m.s.sortedCalls(func(c *model.RowCall) bool {
		return c.TableID == tableID && c.Status == model.CallPending
	})
	if len(calls) == 0 {
		return nil, repository.ErrCallNotFound
	}
	return &calls[len(calls)-1], nil
}

func (m memCalls) LatestByTable(ctx context.Context) (map[int64]model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := map[int64]model.RowCall{}
	for _, c := range m.s.sortedCalls(func(*model.RowCall) bool { return true }) {
		out[c.TableID] = c
	}
	return out, nil
}

func (m memCalls) NextUndispatched(ctx context.Context, rowID int64) (*model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.first(m.s.sortedCalls(func(c *model.RowCall) bool {
		return c.RowID != nil && *c.RowID == rowID && c.Status == model.CallPending && c.OrderID == nil
	}))
}

func (m memCalls) CountDispatchedPending(ctx context.Context, rowID int64) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.countDispatched(rowID), nil
}

func (m memCalls) DispatchedPendingByRow(ctx context.Context) (map[int64]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := map[int64]int{}
	for _, c := range m.s.calls {
		if c.RowID != nil && c.Status == model.CallPending && c.OrderID != nil {
			out[*c.RowID]++
		}
	}
	return out, nil
}

func (m memCalls) AssignOrderID(ctx context.Context, id, orderID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.calls[id]
	if !ok || c.OrderID != nil || c.Status != model.CallPending {
		return repository.ErrOrderIDAssigned
	}
	c.OrderID = &orderID
	return nil
}

func (m memCalls) FindPendingByOrderID(ctx context.Context, orderID int64) (*model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.first(m.s.sortedCalls(func(c *model.RowCall) bool {
		return c.OrderID != nil && *c.OrderID == orderID && c.Status == model.CallPending
	}))
}

func (m memCalls) UpdateState(ctx context.Context, call *model.RowCall) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.calls[call.ID]
	if !ok {
		return repository.ErrCallNotFound
	}
	c.Status, c.LastAction, c.LastStatus = call.Status, call.LastAction, call.LastStatus
	return nil
}

func (m memCalls) ListPending(ctx context.Context) ([]model.RowCall, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.sortedCalls(func(c *model.RowCall) bool { return c.Status == model.CallPending }), nil
}

type memSettings struct{ s *memStore }

func (m memSettings) Get(ctx context.Context) (*model.HallSettings, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return &model.HallSettings{ID: 1, Strategy: m.s.strategy}, nil
}

func (m memSettings) SetStrategy(ctx context.Context, strategy model.Strategy) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.strategy = strategy
	return nil
}

type move struct {
	Row, Table string
}

// fakeGateway hands out increasing order ids starting at 1001.
type fakeGateway struct {
	mu       sync.Mutex
	next     int64
	err      error
	moves    []move
	cancels  []int64
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (g *fakeGateway) BeginMove(ctx context.Context, row, table string) (int64, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	delay := g.delay
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	if g.err != nil {
		return 0, g.err
	}
	g.next++
	g.moves = append(g.moves, move{Row: row, Table: table})
	return 1000 + g.next, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, orderID)
	return g.err
}

func (g *fakeGateway) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) moveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.moves)
}

func (g *fakeGateway) cancelled() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.cancels...)
}

type fakeNotifier struct {
	mu sync.Mutex
	n  int
}

func (f *fakeNotifier) HallChanged(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.RowCallEvent
}

func (f *fakePublisher) PublishCallEvent(ctx context.Context, ev queue.RowCallEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) published() []queue.RowCallEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.RowCallEvent(nil), f.events...)
}

type testHall struct {
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	events   *fakePublisher
	d        *Dispatcher
	r        *Reconciler
	clock    time.Time
}

func newTestHall(t *testing.T) *testHall {
	t.Helper()
	h := &testHall{
		store:    newMemStore(),
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		events:   &fakePublisher{},
		clock:    time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}
	h.d = NewDispatcher(Deps{
		Repo:     h.store.repo(),
		Gateway:  h.gateway,
		Notifier: h.notifier,
		Events:   h.events,
	})
	var mu sync.Mutex
	h.d.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}
	h.r = NewReconciler(h.d)
	return h
}

// callback sends a fleet callback for the order of call id.
func (h *testHall) callback(t *testing.T, callID int64, action, status string) Outcome {
	t.Helper()
	c := h.store.call(callID)
	if c.OrderID == nil {
		t.Fatalf("call %d has no order id", callID)
	}
	out, err := h.r.Handle(context.Background(), model.FleetEvent{
		OrderID: *c.OrderID, Action: action, Status: status, Row: c.RowName, Table: c.TableName,
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	return out
}

var errGatewayDown = errors.New("fleet unreachable")
