// Package service implements the row call engine of the sorting hall:
// selecting rows for requests, handing calls to the fleet once a pallet
// is available and reconciling the fleet callbacks into slot and call
// state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/sorting-hall/internal/fleet"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/queue"
	"github.com/iliyamo/sorting-hall/internal/repository"
)

const (
	notifyTimeout = 5 * time.Second
	cancelTimeout = 10 * time.Second
)

// Deps bundles the collaborators of a Dispatcher.  Only Repo and Gateway
// are required.
type Deps struct {
	Repo     *repository.Repository
	Gateway  Gateway
	Notifier Notifier
	Events   EventPublisher
	Metrics  *Metrics
	Logger   logger.Logger
}

// Dispatcher owns every mutation of rows, slots and calls.  All methods
// are safe for concurrent use; work on one row is serialized by a per-row
// lock and work on one table's calls by a per-table lock.  The table lock
// is always taken before the row lock.
type Dispatcher struct {
	repo     *repository.Repository
	gateway  Gateway
	notifier Notifier
	events   EventPublisher
	metrics  *Metrics
	log      logger.Logger
	locks    *lockMap
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(d Deps) *Dispatcher {
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = logger.NopLogger{}
	}
	return &Dispatcher{
		repo:     d.Repo,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Logger,
		locks:    newLockMap(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestResult is the outcome of a table request.  Created is false when
// the table already had a pending call, which is then returned instead.
type RequestResult struct {
	Call    *model.RowCall
	Created bool
}

// RequestRow registers a request of the table for a specific row.
func (d *Dispatcher) RequestRow(ctx context.Context, tableID, rowID int64) (*RequestResult, error) {
	return d.request(ctx, tableID, func(ctx context.Context) (*model.Row, error) {
		return d.repo.Rows.GetByID(ctx, rowID)
	})
}

// RequestArticle registers a request of the table for an article.  The
// row is chosen by the configured strategy; ErrNoCandidateRow is returned
// and nothing changes when no row holds the article.
func (d *Dispatcher) RequestArticle(ctx context.Context, tableID int64, article string) (*RequestResult, error) {
	article = strings.TrimSpace(article)
	if article == "" {
		return nil, ErrArticleRequired
	}
	return d.request(ctx, tableID, func(ctx context.Context) (*model.Row, error) {
		settings, err := d.repo.Settings.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		rows, err := d.repo.Rows.ListByArticle(ctx, article)
		if err != nil {
			return nil, fmt.Errorf("list rows: %w", err)
		}
		dispatched, err := d.repo.Calls.DispatchedPendingByRow(ctx)
		if err != nil {
			return nil, fmt.Errorf("count dispatched calls: %w", err)
		}
		row, ok := SelectRow(article, rows, dispatched, settings.Strategy)
		if !ok {
			d.log.Infof("no row holds article %q", article)
			return nil, ErrNoCandidateRow
		}
		return row, nil
	})
}

func (d *Dispatcher) request(ctx context.Context, tableID int64, resolve func(context.Context) (*model.Row, error)) (*RequestResult, error) {
	res, err := d.createCall(ctx, tableID, resolve)
	if err != nil || !res.Created {
		return res, err
	}
	d.broadcast()

	if _, err := d.TryDispatch(ctx, *res.Call.RowID); err != nil {
		d.log.Errorf("dispatch after request of table %d: %v", tableID, err)
	}
	if fresh, err := d.repo.Calls.GetByID(ctx, res.Call.ID); err == nil {
		res.Call = fresh
	}
	return res, nil
}

func (d *Dispatcher) createCall(ctx context.Context, tableID int64, resolve func(context.Context) (*model.Row, error)) (*RequestResult, error) {
	unlock := d.locks.Lock(tableKey(tableID))
	defer unlock()

	table, err := d.repo.Tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	existing, err := d.repo.Calls.LatestPendingByTable(ctx, tableID)
	if err == nil {
		d.log.Debugf("table %s already has pending call %d", table.Name, existing.ID)
		return &RequestResult{Call: existing}, nil
	}
	if !errors.Is(err, repository.ErrCallNotFound) {
		return nil, fmt.Errorf("load pending call: %w", err)
	}

	row, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	call := &model.RowCall{
		TableID:     tableID,
		RowID:       &row.ID,
		RequestedAt: d.now(),
		Status:      model.CallPending,
	}
	if err := d.repo.Calls.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}
	call.TableName, call.RowName, call.Article = table.Name, row.Name, row.Article
	d.log.Infof("table %s called row %s (call %d)", table.Name, row.Name, call.ID)
	return &RequestResult{Call: call, Created: true}, nil
}

// TryDispatch hands the oldest undispatched pending call of the row to the
// fleet when the row holds a pallet not yet promised to another call.  It
// returns the dispatched call or nil when nothing was dispatched.  Gateway
// failures leave the call queued and are not returned; the next trigger
// for the row retries.
func (d *Dispatcher) TryDispatch(ctx context.Context, rowID int64) (*model.RowCall, error) {
	unlock := d.locks.Lock(rowKey(rowID))
	defer unlock()

	row, err := d.repo.Rows.GetByID(ctx, rowID)
	if err != nil {
		return nil, err
	}
	dispatched, err := d.repo.Calls.CountDispatchedPending(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("count dispatched calls: %w", err)
	}
	if AvailablePallets(row, dispatched) <= 0 {
		d.log.Debugf("row %s has no free pallet, %d calls dispatched", row.Name, dispatched)
		d.metrics.dispatchAttempt(resultNoPallet)
		return nil, nil
	}

	call, err := d.repo.Calls.NextUndispatched(ctx, rowID)
	if errors.Is(err, repository.ErrCallNotFound) {
		d.metrics.dispatchAttempt(resultIdle)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load next call: %w", err)
	}

	start := time.Now()
	orderID, err := d.gateway.BeginMove(ctx, row.Name, call.TableName)
	d.metrics.gatewayLatency("begin_move", start)
	if errors.Is(err, fleet.ErrNoOrderID) {
		d.log.Warnf("fleet accepted call %d for row %s without an order id; call stays queued", call.ID, row.Name)
		d.metrics.dispatchAttempt(resultNoOrderID)
		return nil, nil
	}
	if err != nil {
		d.log.Warnf("begin move for call %d (row %s, table %s) failed: %v", call.ID, row.Name, call.TableName, err)
		d.metrics.dispatchAttempt(resultGatewayError)
		return nil, nil
	}

	if err := d.repo.Calls.AssignOrderID(ctx, call.ID, orderID); err != nil {
		d.log.Errorf("store order %d on call %d: %v; cancelling the order", orderID, call.ID, err)
		d.metrics.dispatchAttempt(resultConflict)
		d.cancelRemote(orderID)
		if errors.Is(err, repository.ErrOrderIDAssigned) {
			return nil, nil
		}
		return nil, fmt.Errorf("assign order id: %w", err)
	}
	call.OrderID = &orderID
	d.metrics.dispatchAttempt(resultDispatched)
	d.log.Infof("dispatched call %d: row %s to table %s, order %d", call.ID, row.Name, call.TableName, orderID)
	d.broadcast()
	return call, nil
}

// CancelCall cancels the newest pending call of the table.  A dispatched
// call also gets a best effort cancellation at the fleet, which never
// undoes the local cancellation.
func (d *Dispatcher) CancelCall(ctx context.Context, tableID int64) (*model.RowCall, error) {
	call, err := d.finishLatest(ctx, tableID, func(ctx context.Context, tx *repository.Repository, row *model.Row, call *model.RowCall) error {
		call.Status = model.CallCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	if call.OrderID != nil {
		d.cancelRemote(*call.OrderID)
	}
	d.log.Infof("table %s cancelled call %d", call.TableName, call.ID)
	d.afterTerminal(ctx, call, "cancelled by table", true)
	return call, nil
}

// ConfirmDelivered marks the newest pending call of the table delivered
// on behalf of the table.  The slot effect equals a successful drop.
func (d *Dispatcher) ConfirmDelivered(ctx context.Context, tableID int64) (*model.RowCall, error) {
	call, err := d.finishLatest(ctx, tableID, func(ctx context.Context, tx *repository.Repository, row *model.Row, call *model.RowCall) error {
		if err := d.releaseDelivered(ctx, tx, row, call); err != nil {
			return err
		}
		call.Status = model.CallDelivered
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Infof("table %s confirmed delivery of call %d", call.TableName, call.ID)
	d.afterTerminal(ctx, call, "confirmed by table", true)
	return call, nil
}

// finishLatest applies fn to the newest pending call of the table under
// the table and row locks and persists the call in one transaction.
func (d *Dispatcher) finishLatest(ctx context.Context, tableID int64, fn func(context.Context, *repository.Repository, *model.Row, *model.RowCall) error) (*model.RowCall, error) {
	unlockTable := d.locks.Lock(tableKey(tableID))
	defer unlockTable()

	call, err := d.repo.Calls.LatestPendingByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if call.RowID != nil {
		unlockRow := d.locks.Lock(rowKey(*call.RowID))
		defer unlockRow()
	}

	err = d.repo.InTx(ctx, func(tx *repository.Repository) error {
		fresh, err := tx.Calls.GetByID(ctx, call.ID)
		if err != nil {
			return err
		}
		if fresh.Status != model.CallPending {
			return repository.ErrCallNotFound
		}
		call = fresh
		var row *model.Row
		if call.RowID != nil {
			if row, err = tx.Rows.GetByIDForUpdate(ctx, *call.RowID); err != nil {
				return err
			}
		}
		if err := fn(ctx, tx, row, call); err != nil {
			return err
		}
		return tx.Calls.UpdateState(ctx, call)
	})
	if err != nil {
		return nil, err
	}
	return call, nil
}

// releaseDelivered frees the slot of a delivered pallet: the lowest slot
// in transit, or the lowest occupied slot when the pickup was never
// reported.  A row without such a slot is logged and left alone.
func (d *Dispatcher) releaseDelivered(ctx context.Context, tx *repository.Repository, row *model.Row, call *model.RowCall) error {
	if row == nil {
		d.log.Warnf("call %d has no row; no slot to free", call.ID)
		return nil
	}
	slot := row.LowestSlot(model.SlotInTransit)
	if slot == nil {
		slot = row.LowestSlot(model.SlotOccupied)
	}
	if slot == nil {
		d.log.Warnf("row %s has no pallet to free for call %d", row.Name, call.ID)
		return nil
	}
	if err := tx.Rows.SetSlotState(ctx, slot.ID, model.SlotEmpty); err != nil {
		return fmt.Errorf("free slot %d: %w", slot.ID, err)
	}
	slot.State = model.SlotEmpty
	return nil
}

// AddPallet stores a pallet in the highest empty slot of the row.
func (d *Dispatcher) AddPallet(ctx context.Context, rowID int64) (*model.Slot, error) {
	slot, err := d.mutateRow(ctx, rowID, func(ctx context.Context, tx *repository.Repository, row *model.Row) (*model.Slot, error) {
		if row.Article == "" {
			return nil, ErrArticleMissing
		}
		slot := row.HighestSlot(model.SlotEmpty)
		if slot == nil {
			return nil, ErrRowFull
		}
		if err := tx.Rows.SetSlotState(ctx, slot.ID, model.SlotOccupied); err != nil {
			return nil, err
		}
		slot.State = model.SlotOccupied
		d.log.Infof("pallet added to row %s at position %d", row.Name, slot.Position)
		return slot, nil
	})
	if err != nil {
		return nil, err
	}
	d.metrics.palletMutation("add")
	d.afterRowChange(ctx, rowID)
	return slot, nil
}

// RemovePallet takes the pallet at the lowest occupied position out of
// the row.  A row without an occupied slot gives up its lowest in-transit
// slot instead, which clears the slot a call cancelled after pickup left
// behind.
func (d *Dispatcher) RemovePallet(ctx context.Context, rowID int64) (*model.Slot, error) {
	slot, err := d.mutateRow(ctx, rowID, func(ctx context.Context, tx *repository.Repository, row *model.Row) (*model.Slot, error) {
		slot := row.LowestSlot(model.SlotOccupied)
		if slot == nil {
			slot = row.LowestSlot(model.SlotInTransit)
			if slot == nil {
				return nil, ErrRowEmpty
			}
			d.log.Warnf("row %s holds no waiting pallet; clearing in-transit slot at position %d", row.Name, slot.Position)
		}
		if err := tx.Rows.SetSlotState(ctx, slot.ID, model.SlotEmpty); err != nil {
			return nil, err
		}
		slot.State = model.SlotEmpty

		dispatched, err := tx.Calls.CountDispatchedPending(ctx, rowID)
		if err != nil {
			return nil, err
		}
		if AvailablePallets(row, dispatched) < 0 {
			d.log.Warnf("row %s now holds %d pallets for %d dispatched calls", row.Name, row.OccupiedCount(), dispatched)
		}
		d.log.Infof("pallet removed from row %s at position %d", row.Name, slot.Position)
		return slot, nil
	})
	if err != nil {
		return nil, err
	}
	d.metrics.palletMutation("remove")
	d.afterRowChange(ctx, rowID)
	return slot, nil
}

// SetArticle assigns the article label of a row.  The row must not hold
// any pallet.
func (d *Dispatcher) SetArticle(ctx context.Context, rowID int64, article string) error {
	article = strings.TrimSpace(article)
	if article == "" {
		return ErrArticleRequired
	}
	_, err := d.mutateRow(ctx, rowID, func(ctx context.Context, tx *repository.Repository, row *model.Row) (*model.Slot, error) {
		if row.CountState(model.SlotOccupied) > 0 {
			return nil, ErrRowNotEmpty
		}
		if err := tx.Rows.SetArticle(ctx, rowID, article); err != nil {
			return nil, err
		}
		d.log.Infof("row %s article set to %q", row.Name, article)
		return nil, nil
	})
	if err != nil {
		return err
	}
	d.metrics.palletMutation("set_article")
	d.broadcast()
	return nil
}

// SetStrategy stores the row selection strategy.  raw is matched case
// insensitively; dashes are accepted for underscores.
func (d *Dispatcher) SetStrategy(ctx context.Context, raw string) (model.Strategy, error) {
	strategy, ok := model.ParseStrategy(raw)
	if !ok {
		return "", ErrInvalidStrategy
	}
	if err := d.repo.Settings.SetStrategy(ctx, strategy); err != nil {
		return "", fmt.Errorf("store strategy: %w", err)
	}
	d.log.Infof("row selection strategy set to %s", strategy)
	d.broadcast()
	return strategy, nil
}

// mutateRow runs fn on the locked row inside a transaction.
func (d *Dispatcher) mutateRow(ctx context.Context, rowID int64, fn func(context.Context, *repository.Repository, *model.Row) (*model.Slot, error)) (*model.Slot, error) {
	unlock := d.locks.Lock(rowKey(rowID))
	defer unlock()

	var slot *model.Slot
	err := d.repo.InTx(ctx, func(tx *repository.Repository) error {
		row, err := tx.Rows.GetByIDForUpdate(ctx, rowID)
		if err != nil {
			return err
		}
		slot, err = fn(ctx, tx, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	if slot != nil {
		out := *slot
		return &out, nil
	}
	return nil, nil
}

func (d *Dispatcher) afterRowChange(ctx context.Context, rowID int64) {
	d.broadcast()
	if _, err := d.TryDispatch(ctx, rowID); err != nil {
		d.log.Errorf("dispatch for row %d: %v", rowID, err)
	}
}

// afterTerminal runs the follow-ups of a call reaching a terminal state.
// The pallet promised to the call is free again, so the row gets another
// dispatch attempt unless redispatch is false.
func (d *Dispatcher) afterTerminal(ctx context.Context, call *model.RowCall, reason string, redispatch bool) {
	d.publish(call, reason)
	if call.RowID == nil || !redispatch {
		d.broadcast()
		return
	}
	d.afterRowChange(ctx, *call.RowID)
}

// broadcast tells the notifier the hall changed without waiting for it.
func (d *Dispatcher) broadcast() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := d.notifier.HallChanged(ctx); err != nil {
			d.log.Warnf("hall change notification failed: %v", err)
		}
	}()
}

func (d *Dispatcher) publish(call *model.RowCall, reason string) {
	ev := queue.RowCallEvent{
		CallID:     call.ID,
		Table:      call.TableName,
		Row:        call.RowName,
		Article:    call.Article,
		OrderID:    call.OrderID,
		Status:     string(call.Status),
		Action:     call.LastAction,
		Reason:     reason,
		OccurredAt: d.now().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := d.events.PublishCallEvent(ctx, ev); err != nil {
			d.log.Warnf("publish event for call %d failed: %v", ev.CallID, err)
		}
	}()
}

// cancelRemote cancels a fleet order in the background.
func (d *Dispatcher) cancelRemote(orderID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		start := time.Now()
		err := d.gateway.CancelOrder(ctx, orderID)
		d.metrics.gatewayLatency("cancel_order", start)
		if err != nil {
			d.log.Warnf("cancel order %d at the fleet failed: %v", orderID, err)
			return
		}
		d.log.Infof("order %d cancelled at the fleet", orderID)
	}()
}
