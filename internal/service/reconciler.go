package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/repository"
)

// Outcome reports what a fleet callback did.  Matched is false when no
// pending call carries the order id; nothing changed in that case.
type Outcome struct {
	Matched    bool
	CallID     int64
	CallStatus model.CallStatus
	Effect     string
}

// Callback effects.
const (
	EffectNone      = "none"
	EffectPickedUp  = "picked_up"
	EffectDelivered = "delivered"
	EffectCancelled = "cancelled"
)

// Reconciler applies fleet callbacks to calls and slots.  It shares the
// locks of its Dispatcher, so a callback and a dispatch attempt on the
// same row never interleave.
type Reconciler struct {
	d *Dispatcher
}

// NewReconciler returns a Reconciler working on the state of d.
func NewReconciler(d *Dispatcher) *Reconciler {
	return &Reconciler{d: d}
}

// Handle reconciles one callback.  Unknown order ids, actions and statuses
// are logged and never returned as errors; the returned error is reserved
// for storage failures.
func (r *Reconciler) Handle(ctx context.Context, ev model.FleetEvent) (Outcome, error) {
	d := r.d
	action := model.ParseFleetAction(ev.Action)
	status := model.ParseFleetStatus(ev.Status)
	d.log.Infof("fleet callback: order=%d action=%q status=%q row=%q table=%q",
		ev.OrderID, ev.Action, ev.Status, ev.Row, ev.Table)

	call, err := d.repo.Calls.FindPendingByOrderID(ctx, ev.OrderID)
	if errors.Is(err, repository.ErrCallNotFound) {
		d.log.Warnf("no pending call for order %d (row %q, table %q)", ev.OrderID, ev.Row, ev.Table)
		d.metrics.callback(action.String(), status.String(), false)
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("find call for order %d: %w", ev.OrderID, err)
	}

	call, effect, err := r.reconcile(ctx, call, ev, action, status)
	if errors.Is(err, repository.ErrCallNotFound) {
		d.log.Warnf("call for order %d was closed before the callback applied", ev.OrderID)
		d.metrics.callback(action.String(), status.String(), false)
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile order %d: %w", ev.OrderID, err)
	}
	d.metrics.callback(action.String(), status.String(), true)

	if call.Status.Terminal() {
		// a lane the fleet reported empty waits for the operator before
		// the next call goes out
		redispatch := status != model.StatusPalletNotFound
		d.afterTerminal(ctx, call, fmt.Sprintf("fleet %s/%s", action, status), redispatch)
	} else {
		d.broadcast()
	}
	return Outcome{Matched: true, CallID: call.ID, CallStatus: call.Status, Effect: effect}, nil
}

// reconcile re-reads the call under its row lock and applies the callback
// in one transaction.
func (r *Reconciler) reconcile(ctx context.Context, call *model.RowCall, ev model.FleetEvent, action model.FleetAction, status model.FleetStatus) (*model.RowCall, string, error) {
	d := r.d
	if call.RowID != nil {
		unlock := d.locks.Lock(rowKey(*call.RowID))
		defer unlock()
	}

	var effect string
	err := d.repo.InTx(ctx, func(tx *repository.Repository) error {
		fresh, err := tx.Calls.GetByID(ctx, call.ID)
		if err != nil {
			return err
		}
		if fresh.Status != model.CallPending {
			return repository.ErrCallNotFound
		}
		call = fresh
		call.LastAction = ev.Action
		call.LastStatus = ev.Status
		r.checkNames(call, ev)

		var row *model.Row
		if call.RowID != nil {
			if row, err = tx.Rows.GetByIDForUpdate(ctx, *call.RowID); err != nil {
				return err
			}
		}
		if effect, err = r.apply(ctx, tx, row, call, action, status); err != nil {
			return err
		}
		return tx.Calls.UpdateState(ctx, call)
	})
	return call, effect, err
}

// apply performs the transition for one callback and returns its effect.
// A missing slot skips the slot change but never the call transition.
func (r *Reconciler) apply(ctx context.Context, tx *repository.Repository, row *model.Row, call *model.RowCall, action model.FleetAction, status model.FleetStatus) (string, error) {
	d := r.d
	if status == model.StatusOrderCanceled {
		d.log.Infof("order %d cancelled by the fleet; call %d cancelled", *call.OrderID, call.ID)
		call.Status = model.CallCancelled
		return EffectCancelled, nil
	}

	switch action {
	case model.ActionPickup:
		switch status {
		case model.StatusOK:
			if err := r.move(ctx, tx, row, call, model.SlotOccupied, model.SlotInTransit); err != nil {
				return "", err
			}
			return EffectPickedUp, nil
		case model.StatusPalletNotFound:
			d.log.Warnf("fleet found no pallet in row %s for call %d; call cancelled", call.RowName, call.ID)
			call.Status = model.CallCancelled
			return EffectCancelled, nil
		}
		d.log.Warnf("unhandled pickup status %q for call %d", call.LastStatus, call.ID)
	case model.ActionDrop:
		switch status {
		case model.StatusOK:
			if err := d.releaseDelivered(ctx, tx, row, call); err != nil {
				return "", err
			}
			call.Status = model.CallDelivered
			d.log.Infof("call %d delivered to table %s", call.ID, call.TableName)
			return EffectDelivered, nil
		case model.StatusOccupied:
			d.log.Infof("table %s is occupied; fleet waits to drop call %d", call.TableName, call.ID)
			return EffectNone, nil
		case model.StatusPalletNotFound:
			d.log.Warnf("unexpected pallet_not_found on drop for call %d", call.ID)
			return EffectNone, nil
		}
		d.log.Warnf("unhandled drop status %q for call %d", call.LastStatus, call.ID)
	default:
		d.log.Warnf("unknown fleet action %q for call %d (status %q)", call.LastAction, call.ID, call.LastStatus)
	}
	return EffectNone, nil
}

// move changes the lowest slot in state from to state to.
func (r *Reconciler) move(ctx context.Context, tx *repository.Repository, row *model.Row, call *model.RowCall, from, to model.SlotState) error {
	if row == nil {
		r.d.log.Warnf("call %d has no row; slot change skipped", call.ID)
		return nil
	}
	slot := row.LowestSlot(from)
	if slot == nil {
		r.d.log.Warnf("row %s has no %s slot for call %d", row.Name, from, call.ID)
		return nil
	}
	if err := tx.Rows.SetSlotState(ctx, slot.ID, to); err != nil {
		return fmt.Errorf("set slot %d %s: %w", slot.ID, to, err)
	}
	slot.State = to
	return nil
}

func (r *Reconciler) checkNames(call *model.RowCall, ev model.FleetEvent) {
	if namesDiffer(ev.Row, call.RowName) {
		r.d.log.Warnf("callback row %q differs from row %q of call %d", ev.Row, call.RowName, call.ID)
	}
	if namesDiffer(ev.Table, call.TableName) {
		r.d.log.Warnf("callback table %q differs from table %q of call %d", ev.Table, call.TableName, call.ID)
	}
}

// namesDiffer reports whether a name echoed by the fleet disagrees with
// the stored one.  Blank names and case differences never count.
func namesDiffer(got, want string) bool {
	return got != "" && want != "" && !strings.EqualFold(got, want)
}
