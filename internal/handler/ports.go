package handler

import (
	"context"

	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/service"
)

// Calls is the part of the dispatcher used by the kiosk API.
type Calls interface {
	RequestRow(ctx context.Context, tableID, rowID int64) (*service.RequestResult, error)
	RequestArticle(ctx context.Context, tableID int64, article string) (*service.RequestResult, error)
	CancelCall(ctx context.Context, tableID int64) (*model.RowCall, error)
	ConfirmDelivered(ctx context.Context, tableID int64) (*model.RowCall, error)
}

// Operations is the part of the dispatcher used by the operator console.
type Operations interface {
	AddPallet(ctx context.Context, rowID int64) (*model.Slot, error)
	RemovePallet(ctx context.Context, rowID int64) (*model.Slot, error)
	SetArticle(ctx context.Context, rowID int64, article string) error
	SetStrategy(ctx context.Context, raw string) (model.Strategy, error)
	TryDispatch(ctx context.Context, rowID int64) (*model.RowCall, error)
}

// Views builds the read models.
type Views interface {
	Hall(ctx context.Context) (*service.HallView, error)
	Tables(ctx context.Context) ([]service.TableView, error)
	Table(ctx context.Context, tableID int64) (*service.TableView, error)
	Status(ctx context.Context) (*service.StatusView, error)
}

// FleetEvents applies fleet callbacks.
type FleetEvents interface {
	Handle(ctx context.Context, ev model.FleetEvent) (service.Outcome, error)
}
