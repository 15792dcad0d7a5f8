// Package repository defines the data access layer of the hall.  Each
// entity has its own repository backed by raw SQL; Repository aggregates
// them and runs work in a single transaction.
//
// The sentinel errors below let higher layers distinguish missing records
// from other failures.  Handlers translate them into HTTP 404 or 409
// responses.
package repository

import "errors"

// ErrRowNotFound is returned when a hall row lookup yields no record.
var ErrRowNotFound = errors.New("row not found")

// ErrTableNotFound is returned when a work table lookup yields no record.
var ErrTableNotFound = errors.New("table not found")

// ErrCallNotFound is returned when no row call matches the lookup.
var ErrCallNotFound = errors.New("row call not found")

// ErrSlotNotFound is returned when a slot update touches no record.
var ErrSlotNotFound = errors.New("slot not found")

// ErrOrderIDAssigned is returned when an order id is written to a call
// that already carries one or is no longer pending.  Order ids are
// immutable once set.
var ErrOrderIDAssigned = errors.New("order id already assigned")
