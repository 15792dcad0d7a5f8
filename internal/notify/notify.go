// Package notify broadcasts "hall state changed" signals.  Sinks are
// fire-and-forget from the caller's point of view: the dispatch service
// runs them in the background and only logs their errors.
package notify

import (
	"context"
	"errors"
)

// Sink receives hall change signals.
type Sink interface {
	HallChanged(ctx context.Context) error
}

// Multi fans a signal out to several sinks.  Every sink is called even
// when an earlier one fails; the errors are joined.
type Multi []Sink

// HallChanged implements Sink.
func (m Multi) HallChanged(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.HallChanged(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
