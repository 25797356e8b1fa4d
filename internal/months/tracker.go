// Package months answers "is this broadcast month locked?" for the
// reconciler and the operator close path.
package months

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// Reader supplies the persisted closed-month rows.
type Reader interface {
	ClosedMonths(ctx context.Context) ([]model.ClosedPeriod, error)
}

// ClosedSet is a point-in-time snapshot of closed months, keyed by the
// display key.
type ClosedSet map[string]model.ClosedPeriod

// Contains reports whether m is closed in this snapshot.
func (s ClosedSet) Contains(m model.BroadcastMonth) bool {
	_, ok := s[m.String()]
	return ok
}

// Tracker reads closed-month state. A snapshot is taken once per import
// run so every month in the batch is gated against the same state.
type Tracker struct {
	reader Reader
}

// NewTracker wraps a closed-month reader.
func NewTracker(reader Reader) *Tracker {
	return &Tracker{reader: reader}
}

// Snapshot fetches the current closed set.
func (t *Tracker) Snapshot(ctx context.Context) (ClosedSet, error) {
	rows, err := t.reader.ClosedMonths(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "months: snapshot")
	}
	set := make(ClosedSet, len(rows))
	for _, cp := range rows {
		set[cp.Month.String()] = cp
	}
	return set, nil
}
