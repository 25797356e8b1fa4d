package months

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

type staticReader []model.ClosedPeriod

func (r staticReader) ClosedMonths(context.Context) ([]model.ClosedPeriod, error) {
	return r, nil
}

func TestSnapshot_Contains(t *testing.T) {
	jan := model.BroadcastMonth{Year: 2025, Month: time.January}
	feb := model.BroadcastMonth{Year: 2025, Month: time.February}

	tracker := NewTracker(staticReader{{Month: jan, ClosedBy: "ops"}})
	set, err := tracker.Snapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, set.Contains(jan))
	assert.False(t, set.Contains(feb))
}

func TestSnapshot_Empty(t *testing.T) {
	tracker := NewTracker(staticReader{})
	set, err := tracker.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set)
}
