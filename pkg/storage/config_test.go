package storage

import (
	"context"
	"testing"
	"time"

	"github.com/octobridge/octobridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var db Database = Noop{}

	require.NoError(t, db.UpsertRate(ctx, "A-1", types.RatePoint{TS: time.Now()}))

	rates, err := db.GetRateHistory(ctx, "A-1", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rates)

	ts, err := db.GetLatestRateTime(ctx, "A-1")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	require.NoError(t, db.InsertDeviceAction(ctx, "A-1", types.DeviceAction{Timestamp: time.Now()}))

	actions, err := db.GetDeviceActionHistory(ctx, "A-1", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, actions)

	require.NoError(t, db.Close())
}

func TestFirestoreGetCollectionEmptyAccount(t *testing.T) {
	f := &FirestoreProvider{}
	_, err := f.getCollection("", "rate_history")
	assert.Error(t, err)
}
