package snapshot

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/octobridge/octobridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchAccounts(ctx context.Context) (map[string]types.AccountSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]types.AccountSnapshot), args.Error(1)
}

func TestCoordinatorRefresh(t *testing.T) {
	src := &mockSource{}
	c := NewCoordinator(src, time.Minute)

	first := map[string]types.AccountSnapshot{
		"A-1": {ElectricityBalance: 12.5},
	}
	src.On("FetchAccounts", mock.Anything).Return(first, nil).Once()

	var notified int
	c.Subscribe(func() { notified++ })

	assert.Nil(t, c.Data())
	assert.False(t, c.LastUpdateSuccess())

	c.Refresh(context.Background())
	require.NotNil(t, c.Data())
	assert.Equal(t, 12.5, c.Data()["A-1"].ElectricityBalance)
	assert.True(t, c.LastUpdateSuccess())
	assert.Equal(t, 1, notified)

	// wholesale replacement: the new map does not merge with the old one
	second := map[string]types.AccountSnapshot{
		"B-2": {GasBalance: 3.0},
	}
	src.On("FetchAccounts", mock.Anything).Return(second, nil).Once()
	c.Refresh(context.Background())
	_, hasOld := c.Data()["A-1"]
	assert.False(t, hasOld)
	assert.Equal(t, 3.0, c.Data()["B-2"].GasBalance)
	assert.Equal(t, 2, notified)

	src.AssertExpectations(t)
}

func TestCoordinatorRefreshFailureKeepsData(t *testing.T) {
	src := &mockSource{}
	c := NewCoordinator(src, time.Minute)

	data := map[string]types.AccountSnapshot{"A-1": {}}
	src.On("FetchAccounts", mock.Anything).Return(data, nil).Once()
	c.Refresh(context.Background())
	require.True(t, c.LastUpdateSuccess())

	var notified int
	c.Subscribe(func() { notified++ })

	src.On("FetchAccounts", mock.Anything).Return(nil, errors.New("api down")).Once()
	c.Refresh(context.Background())

	// old data survives, success flag drops, subscribers still fire
	assert.False(t, c.LastUpdateSuccess())
	assert.NotNil(t, c.Data())
	assert.Equal(t, 1, notified)

	src.AssertExpectations(t)
}

func TestCoordinatorUnsubscribe(t *testing.T) {
	src := &mockSource{}
	c := NewCoordinator(src, time.Minute)
	src.On("FetchAccounts", mock.Anything).Return(map[string]types.AccountSnapshot{}, nil)

	var a, b int
	unsubA := c.Subscribe(func() { a++ })
	c.Subscribe(func() { b++ })

	c.Refresh(context.Background())
	unsubA()
	c.Refresh(context.Background())

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestCoordinatorRunHonorsRequestRefresh(t *testing.T) {
	src := &mockSource{}
	// long interval so only the initial refresh and the requested one happen
	c := NewCoordinator(src, time.Hour)
	src.On("FetchAccounts", mock.Anything).Return(map[string]types.AccountSnapshot{}, nil)

	refreshed := make(chan struct{}, 10)
	c.Subscribe(func() { refreshed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// initial refresh
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial refresh")
	}

	c.RequestRefresh(ctx)
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for requested refresh")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/accounts.json"
	body := `{"A-1":{"products":[{"code":"go","type":"Simple","validFrom":"2025-01-01T00:00:00Z","grossRate":"2550"}],"electricityBalance":10}}`
	require.NoError(t, writeFile(path, body))

	fs := NewFileSource(path)
	accounts, err := fs.FetchAccounts(context.Background())
	require.NoError(t, err)
	require.Contains(t, accounts, "A-1")
	assert.Equal(t, "go", accounts["A-1"].Products[0].Code)
	assert.Equal(t, 10.0, accounts["A-1"].ElectricityBalance)

	_, err = NewFileSource(dir + "/missing.json").FetchAccounts(context.Background())
	assert.Error(t, err)

	require.NoError(t, writeFile(path, "{not json"))
	_, err = fs.FetchAccounts(context.Background())
	assert.Error(t, err)
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o600)
}
