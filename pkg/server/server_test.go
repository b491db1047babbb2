package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/octobridge/octobridge/pkg/device"
	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"
	"github.com/octobridge/octobridge/pkg/storage/storagemock"
	"github.com/octobridge/octobridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testProvider() *snapshot.Static {
	return snapshot.NewStatic(map[string]types.AccountSnapshot{
		"A-1": {
			Products: []types.Product{{
				Code:      "oe-go",
				Name:      "Octopus Go",
				Type:      types.ProductTypeSimple,
				ValidFrom: "2025-01-01T00:00:00Z",
				GrossRate: "2550",
			}},
			ElectricityBalance: 12.5,
			Devices: []types.Device{{
				ID:     "dev-1",
				Name:   "Zoe",
				Status: types.DeviceStatus{IsSuspended: true},
			}},
		},
	})
}

func newTestServer(t *testing.T, db storage.Database, ctrl device.Control) (*Server, *snapshot.Static) {
	t.Helper()
	if db == nil {
		db = storage.Noop{}
	}
	if ctrl == nil {
		ctrl = device.DryRun{}
	}
	provider := testProvider()
	srv := &Server{
		provider:   provider,
		devices:    device.NewMap(provider, ctrl, db),
		storage:    db,
		serverName: "octobridge",
	}
	return srv, provider
}

func TestListAccounts(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Accounts          []string `json:"accounts"`
		LastUpdateSuccess bool     `json:"lastUpdateSuccess"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"A-1"}, resp.Accounts)
	assert.True(t, resp.LastUpdateSuccess)
	assert.Equal(t, "octobridge", rec.Header().Get("Server"))
}

func TestAccountSensors(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-1/sensors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var states []sensorState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.NotEmpty(t, states)

	ids := make(map[string]sensorState, len(states))
	for _, st := range states {
		ids[st.UniqueID] = st
	}
	price, ok := ids["octopus_A-1_electricity_price"]
	require.True(t, ok)
	require.NotNil(t, price.State)
	assert.InDelta(t, 0.255, *price.State, 1e-9)
	assert.True(t, price.Available)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-9/sensors", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountDevices(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-1/devices", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var states []switchState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "dev-1", states[0].DeviceID)
	assert.False(t, states[0].IsOn)
	assert.True(t, states[0].Available)
}

func TestDeviceToggle(t *testing.T) {
	ctrl := &device.MockControl{}
	ctrl.On("ChangeDeviceSuspension", mock.Anything, "dev-1", types.ActionUnsuspend).Return(true, nil).Once()

	srv, _ := newTestServer(t, nil, ctrl)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/devices/dev-1/on", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var state switchState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.IsOn)
	assert.True(t, state.Pending)
	ctrl.AssertExpectations(t)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/devices/dev-9/on", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeviceToggleFailure(t *testing.T) {
	ctrl := &device.MockControl{}
	ctrl.On("ChangeDeviceSuspension", mock.Anything, "dev-1", types.ActionUnsuspend).Return(false, assert.AnError).Once()

	srv, _ := newTestServer(t, nil, ctrl)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/devices/dev-1/on", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHistoryRates(t *testing.T) {
	db := &storagemock.MockDatabase{}
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	db.On("GetRateHistory", mock.Anything, "A-1", start, end).Return([]types.RatePoint{
		{AccountNumber: "A-1", Fuel: types.FuelElectricity, TS: start, EURPerKWH: 0.255},
	}, nil).Once()

	srv, _ := newTestServer(t, db, nil)
	h := srv.setupHandler()

	url := "/api/accounts/A-1/history/rates?start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=86400", rec.Header().Get("Cache-Control"))

	var rates []types.RatePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	require.Len(t, rates, 1)
	assert.Equal(t, 0.255, rates[0].EURPerKWH)
	db.AssertExpectations(t)
}

func TestHistoryRatesBadRange(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-1/history/rates?start=bogus&end=2026-03-01T00:00:00Z", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-1/history/rates?start=2026-03-02T00:00:00Z&end=2026-03-01T00:00:00Z", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryActions(t *testing.T) {
	db := &storagemock.MockDatabase{}
	db.On("GetDeviceActionHistory", mock.Anything, "A-1", mock.Anything, mock.Anything).Return([]types.DeviceAction{
		{AccountNumber: "A-1", DeviceID: "dev-1", Action: types.ActionSuspend, Success: true},
	}, nil).Once()

	srv, _ := newTestServer(t, db, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A-1/history/actions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var actions []types.DeviceAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionSuspend, actions[0].Action)
}

func TestRefreshEndpoint(t *testing.T) {
	srv, provider := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, provider.RefreshRequests())
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	srv.verifier = func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
		if rawIDToken != "good" {
			return nil, assert.AnError
		}
		return &oidc.IDToken{Subject: "user-1"}, nil
	}
	h := srv.setupHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// healthz is never behind auth
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
