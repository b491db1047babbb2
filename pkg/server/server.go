// Package server exposes the account sensors, device switches, and stored
// history over an HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/device"
	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/sensor"
	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"
)

// Server handles the HTTP API. It reads account state from the snapshot
// provider, toggles devices through the device map, and serves history from
// storage.
type Server struct {
	provider snapshot.Provider
	devices  *device.Map
	storage  storage.Database

	listenAddr string
	httpServer *http.Server
	serverName string

	oidcAudience string
	verifier     tokenVerifier
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(p snapshot.Provider, d *device.Map, s storage.Database) *Server {
	srv := &Server{
		provider:   p,
		devices:    d,
		storage:    s,
		serverName: "octobridge",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcAudience := lflag.String("oidc-audience", "", "audience/client ID to validate for Google ID tokens; empty disables auth")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.oidcAudience = *oidcAudience
		if srv.oidcAudience != "" {
			srv.verifier = googleVerifier(srv.oidcAudience)
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	apiMux.HandleFunc("GET /api/accounts/{account}/sensors", s.handleAccountSensors)
	apiMux.HandleFunc("GET /api/accounts/{account}/devices", s.handleAccountDevices)
	apiMux.HandleFunc("GET /api/accounts/{account}/history/rates", s.handleHistoryRates)
	apiMux.HandleFunc("GET /api/accounts/{account}/history/actions", s.handleHistoryActions)
	apiMux.HandleFunc("POST /api/devices/{device}/on", s.handleDeviceOn)
	apiMux.HandleFunc("POST /api/devices/{device}/off", s.handleDeviceOff)
	apiMux.HandleFunc("POST /api/refresh", s.handleRefresh)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(mux))
}

// Run starts the HTTP server and blocks until the context is canceled or an
// error occurs. It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capture server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	data := s.provider.Data()
	accounts := make([]string, 0, len(data))
	for accountNumber := range data {
		accounts = append(accounts, accountNumber)
	}
	sort.Strings(accounts)
	writeJSON(w, struct {
		Accounts          []string `json:"accounts"`
		LastUpdateSuccess bool     `json:"lastUpdateSuccess"`
	}{Accounts: accounts, LastUpdateSuccess: s.provider.LastUpdateSuccess()})
}

type sensorState struct {
	UniqueID    string         `json:"uniqueID"`
	Name        string         `json:"name"`
	Unit        string         `json:"unit,omitempty"`
	DeviceClass string         `json:"deviceClass,omitempty"`
	StateClass  string         `json:"stateClass,omitempty"`
	State       *float64       `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	Available   bool           `json:"available"`
}

func (s *Server) handleAccountSensors(w http.ResponseWriter, r *http.Request) {
	accountNumber := r.PathValue("account")
	snap, ok := s.provider.Data()[accountNumber]
	if !ok {
		writeJSONError(w, "unknown account", http.StatusNotFound)
		return
	}

	now := time.Now()
	sensors := sensor.ForAccount(accountNumber, snap, s.provider)
	states := make([]sensorState, 0, len(sensors))
	for _, sn := range sensors {
		st := sensorState{
			UniqueID:    sn.UniqueID(),
			Name:        sn.Name(),
			Unit:        sn.Unit(),
			DeviceClass: sn.DeviceClass(),
			StateClass:  sn.StateClass(),
			Attributes:  sn.Attributes(now),
			Available:   sn.Available(),
		}
		if v, ok := sn.Value(now); ok {
			st.State = &v
		}
		states = append(states, st)
	}
	writeJSON(w, states)
}

type switchState struct {
	UniqueID   string         `json:"uniqueID"`
	DeviceID   string         `json:"deviceID"`
	Name       string         `json:"name"`
	IsOn       bool           `json:"isOn"`
	Pending    bool           `json:"pending"`
	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes"`
}

func (s *Server) handleAccountDevices(w http.ResponseWriter, r *http.Request) {
	accountNumber := r.PathValue("account")
	if _, ok := s.provider.Data()[accountNumber]; !ok {
		writeJSONError(w, "unknown account", http.StatusNotFound)
		return
	}

	switches := s.devices.ForAccount(accountNumber)
	states := make([]switchState, 0, len(switches))
	for _, sw := range switches {
		states = append(states, switchState{
			UniqueID:   sw.UniqueID(),
			DeviceID:   sw.DeviceID(),
			Name:       sw.Name(),
			IsOn:       sw.IsOn(),
			Pending:    sw.Pending(),
			Available:  sw.Available(),
			Attributes: sw.Attributes(),
		})
	}
	writeJSON(w, states)
}

func (s *Server) handleDeviceOn(w http.ResponseWriter, r *http.Request) {
	s.handleDeviceToggle(w, r, true)
}

func (s *Server) handleDeviceOff(w http.ResponseWriter, r *http.Request) {
	s.handleDeviceToggle(w, r, false)
}

func (s *Server) handleDeviceToggle(w http.ResponseWriter, r *http.Request, on bool) {
	ctx := r.Context()
	deviceID := r.PathValue("device")
	sw, ok := s.devices.Switch(deviceID)
	if !ok {
		writeJSONError(w, "unknown device", http.StatusNotFound)
		return
	}

	var err error
	if on {
		err = sw.TurnOn(ctx)
	} else {
		err = sw.TurnOff(ctx)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to toggle device", slog.String("deviceID", deviceID), slog.Any("error", err))
		writeJSONError(w, "failed to toggle device", http.StatusBadGateway)
		return
	}
	writeJSON(w, switchState{
		UniqueID:   sw.UniqueID(),
		DeviceID:   sw.DeviceID(),
		Name:       sw.Name(),
		IsOn:       sw.IsOn(),
		Pending:    sw.Pending(),
		Available:  sw.Available(),
		Attributes: sw.Attributes(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.provider.RequestRefresh(r.Context())
	w.WriteHeader(http.StatusAccepted)
}
