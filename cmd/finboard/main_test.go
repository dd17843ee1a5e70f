package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finboard/internal/config"
	"finboard/internal/finance"
	"finboard/internal/httpapi"
	"finboard/internal/log"
	"finboard/internal/session"
	"finboard/internal/state"
)

// A watch loop holding a stale token must exit with an auth error rather
// than wait for a shutdown signal that will never come.
func TestWatchExitsOnExpiredSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "token expirado"}`))
	}))
	defer server.Close()

	store := state.NewMemoryStore()
	if err := state.SetJSON(store, state.KeyAccessToken, "stale-token"); err != nil {
		t.Fatal(err)
	}

	api := httpapi.NewClient(server.URL, server.Client(), nil)
	sess := session.NewStore(api, store, nil)

	a := &app{
		cfg:     &config.Config{APIBaseURL: server.URL, CleanupInterval: time.Hour},
		logger:  log.New(log.DefaultConfig()),
		store:   store,
		session: sess,
		finance: finance.NewClient(api, sess, store, nil),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.cmdWatch([]string{"-interval", "1h"})
	}()

	select {
	case err := <-errCh:
		if !httpapi.IsAuthError(err) {
			t.Errorf("cmdWatch() error = %v, want auth error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cmdWatch did not return on an expired session")
	}
}
