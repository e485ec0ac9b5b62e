package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startPaypack(t *testing.T, authCode int) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/agents/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(authCode)
		if authCode != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "invalid client credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access":  "tool-access-token",
			"refresh": "tool-refresh-token",
			"expires": time.Now().Add(time.Hour).Unix(),
		})
	})
	mux.HandleFunc("GET /api/transactions/find/{ref}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref": r.PathValue("ref"), "status": "successful", "amount": 500, "kind": "CASHIN",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("PAYPACK_BASE_URL", srv.URL+"/api")
	t.Setenv("PAYPACK_CLIENT_ID", "client-id")
	t.Setenv("PAYPACK_CLIENT_SECRET", "client-secret")
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("LOG_LEVEL", "disabled")
}

func TestRunUsage(t *testing.T) {
	require.Equal(t, 2, run(nil))

	startPaypack(t, http.StatusOK)
	require.Equal(t, 2, run([]string{"bogus"}))
	require.Equal(t, 2, run([]string{"watch"}))
}

func TestRunWatchSettles(t *testing.T) {
	startPaypack(t, http.StatusOK)
	require.Equal(t, 0, run([]string{"watch", "abc123"}))
}

func TestRunReportsFailureAsExitCode(t *testing.T) {
	startPaypack(t, http.StatusUnauthorized)
	require.Equal(t, 1, run([]string{"token"}))
	require.Equal(t, 1, run([]string{"status", "abc123"}))
}
