package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storepay/internal/config"
	"storepay/internal/core/reconcile"
	httpx "storepay/internal/http"
	"storepay/internal/provider/paypack"
	"storepay/internal/services/order"
	"storepay/internal/services/payment"
	"storepay/internal/store/memory"

	"github.com/stretchr/testify/require"
)

// paypackAPI scripts the provider: cash-in always answers ref abc123 and
// find walks through statuses.
type paypackAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	statuses []string
}

func (p *paypackAPI) hit(name string) {
	p.mu.Lock()
	p.calls[name]++
	p.mu.Unlock()
}

func (p *paypackAPI) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *paypackAPI) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *paypackAPI) handler() http.Handler {
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/agents/authorize", func(w http.ResponseWriter, r *http.Request) {
		p.hit("authorize")
		reply(w, map[string]any{"access": "access-1", "refresh": "refresh-1", "expires": time.Now().Add(time.Hour).Unix()})
	})
	mux.HandleFunc("POST /api/transactions/cashin", func(w http.ResponseWriter, r *http.Request) {
		p.hit("cashin")
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, map[string]any{"ref": "abc123", "status": "pending", "amount": 500, "kind": "CASHIN"})
	})
	mux.HandleFunc("GET /api/transactions/find/{ref}", func(w http.ResponseWriter, r *http.Request) {
		p.hit("find")
		p.mu.Lock()
		status := p.statuses[0]
		if len(p.statuses) > 1 {
			p.statuses = p.statuses[1:]
		}
		p.mu.Unlock()
		reply(w, map[string]any{"ref": r.PathValue("ref"), "status": status, "amount": 500, "kind": "CASHIN"})
	})
	return mux
}

func startStack(t *testing.T, statuses ...string) (*paypackAPI, *httptest.Server, *payment.Service) {
	t.Helper()
	api := &paypackAPI{calls: map[string]int{}, statuses: statuses}
	provider := httptest.NewServer(api.handler())
	t.Cleanup(provider.Close)

	cfg := config.Cfg{
		App: config.AppCfg{Env: "test", CORSOrigins: []string{"*"}},
		Paypack: config.PaypackCfg{
			BaseURL:      provider.URL + "/api",
			ClientID:     "id",
			ClientSecret: "secret",
			TimeoutSec:   5,
			TokenSkew:    time.Second,
		},
		Payment: config.PaymentCfg{MinAmount: 100},
		Poll:    config.PollCfg{Interval: 20 * time.Millisecond, MaxAttempts: 10},
	}

	gateway, _ := paypack.New(cfg, nil)
	svc := payment.NewService(gateway, memory.NewPaymentRepository(),
		reconcile.NewPoller(gateway, cfg.Poll.Interval, cfg.Poll.MaxAttempts))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterDependencies{
		Config:         cfg,
		PaymentService: svc,
		OrderService:   order.NewService(),
	}))
	t.Cleanup(srv.Close)
	return api, srv, svc
}

func call(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// TestCheckoutEndToEnd walks an order through payment until the provider
// confirms it, and checks that polling ends with the confirmation.
func TestCheckoutEndToEnd(t *testing.T) {
	api, srv, svc := startStack(t, "pending", "successful")

	code, body := call(t, http.MethodPost, srv.URL+"/api/orders",
		`{"items":[{"productId":"p1","quantity":1,"price":500}],"shippingAddress":"Kigali"}`)
	require.Equal(t, http.StatusCreated, code)
	orderID := body["data"].(map[string]any)["orderId"].(string)

	code, body = call(t, http.MethodPost, srv.URL+"/api/pay",
		`{"amount":500,"phone":"0781234567","orderId":"`+orderID+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "abc123", body["reference"])
	require.Equal(t, 1, api.count("authorize"))
	require.Equal(t, 1, api.count("cashin"))

	require.Eventually(t, func() bool {
		_, body := call(t, http.MethodGet, srv.URL+"/api/payments/abc123", "")
		return body["status"] == "SUCCESS"
	}, 3*time.Second, 10*time.Millisecond)

	_, body = call(t, http.MethodGet, srv.URL+"/api/payments/abc123", "")
	require.Equal(t, true, body["success"])
	require.Equal(t, orderID, body["data"].(map[string]any)["orderId"])

	require.Eventually(t, func() bool { return svc.Watching() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 2, api.count("find"), "polling stops at the first terminal status")
	require.Equal(t, 1, api.count("authorize"), "token is reused for every poll")
}

func TestPaymentBelowMinimumNeverReachesProvider(t *testing.T) {
	api, srv, _ := startStack(t, "pending")

	code, body := call(t, http.MethodPost, srv.URL+"/api/pay", `{"amount":50,"phone":"0781234567"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "minimum amount is 100 RWF", body["message"])
	require.Equal(t, 0, api.total())
}

func TestLiveStatusQuery(t *testing.T) {
	api, srv, _ := startStack(t, "failed")

	code, body := call(t, http.MethodGet, srv.URL+"/api/transaction/xyz789", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "FAILED", body["status"])
	require.Equal(t, "xyz789", body["reference"])
	require.Equal(t, 1, api.count("find"))
}
