package paypack

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storepay/internal/config"
)

// fakeProvider is an in-process Paypack API that counts calls per endpoint.
type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies map[string][]map[string]any
	tokens []string // bearer tokens seen on cash-in / find

	authStatus    int
	authDelay     time.Duration
	refreshStatus int
	cashInStatus  []int // consumed one per call, last one repeats
	cashInBody    string
	findStatuses  []string
	findCode      int
	issued        int
	expiresIn     time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:         map[string]int{},
		bodies:        map[string][]map[string]any{},
		authStatus:    http.StatusOK,
		refreshStatus: http.StatusOK,
		cashInStatus:  []int{http.StatusOK},
		cashInBody:    `{"ref":"abc123","status":"pending","amount":500,"kind":"CASHIN"}`,
		findCode:      http.StatusOK,
		expiresIn:     time.Hour,
	}
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProvider) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeProvider) record(name string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if r.Body != nil && r.Method == http.MethodPost {
		var m map[string]any
		if json.NewDecoder(r.Body).Decode(&m) == nil {
			f.bodies[name] = append(f.bodies[name], m)
		}
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		f.tokens = append(f.tokens, strings.TrimPrefix(auth, "Bearer "))
	}
}

func (f *fakeProvider) issue(w http.ResponseWriter) {
	f.mu.Lock()
	f.issued++
	n := f.issued
	exp := time.Now().Add(f.expiresIn).Unix()
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  "access-token-" + string(rune('a'+n-1)),
		"refresh": "refresh-token-" + string(rune('a'+n-1)),
		"expires": exp,
	})
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/agents/authorize", func(w http.ResponseWriter, r *http.Request) {
		f.record("authorize", r)
		if f.authDelay > 0 {
			time.Sleep(f.authDelay)
		}
		if f.authStatus != http.StatusOK {
			writeJSON(w, f.authStatus, map[string]any{"message": "invalid client credentials"})
			return
		}
		f.issue(w)
	})
	mux.HandleFunc("GET /api/auth/agents/refresh/{token}", func(w http.ResponseWriter, r *http.Request) {
		f.record("refresh", r)
		if f.refreshStatus != http.StatusOK {
			writeJSON(w, f.refreshStatus, map[string]any{"message": "refresh token expired"})
			return
		}
		f.issue(w)
	})
	mux.HandleFunc("POST /api/transactions/cashin", func(w http.ResponseWriter, r *http.Request) {
		f.record("cashin", r)
		f.mu.Lock()
		code := f.cashInStatus[0]
		if len(f.cashInStatus) > 1 {
			f.cashInStatus = f.cashInStatus[1:]
		}
		body := f.cashInBody
		f.mu.Unlock()
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("GET /api/transactions/find/{ref}", func(w http.ResponseWriter, r *http.Request) {
		f.record("find", r)
		f.mu.Lock()
		code := f.findCode
		status := "PENDING"
		if len(f.findStatuses) > 0 {
			status = f.findStatuses[0]
			if len(f.findStatuses) > 1 {
				f.findStatuses = f.findStatuses[1:]
			}
		}
		f.mu.Unlock()
		if code != http.StatusOK {
			writeJSON(w, code, map[string]any{"message": "transaction not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ref":    r.PathValue("ref"),
			"status": status,
			"amount": 500,
			"kind":   "CASHIN",
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(baseURL string) config.Cfg {
	return config.Cfg{
		Paypack: config.PaypackCfg{
			BaseURL:      baseURL + "/api",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TimeoutSec:   5,
			TokenSkew:    time.Second,
		},
		Payment: config.PaymentCfg{MinAmount: 100},
	}
}

func startFake(t *testing.T) (*fakeProvider, config.Cfg) {
	t.Helper()
	fp := newFakeProvider()
	srv := httptest.NewServer(fp.handler())
	t.Cleanup(srv.Close)
	return fp, testConfig(srv.URL)
}
