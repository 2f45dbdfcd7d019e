package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payday/internal/economy"
	"payday/internal/game"
	"payday/internal/store/memory"
)

type neverSource struct{}

func (neverSource) Float64() float64 { return 0.999999 }

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := game.NewService(st, game.Options{Source: neverSource{}})
	srv := New(nil, svc)
	srv.now = func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) }
	return srv, st
}

func do(t *testing.T, srv *Server, method, path, player string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if player != "" {
		req.Header.Set(PlayerHeader, player)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCatalog(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/v1/catalog", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog = %d", rec.Code)
	}
	var cfg economy.TablesConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(cfg.Businesses) != 4 {
		t.Fatalf("catalog businesses = %d", len(cfg.Businesses))
	}
}

func TestPlayerHeaderRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/v1/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header = %d", rec.Code)
	}
}

func TestBusinessFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodPost, "/v1/players", "p1", nil); rec.Code != http.StatusOK {
		t.Fatalf("ensure player = %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, srv, http.MethodPost, "/v1/businesses", "p1", map[string]string{"type": "kiosk"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created game.MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := created.Business.ID

	rec = do(t, srv, http.MethodPost, "/v1/businesses/"+id+"/employees", "p1", map[string]string{"type": "chef"})
	if rec.Code != http.StatusOK {
		t.Fatalf("hire = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/v1/tick", "p1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tick = %d %s", rec.Code, rec.Body.String())
	}
	var report game.TickReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Businesses) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if rec := do(t, srv, http.MethodPost, "/v1/tick", "p1", nil); rec.Code != http.StatusConflict {
		t.Fatalf("second tick same day = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/v1/businesses/"+id+"/sell", "p1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sell = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPost, "/v1/businesses/"+id+"/sell", "p1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second sell = %d", rec.Code)
	}
}

func TestDomainErrorStatuses(t *testing.T) {
	srv, st := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/players", "p1", nil)

	if rec := do(t, srv, http.MethodPost, "/v1/businesses", "p1", map[string]string{"type": "castle"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid type = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/v1/businesses", "p1", map[string]string{"type": "restaurant_chain"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("insufficient funds = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/v1/businesses", "p1", map[string]any{"type": "kiosk", "name": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/v1/businesses/missing", "p1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing business = %d", rec.Code)
	}

	st.FailCommits(errors.New("db down"))
	if rec := do(t, srv, http.MethodPost, "/v1/businesses", "p1", map[string]string{"type": "kiosk"}); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("persistence failure = %d", rec.Code)
	}
}

func TestIdempotencyHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/players", "p1", nil)

	send := func() int {
		body, _ := json.Marshal(map[string]string{"type": "kiosk"})
		req := httptest.NewRequest(http.MethodPost, "/v1/businesses", bytes.NewReader(body))
		req.Header.Set(PlayerHeader, "p1")
		req.Header.Set("Idempotency-Key", "create-kiosk-1")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusCreated {
		t.Fatalf("first create = %d", code)
	}
	if code := send(); code != http.StatusConflict {
		t.Fatalf("replayed create = %d", code)
	}
	list, err := srv.game.Businesses(context.Background(), "p1")
	if err != nil || len(list) != 1 {
		t.Fatalf("businesses = %d err=%v", len(list), err)
	}
}
