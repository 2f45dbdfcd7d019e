package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"payday/internal/api"
	"payday/internal/economy"
	"payday/internal/game"
	"payday/internal/store/memory"
)

type neverSource struct{}

func (neverSource) Float64() float64 { return 0.999999 }

func newTestClient(t *testing.T) *Client {
	t.Helper()
	svc := game.NewService(memory.New(), game.Options{Source: neverSource{}})
	ts := httptest.NewServer(api.New(nil, svc).Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", "p1")
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	view, err := c.EnsurePlayer(ctx)
	if err != nil {
		t.Fatalf("ensure player: %v", err)
	}
	if view.FundsMicros != game.StarterFundsMicros {
		t.Fatalf("starter funds = %d", view.FundsMicros)
	}

	created, err := c.CreateBusiness(ctx, "kiosk", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	hired, err := c.HireEmployee(ctx, created.Business.ID, "manager", "")
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	if len(hired.Business.Employees) != 1 {
		t.Fatalf("employees = %d", len(hired.Business.Employees))
	}
	if _, err := c.FireEmployee(ctx, created.Business.ID, hired.Business.Employees[0].ID, ""); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if _, err := c.PurchaseUpgrade(ctx, created.Business.ID, "advertising", ""); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if _, err := c.BuyInventory(ctx, created.Business.ID, ""); err != nil {
		t.Fatalf("restock: %v", err)
	}

	list, err := c.Businesses(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("businesses = %v err=%v", list, err)
	}
	b, err := c.Business(ctx, created.Business.ID)
	if err != nil || b.Type != economy.Kiosk {
		t.Fatalf("business = %+v err=%v", b, err)
	}

	sold, err := c.SellBusiness(ctx, created.Business.ID, "")
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sold.RefundMicros != 40_000*economy.MicrosPerCoin {
		t.Fatalf("refund = %d", sold.RefundMicros)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if _, err := c.EnsurePlayer(ctx); err != nil {
		t.Fatalf("ensure player: %v", err)
	}
	_, err := c.ResolveEvent(ctx, "missing", "ev", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}
	if apiErr.Message == "" {
		t.Fatalf("error message not decoded")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "" })

	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := SaveSession(Session{PlayerID: " p1 ", APIBaseURL: "http://x/"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s, err := LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.PlayerID != "p1" || s.APIBaseURL != "http://x" || s.SavedAt.IsZero() {
		t.Fatalf("load = %+v", s)
	}
	if _, err := os.Stat(filepath.Join(Dir, "session.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("session survived clear: %v", err)
	}
}

func TestSessionRejectsBadPlayer(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "" })

	if err := SaveSession(Session{PlayerID: "   "}); err == nil {
		t.Fatalf("saved a session without a player")
	}
	if err := os.WriteFile(filepath.Join(Dir, "session.json"), []byte(`{"player_id":""}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for empty player, got %v", err)
	}
}

func TestDoReplaysWithIdempotencyKey(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if _, err := c.EnsurePlayer(ctx); err != nil {
		t.Fatalf("ensure player: %v", err)
	}
	body := map[string]any{"type": "kiosk"}
	out, err := c.Do(ctx, http.MethodPost, "/v1/businesses", body, "create-1")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, ok := out["business"]; !ok {
		t.Fatalf("response missing business: %v", out)
	}
	_, err = c.Do(ctx, http.MethodPost, "/v1/businesses", body, "create-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %v", err)
	}
	list, err := c.Businesses(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("businesses = %d err=%v", len(list), err)
	}
}
