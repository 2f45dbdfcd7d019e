package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payday/internal/economy"
	"payday/internal/game"
)

type Client struct {
	BaseURL  string
	PlayerID string
	HTTP     *http.Client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

func NewClient(baseURL, playerID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PlayerID: strings.TrimSpace(playerID),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Catalog(ctx context.Context) (economy.TablesConfig, error) {
	var out economy.TablesConfig
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", nil, &out, "")
	return out, err
}

func (c *Client) EnsurePlayer(ctx context.Context) (game.PlayerView, error) {
	var out game.PlayerView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", nil, &out, "")
	return out, err
}

func (c *Client) Me(ctx context.Context) (game.PlayerView, error) {
	var out game.PlayerView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", nil, &out, "")
	return out, err
}

func (c *Client) Tick(ctx context.Context) (game.TickReport, error) {
	var out game.TickReport
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tick", nil, &out, "")
	return out, err
}

func (c *Client) Businesses(ctx context.Context) ([]economy.Business, error) {
	var out struct {
		Businesses []economy.Business `json:"businesses"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/businesses", nil, &out, "")
	return out.Businesses, err
}

func (c *Client) Business(ctx context.Context, businessID string) (economy.Business, error) {
	var out economy.Business
	err := c.jsonRequest(ctx, http.MethodGet, BusinessPath(businessID, ""), nil, &out, "")
	return out, err
}

func (c *Client) CreateBusiness(ctx context.Context, businessType, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses", map[string]any{
		"type": businessType,
	}, &out, idem)
	return out, err
}

func (c *Client) HireEmployee(ctx context.Context, businessID, employeeType, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodPost, BusinessPath(businessID, "/employees"), map[string]any{
		"type": employeeType,
	}, &out, idem)
	return out, err
}

func (c *Client) FireEmployee(ctx context.Context, businessID, employeeID, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodDelete, BusinessPath(businessID, "/employees/"+url.PathEscape(employeeID)), nil, &out, idem)
	return out, err
}

func (c *Client) BuyInventory(ctx context.Context, businessID, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodPost, BusinessPath(businessID, "/inventory"), nil, &out, idem)
	return out, err
}

func (c *Client) PurchaseUpgrade(ctx context.Context, businessID, upgradeType, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodPost, BusinessPath(businessID, "/upgrades"), map[string]any{
		"type": upgradeType,
	}, &out, idem)
	return out, err
}

func (c *Client) SellBusiness(ctx context.Context, businessID, idem string) (game.SellResult, error) {
	var out game.SellResult
	err := c.jsonRequest(ctx, http.MethodPost, BusinessPath(businessID, "/sell"), nil, &out, idem)
	return out, err
}

func (c *Client) ResolveEvent(ctx context.Context, businessID, eventID, idem string) (game.MutationResult, error) {
	var out game.MutationResult
	err := c.jsonRequest(ctx, http.MethodPost, BusinessPath(businessID, "/events/"+url.PathEscape(eventID)+"/resolve"), nil, &out, idem)
	return out, err
}

// Do sends a raw request. The sync command uses it to replay queued writes.
func (c *Client) Do(ctx context.Context, method, path string, in map[string]any, idem string) (map[string]any, error) {
	var body any
	if in != nil {
		body = in
	}
	out := map[string]any{}
	if err := c.jsonRequest(ctx, method, path, body, &out, idem); err != nil {
		return nil, err
	}
	return out, nil
}

// BusinessPath is the API path of a business, with an optional sub-resource.
func BusinessPath(businessID, suffix string) string {
	return "/v1/businesses/" + url.PathEscape(businessID) + suffix
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.PlayerID != "" {
		req.Header.Set("X-Player-ID", c.PlayerID)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
