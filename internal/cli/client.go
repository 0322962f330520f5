package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coinforge/internal/bot"
	"coinforge/internal/game"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// APIError is a response the server produced. Anything else returned by the
// client is a transport failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   strings.TrimSpace(token),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func playerPath(platform, user string) string {
	return "/v1/players/" + url.PathEscape(platform) + "/" + url.PathEscape(user)
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil, "")
}

func (c *Client) Market(ctx context.Context) (game.MarketView, error) {
	var out game.MarketView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", nil, &out, "")
	return out, err
}

func (c *Client) History(ctx context.Context, symbol, period string) (game.HistoryView, error) {
	path := "/v1/stocks/" + url.PathEscape(symbol) + "/history"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var out game.HistoryView
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, "")
	return out, err
}

func (c *Client) Portfolio(ctx context.Context, platform, user string) (game.Portfolio, error) {
	var out game.Portfolio
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(platform, user)+"/portfolio", nil, &out, "")
	return out, err
}

func (c *Client) Storage(ctx context.Context, platform, user string) (game.StorageView, error) {
	var out game.StorageView
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(platform, user)+"/artifacts", nil, &out, "")
	return out, err
}

func (c *Client) Draw(ctx context.Context, platform, user, idem string) (game.DrawResult, error) {
	var out game.DrawResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(platform, user)+"/draws", nil, &out, idem)
	return out, err
}

// ArtifactAction posts disassemble, enhance, lock or unlock. The reply
// message is all the CLI prints, so the body is decoded loosely.
func (c *Client) ArtifactAction(ctx context.Context, platform, user string, id int, action, idem string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	path := playerPath(platform, user) + "/artifacts/" + strconv.Itoa(id) + "/" + url.PathEscape(action)
	err := c.jsonRequest(ctx, http.MethodPost, path, nil, &out, idem)
	return out.Message, err
}

func (c *Client) PlaceOrder(ctx context.Context, platform, user, symbol, side string, quantity int64, idem string) (game.OrderResult, error) {
	var out game.OrderResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(platform, user)+"/orders", map[string]any{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
	}, &out, idem)
	return out, err
}

func (c *Client) Checkin(ctx context.Context, platform, user string) (game.CheckinResult, error) {
	var out game.CheckinResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(platform, user)+"/checkin", nil, &out, "")
	return out, err
}

func (c *Client) Boom(ctx context.Context, platform, user string, stake int64, idem string) (game.BoomResult, error) {
	var out game.BoomResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(platform, user)+"/boom", map[string]any{
		"stake": stake,
	}, &out, idem)
	return out, err
}

func (c *Client) AdjustLedger(ctx context.Context, platform, user string, coins, upgradeItems, rerollItems int64, idem string) (game.Ledger, error) {
	var out game.Ledger
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(platform, user)+"/ledger", map[string]any{
		"coins":         coins,
		"upgrade_items": upgradeItems,
		"reroll_items":  rerollItems,
	}, &out, idem)
	return out, err
}

func (c *Client) Command(ctx context.Context, cmd bot.Command) (bot.Reply, error) {
	var out bot.Reply
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/commands", cmd, &out, "")
	return out, err
}

func (c *Client) SyncReplay(ctx context.Context, commands []bot.Command) ([]bot.Reply, error) {
	var out struct {
		Results []bot.Reply `json:"results"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sync/replay", map[string]any{
		"commands": commands,
	}, &out, "")
	return out.Results, err
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
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
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
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
