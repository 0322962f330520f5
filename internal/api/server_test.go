package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	mathrand "math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coinforge/internal/auth"
	"coinforge/internal/bot"
	"coinforge/internal/config"
	"coinforge/internal/feed"
	"coinforge/internal/game"
	"coinforge/internal/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testToken = "operator-token"

type testEnv struct {
	srv  *Server
	game *game.Service
	hub  *feed.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	require.NoError(t, err)
	verifier, err := auth.NewTokenVerifier(string(hash))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := feed.NewHub()
	svc := game.NewService(store.NewMemory(), logger,
		game.WithPriceSink(hub),
		game.WithDice(mathrand.New(mathrand.NewSource(7))),
	)
	return &testEnv{srv: New(config.APIConfig{}, logger, verifier, svc, hub), game: svc, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stocks", nil)
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/stocks", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/stocks?access_token="+testToken, nil)
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStocksAndHistory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/stocks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[game.MarketView](t, rec)
	assert.Len(t, view.Stocks, 5)

	rec = env.do(t, http.MethodGet, "/v1/stocks/01/history?period=1h", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[game.HistoryView](t, rec)
	assert.Equal(t, "01", hist.Symbol)
	assert.Equal(t, game.Period1h, hist.Period)

	rec = env.do(t, http.MethodGet, "/v1/stocks/99/history", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/stocks/01/history?period=week", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrawNeedsCoins(t *testing.T) {
	env := newTestEnv(t)
	base := "/v1/players/discord/42"

	rec := env.do(t, http.MethodPost, base+"/draws", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient")

	rec = env.do(t, http.MethodPost, base+"/ledger", `{"coins":500}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decode[game.Ledger](t, rec)
	assert.Equal(t, game.StarterCoins+500, ledger.Coins)

	rec = env.do(t, http.MethodPost, base+"/draws", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	draw := decode[game.DrawResult](t, rec)
	assert.Equal(t, game.DrawCost, draw.Cost)
}

func TestLedgerIdempotency(t *testing.T) {
	env := newTestEnv(t)
	path := "/v1/players/whatsapp/123/ledger"
	headers := map[string]string{"Idempotency-Key": "grant-1"}

	rec := env.do(t, http.MethodPost, path, `{"coins":50}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path, `{"coins":50}`, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/players/whatsapp/123/portfolio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pf := decode[game.Portfolio](t, rec)
	assert.Equal(t, game.StarterCoins+50, pf.Coins)

	rec = env.do(t, http.MethodPost, path, `{"coins":-1000}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, `{"bogus":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArtifactLifecycle(t *testing.T) {
	env := newTestEnv(t)
	base := "/v1/players/discord/7"

	rec := env.do(t, http.MethodPost, base+"/artifacts", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	grant := decode[game.GrantResult](t, rec)
	require.True(t, grant.Placement.Stored)
	id := grant.Artifact.ID
	idPath := base + "/artifacts/" + itoa(id)

	rec = env.do(t, http.MethodGet, base+"/artifacts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	storage := decode[game.StorageView](t, rec)
	require.Len(t, storage.Artifacts, 1)
	assert.Equal(t, id, storage.Artifacts[0].ID)

	rec = env.do(t, http.MethodPost, idPath+"/lock", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, idPath+"/disassemble", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, idPath+"/unlock", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, idPath+"/disassemble", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dis := decode[game.DisassembleResult](t, rec)
	assert.Equal(t, game.DisassemblyYield(grant.Artifact.Rarity, grant.Artifact.Level), dis.Yield)

	rec = env.do(t, http.MethodPost, idPath+"/enhance", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, idPath+"/polish", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/artifacts/abc/lock", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrdersCheckinAndBoom(t *testing.T) {
	env := newTestEnv(t)
	base := "/v1/players/discord/9"

	rec := env.do(t, http.MethodPost, base+"/checkin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/checkin", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/boom", `{"stake":2}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/ledger", `{"coins":1000}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/orders", `{"symbol":"04","side":"buy","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[game.OrderResult](t, rec)
	assert.Equal(t, int64(2), order.Holding)
	assert.GreaterOrEqual(t, order.Fee, int64(1))

	rec = env.do(t, http.MethodPost, base+"/orders", `{"symbol":"04","side":"sell","quantity":5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/orders", `{"symbol":"ZZ","side":"buy","quantity":1}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/boom", `{"stake":10}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	boom := decode[game.BoomResult](t, rec)
	assert.GreaterOrEqual(t, boom.Payout, int64(0))
	assert.LessOrEqual(t, boom.Payout, int64(20))
}

func TestCommandEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/commands", `{"platform":"discord","user":"1","text":".balance"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[bot.Reply](t, rec)
	assert.True(t, reply.Success)
	assert.Equal(t, "balance", reply.Command)

	rec = env.do(t, http.MethodPost, "/v1/commands", `{"platform":"discord","user":"1","text":"hello"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/commands", `{"platform":"discord","user":"1","text":".draw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reply = decode[bot.Reply](t, rec)
	assert.False(t, reply.Success)
}

func TestSyncReplayKeepsGoingAfterFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.game.AdjustBalance(ctx, mustResolve(t, "cli", "ana"), 1000)
	require.NoError(t, err)

	body := `{"commands":[
		{"platform":"cli","user":"ana","text":".buy 01 1","idempotency_key":"q-1"},
		{"platform":"cli","user":"ana","text":".buy 01 1","idempotency_key":"q-1"},
		{"platform":"cli","user":"ana","text":"not a command"},
		{"platform":"cli","user":"ana","text":".portfolio"}
	]}`
	rec := env.do(t, http.MethodPost, "/v1/sync/replay", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Results []bot.Reply `json:"results"`
	}](t, rec)
	require.Len(t, out.Results, 4)
	assert.True(t, out.Results[0].Success)
	assert.False(t, out.Results[1].Success)
	assert.False(t, out.Results[2].Success)
	assert.True(t, out.Results[3].Success)

	pf, err := env.game.Portfolio(ctx, mustResolve(t, "cli", "ana"))
	require.NoError(t, err)
	require.Len(t, pf.Holdings, 1)
	assert.Equal(t, int64(1), pf.Holdings[0].Quantity)
}

func TestStockStreamRelaysTicks(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stocks/stream"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+testToken)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap struct {
		Type   string          `json:"type"`
		Market game.MarketView `json:"market"`
	}
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Len(t, snap.Market.Stocks, 5)

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, env.game.RunMarketTick(context.Background()))

	var msg feed.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "prices", msg.Type)
	assert.Len(t, msg.Updates, 5)
}

func TestStockStreamRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stocks/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
