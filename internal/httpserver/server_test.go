package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/hub"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/protocol"
	"github.com/yashkhare05/Uptime/internal/store/sqlstore"
)

type fixture struct {
	srv     *httptest.Server
	hub     *hub.Hub
	store   *sqlstore.Store
	trigger chan struct{}
}

func newFixture(t *testing.T, mutate func(*deps.Deps)) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, err := sqlstore.Open(sqlstore.SQLite, filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	log := logger.NewFromZap(zaptest.NewLogger(t))
	reg := prometheus.NewRegistry()
	h, err := hub.New(st, identity.Ed25519Verifier{}, hub.Options{}, log, metrics.New(reg))
	require.NoError(t, err)

	trigger := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:          log,
		StartTime:       time.Now(),
		Version:         "test",
		Hub:             h,
		Store:           st,
		StoreKind:       "sqlite",
		Gatherer:        reg,
		BaseContext:     ctx,
		UpgradeBurst:    5,
		UpgradePerMin:   60,
		DispatchTrigger: trigger,
	}
	if mutate != nil {
		mutate(&d)
	}

	srv := httptest.NewServer(NewRouter(log, d))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, hub: h, store: st, trigger: trigger}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthzAndReadyz(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.Contains(t, string(body), `"validators":0`)

	resp, body = f.get(t, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ready":true}`, string(body))

	require.NoError(t, f.store.Close())
	resp, _ = f.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestInfraReportsComponents(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/infra")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK        bool   `json:"ok"`
			Connected *int   `json:"connected"`
			Kind      string `json:"kind"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "idle", got.Mode)
	assert.True(t, got.Components["store"].OK)
	assert.Equal(t, "sqlite", got.Components["store"].Kind)
	require.NotNil(t, got.Components["validators"].Connected)
	assert.Equal(t, 0, *got.Components["validators"].Connected)
}

func TestDispatchTrigger(t *testing.T) {
	f := newFixture(t, nil)

	post := func() int {
		resp, err := http.Post(f.srv.URL+"/dispatch", "text/plain", nil)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusAccepted, post())
	// trigger buffer is full until the dispatcher drains it
	assert.Equal(t, http.StatusTooManyRequests, post())
	<-f.trigger
	assert.Equal(t, http.StatusAccepted, post())
}

func TestAdminRoutesHonourCIDRs(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.AllowedCIDRS = []string{"10.0.0.0/8"}
	})

	resp, err := http.Post(f.srv.URL+"/dispatch", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.get(t, "/metrics")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// public routes stay open
	resp, _ = f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "uptime_hub_connected_validators")
}

func TestValidatorAndTicksAPI(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertTargets(ctx, []domain.Target{{ID: "t1", URL: "https://example.com"}}))
	require.NoError(t, f.store.CreateValidator(ctx, &domain.Validator{ID: "v1", PublicKey: "pk", NetworkOrigin: "10.0.0.1"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.CommitTick(ctx, domain.Tick{
			ID:          "tick-" + string(rune('a'+i)),
			TargetID:    "t1",
			ValidatorID: "v1",
			Status:      domain.StatusGood,
			LatencyMs:   int64(10 * (i + 1)),
			ObservedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}, 100))
	}

	resp, body := f.get(t, "/api/v1/validators/v1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v domain.Validator
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, int64(300), v.PendingPayout)
	assert.Equal(t, "pk", v.PublicKey)

	resp, _ = f.get(t, "/api/v1/validators/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.get(t, "/api/v1/targets/t1/ticks?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ticks struct {
		TargetID string        `json:"targetId"`
		Ticks    []domain.Tick `json:"ticks"`
	}
	require.NoError(t, json.Unmarshal(body, &ticks))
	require.Len(t, ticks.Ticks, 2)
	assert.Equal(t, int64(30), ticks.Ticks[0].LatencyMs, "newest first")

	resp, body = f.get(t, "/api/v1/targets/none/ticks")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ticks":[]`)

	resp, _ = f.get(t, "/api/v1/targets/t1/ticks?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketSignupThroughRouter(t *testing.T) {
	f := newFixture(t, nil)

	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	frame, err := protocol.Encode(protocol.SignupRequest{
		IP:            "203.0.113.7",
		PublicKey:     kp.PublicKey(),
		CallbackID:    "cb-1",
		SignedMessage: protocol.Signature(kp.Sign([]byte(protocol.SignupChallenge("cb-1", kp.PublicKey())))),
	})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeFromHub(raw)
	require.NoError(t, err)
	ack, ok := msg.(protocol.SignupAck)
	require.True(t, ok, "expected a signup ack, got %T", msg)
	assert.Equal(t, "cb-1", ack.CallbackID)
	assert.Equal(t, 1, f.hub.ConnectedValidators())

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return f.hub.ConnectedValidators() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestWebsocketUpgradeIsRateLimited(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.UpgradeBurst = 1
		d.UpgradePerMin = 1
	})
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
