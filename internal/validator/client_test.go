package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/httpserver"
	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/hub"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/store/sqlstore"
)

func TestProbe(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusFound)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer site.Close()

	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	c := New(Config{ProbeTimeout: 100 * time.Millisecond}, kp, logger.Nop())
	ctx := context.Background()

	tests := []struct {
		url  string
		want domain.Status
	}{
		{site.URL + "/ok", domain.StatusGood},
		{site.URL + "/moved", domain.StatusGood},
		{site.URL + "/boom", domain.StatusBad},
		{site.URL + "/slow", domain.StatusBad},
		{"http://127.0.0.1:1/unreachable", domain.StatusBad},
		{"::not a url", domain.StatusBad},
	}
	for _, tt := range tests {
		status, latency := c.Probe(ctx, tt.url)
		assert.Equal(t, tt.want, status, tt.url)
		assert.GreaterOrEqual(t, latency, int64(0), tt.url)
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Minute))
	assert.Equal(t, time.Minute, nextBackoff(40*time.Second, time.Minute))
	assert.Equal(t, time.Minute, nextBackoff(time.Minute, time.Minute))
}

func TestLoadOrCreateKeypair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")

	_, err := LoadOrCreateKeypair(path, false, logger.Nop())
	require.Error(t, err, "missing file without create must fail")

	created, err := LoadOrCreateKeypair(path, true, logger.Nop())
	require.NoError(t, err)

	loaded, err := LoadOrCreateKeypair(path, true, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	_, err = LoadOrCreateKeypair(path, true, logger.Nop())
	require.Error(t, err, "a corrupt file is never overwritten")
}

type hubFixture struct {
	hub   *hub.Hub
	store *sqlstore.Store
	wsURL string
}

func startHub(t *testing.T, targets ...domain.Target) *hubFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, err := sqlstore.Open(sqlstore.SQLite, filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.UpsertTargets(ctx, targets))

	log := logger.NewFromZap(zaptest.NewLogger(t)).With(logger.String("side", "hub"))
	h, err := hub.New(st, identity.Ed25519Verifier{}, hub.Options{}, log, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)

	srv := httptest.NewServer(httpserver.NewRouter(log, deps.Deps{
		Logger:        log,
		Hub:           h,
		Store:         st,
		BaseContext:   ctx,
		UpgradeBurst:  10,
		UpgradePerMin: 600,
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)

	return &hubFixture{hub: h, store: st, wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func TestClientEnrollsAndEarnsPayout(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer site.Close()

	f := startHub(t,
		domain.Target{ID: "up", URL: site.URL + "/"},
		domain.Target{ID: "down", URL: site.URL + "/down"},
	)

	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	client := New(Config{HubURL: f.wsURL, IP: "198.51.100.4"}, kp, logger.NewFromZap(zaptest.NewLogger(t)).With(logger.String("side", "validator")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}()

	require.Eventually(t, func() bool {
		return f.hub.ConnectedValidators() == 1 && client.ValidatorID() != ""
	}, 3*time.Second, 10*time.Millisecond)

	stats, err := f.hub.Dispatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Sent)

	require.Eventually(t, func() bool {
		v, err := f.store.GetValidator(context.Background(), client.ValidatorID())
		return err == nil && v.PendingPayout == 200
	}, 3*time.Second, 10*time.Millisecond)

	v, err := f.store.GetValidator(context.Background(), client.ValidatorID())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), v.PublicKey)
	assert.Equal(t, "198.51.100.4", v.NetworkOrigin)

	up, err := f.store.ListTicks(context.Background(), "up", 10)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, domain.StatusGood, up[0].Status)

	down, err := f.store.ListTicks(context.Background(), "down", 10)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, domain.StatusBad, down[0].Status)
	assert.Equal(t, 0, f.hub.PendingChecks())
}

func TestClientReconnectsAfterEviction(t *testing.T) {
	f := startHub(t)

	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	log := logger.NewFromZap(zaptest.NewLogger(t))
	client := New(Config{HubURL: f.wsURL, ReconnectMin: 10 * time.Millisecond}, kp, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	require.Eventually(t, func() bool { return client.ValidatorID() != "" }, 3*time.Second, 10*time.Millisecond)
	first := f.hub.Sessions()
	require.Len(t, first, 1)

	// the hub side closes the session; the client comes back on its own
	require.NoError(t, first[0].Conn.Close())
	require.Eventually(t, func() bool {
		s := f.hub.Sessions()
		return len(s) == 1 && s[0].Conn.ID() != first[0].Conn.ID()
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, first[0].ValidatorID, f.hub.Sessions()[0].ValidatorID, "same key keeps its validator id")
}

func TestRunReturnsWhenHubIsUnreachable(t *testing.T) {
	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	client := New(Config{HubURL: "ws://127.0.0.1:1/ws", ReconnectMin: 5 * time.Millisecond, ReconnectMax: 20 * time.Millisecond}, kp, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, client.Run(ctx))
	assert.Empty(t, client.ValidatorID())
}
