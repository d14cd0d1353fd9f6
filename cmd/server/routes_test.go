package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tecu23/chess-rooms/internal/auth"
	"github.com/tecu23/chess-rooms/pkg/config"
	"github.com/tecu23/chess-rooms/pkg/events"
	"github.com/tecu23/chess-rooms/pkg/manager"
	"github.com/tecu23/chess-rooms/pkg/metrics"
	"github.com/tecu23/chess-rooms/pkg/ratelimit"
	"github.com/tecu23/chess-rooms/pkg/server"
)

func newTestApp(t *testing.T, keys ...string) *application {
	t.Helper()

	cfg := config.Default()
	logger := zap.NewNop()
	publisher := events.NewPublisher()
	registry := prometheus.NewRegistry()
	metrics.New(registry).Subscribe(publisher)

	rm, err := manager.NewManager(manager.Options{TickInterval: time.Hour}, nil, nil, publisher, logger)
	require.NoError(t, err)

	hub := server.NewHub(rm, logger)
	go hub.Run()

	t.Cleanup(func() {
		hub.Shutdown()
		rm.Stop()
	})

	return &application{
		Auth:      auth.NewAPIKeyAuth(keys),
		Logger:    logger,
		Config:    cfg,
		Publisher: publisher,
		Manager:   rm,
		Hub:       hub,
		Registry:  registry,
		Limiter:   ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow),
		StartTime: time.Now(),
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["rooms"])
}

func TestCreateAndGetRoom(t *testing.T) {
	app := newTestApp(t)
	h := app.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms",
		strings.NewReader(`{"whiteTimer":180,"blackTimer":180,"increment":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created createRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.RoomID)
	assert.Equal(t, int64(180), created.TimerConfig.WhiteTimer)
	assert.Equal(t, int64(2), created.TimerConfig.Increment)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/"+created.RoomID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.RoomID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRoomValidation(t *testing.T) {
	app := newTestApp(t)
	h := app.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"currentFEN":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateRoomRequiresAPIKey(t *testing.T) {
	app := newTestApp(t, "secret")
	h := app.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/rooms", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?roomId=r1&userName=alice", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	h := app.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "rooms_created_total 1")
	}, time.Second, 10*time.Millisecond)
}

func TestTraceEventsLogsEveryEvent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := events.NewPublisher()
	traceEvents(p, zap.New(core))

	p.Publish(events.Event{Type: events.EventRoomCreated, RoomID: "r1"})
	p.Publish(events.Event{Type: events.EventPlayerJoined, RoomID: "r1"})

	require.Eventually(t, func() bool { return logs.FilterMessage("event").Len() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterField(zap.String("type", string(events.EventPlayerJoined))).Len())
}
