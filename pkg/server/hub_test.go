package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/internal/notices"
	"github.com/tecu23/chess-rooms/pkg/events"
	"github.com/tecu23/chess-rooms/pkg/manager"
)

func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()

	m, err := manager.NewManager(manager.Options{TickInterval: time.Hour}, nil, nil, events.NewPublisher(), zap.NewNop())
	require.NoError(t, err)

	hub := NewHub(m, zap.NewNop())
	go hub.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConnection(ws, hub, manager.ConnectRequest{
			RoomID:   q.Get("roomId"),
			UserName: q.Get("userName"),
			Color:    q.Get("color"),
		}, zap.NewNop())
		hub.Register(conn)
		go conn.WritePump()
		go conn.ReadPump()
	}))

	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
		m.Stop()
	})
	return srv, m
}

func dial(t *testing.T, srv *httptest.Server, roomID, userName string) *websocket.Conn {
	t.Helper()

	q := url.Values{}
	q.Set("roomId", roomID)
	q.Set("userName", userName)
	q.Set("color", "white")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + q.Encode()
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ws *websocket.Conn, match func(messages.OutboundMessage) bool) messages.OutboundMessage {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)

		var msg messages.OutboundMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func isEvent(name string) func(messages.OutboundMessage) bool {
	return func(m messages.OutboundMessage) bool { return m.Event == name }
}

func TestHubStartsGameAndRelaysChat(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv, "r1", "alice")
	readUntil(t, alice, isEvent(messages.EventConnection))

	bob := dial(t, srv, "r1", "bob")
	readUntil(t, bob, isEvent(messages.EventGameStart))
	readUntil(t, alice, isEvent(messages.EventGameStart))

	require.NoError(t, bob.WriteJSON(map[string]any{
		"type":    "message",
		"payload": map[string]string{"text": "good luck"},
	}))

	msg := readUntil(t, alice, isEvent(messages.EventMessage))
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "good luck", payload["text"])
	assert.Equal(t, "bob", payload["userName"])
}

func TestHubRejectsThirdUser(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv, "r1", "alice")
	readUntil(t, alice, isEvent(messages.EventConnection))
	bob := dial(t, srv, "r1", "bob")
	readUntil(t, bob, isEvent(messages.EventGameStart))

	carol := dial(t, srv, "r1", "carol")
	msg := readUntil(t, carol, func(m messages.OutboundMessage) bool { return m.IsNotice() })
	assert.Equal(t, notices.RoomFull, msg.Type)

	_, _, err := carol.ReadMessage()
	assert.Error(t, err)
}

func TestHubDisconnectNotifiesOpponent(t *testing.T) {
	srv, m := newTestServer(t)

	alice := dial(t, srv, "r1", "alice")
	readUntil(t, alice, isEvent(messages.EventConnection))
	bob := dial(t, srv, "r1", "bob")
	readUntil(t, bob, isEvent(messages.EventGameStart))

	require.NoError(t, bob.Close())

	msg := readUntil(t, alice, func(m messages.OutboundMessage) bool {
		return m.IsNotice() && m.Type == notices.OpponentDisconnected
	})
	assert.Contains(t, msg.Message, "bob")

	state, err := m.GetRoomState("r1")
	require.NoError(t, err)
	assert.True(t, state.GameStarted)
	assert.False(t, state.GameEnded)
}
