// Package main is the entry point of the application
package main

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/pkg/manager"
	"github.com/tecu23/chess-rooms/pkg/server"
)

func (app *application) upgrader() *websocket.Upgrader {
	origins := app.Config.FrontendOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,

		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			return slices.Contains(origins, r.Header.Get("Origin"))
		},
	}
}

// connectRequest reads the websocket query parameters. roomId, userName and
// avatar are required.
func connectRequest(r *http.Request) (manager.ConnectRequest, bool) {
	q := r.URL.Query()

	req := manager.ConnectRequest{
		RoomID:     q.Get("roomId"),
		UserName:   q.Get("userName"),
		Avatar:     q.Get("avatar"),
		AuthToken:  q.Get("authToken"),
		InitialFEN: q.Get("currentFEN"),
		Color:      q.Get("color"),
	}
	req.HasMobilePlayer, _ = strconv.ParseBool(q.Get("hasMobilePlayer"))

	if req.RoomID == "" || req.UserName == "" || req.Avatar == "" {
		return req, false
	}
	return req, true
}

// handleWebSocket handles WebSocket connections
func (app *application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	req, ok := connectRequest(r)
	if !ok {
		http.Error(w, "roomId, userName and avatar are required", http.StatusBadRequest)
		return
	}

	// Upgrade HTTP connection to WebSocket
	ws, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Error("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	conn := server.NewConnection(ws, app.Hub, req, app.Logger)

	app.Logger.Info("WebSocket connection established",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("room_id", req.RoomID),
		zap.String("user_name", req.UserName),
	)

	// Register before the pumps start so a disconnect can never be routed
	// ahead of its own connect.
	app.Hub.Register(conn)

	go conn.WritePump()
	go conn.ReadPump()
}
