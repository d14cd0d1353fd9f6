// Package main is the entry point of the application
package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/game"
	"github.com/tecu23/chess-rooms/pkg/manager"
)

type createRoomResponse struct {
	RoomID      string               `json:"roomId"`
	TimerConfig game.TimeControlView `json:"timerConfig"`
}

// handleCreateRoom handles POST /rooms
func (app *application) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var tc manager.TimerConfig

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, view, err := app.Manager.CreateRoom(tc)
	switch {
	case errors.Is(err, chess.ErrInvalidFEN):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		app.Logger.Error("create room failed", zap.Error(err))
		http.Error(w, "could not create room", http.StatusInternalServerError)
		return
	}

	app.writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: id, TimerConfig: view})
}

// handleGetRoom handles GET /rooms/{roomId}
func (app *application) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	state, err := app.Manager.GetRoomState(r.PathValue("roomId"))
	if errors.Is(err, manager.ErrRoomNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	app.writeJSON(w, http.StatusOK, state)
}

func (app *application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Error("write response", zap.Error(err))
	}
}
