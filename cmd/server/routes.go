// Package main is the entry point of the application
package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/tecu23/chess-rooms/pkg/metrics"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", app.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler(app.Registry))

	mux.Handle("POST /rooms", app.Limiter.Middleware(app.requireAPIKey(http.HandlerFunc(app.handleCreateRoom))))
	mux.HandleFunc("GET /rooms/{roomId}", app.handleGetRoom)

	mux.HandleFunc("GET /ws", app.handleWebSocket)

	return cors.New(cors.Options{
		AllowedOrigins: app.Config.FrontendOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Api-Key"},
	}).Handler(mux)
}
