// Package main is the entry point of the application
package main

import (
	"net/http"

	"go.uber.org/zap"
)

// requireAPIKey guards the room management endpoints. Once any key is
// configured, requests must carry one of them in X-Api-Key.
func (app *application) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.Auth.Enabled() || app.Auth.IsValidKey(r.Header.Get("X-Api-Key")) {
			next.ServeHTTP(w, r)
			return
		}

		app.Logger.Warn("rejected request without valid API key",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		w.Header().Set("WWW-Authenticate", "APIKey")
		app.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
	})
}
