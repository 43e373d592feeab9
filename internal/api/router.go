package api

import (
	"load-tracking-service/internal/api/handlers"
	"load-tracking-service/internal/platform/auth"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/services"
	"net/http"
)

type RouterConfig struct {
	Loads *services.LoadLifecycle
	// Socket serves the realtime protocol at /ws. Optional.
	Socket http.Handler
	// Verifier enables bearer auth on owner-scoped routes. Nil leaves every
	// route anonymous.
	Verifier   *auth.Verifier
	CORSOrigin string
	Log        logger.ILogger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// Load routes are served under both /loads and /api/loads.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	loads := &handlers.LoadHandler{Loads: cfg.Loads}
	authed := func(h http.HandlerFunc) http.HandlerFunc { return requireAuth(cfg.Verifier, h) }

	mux.HandleFunc("GET /health", handlers.Health)

	mux.HandleFunc("GET /loads", authed(loads.List))
	mux.HandleFunc("POST /loads", authed(loads.Create))
	mux.HandleFunc("GET /loads/{id}", loads.Get)
	mux.HandleFunc("POST /loads/{id}/confirm", loads.Confirm)
	mux.HandleFunc("POST /loads/{id}/cancel", loads.Cancel)
	mux.HandleFunc("POST /loads/{id}/complete", authed(loads.Complete))
	mux.HandleFunc("POST /loads/{id}/location", loads.UpdateLocation)
	mux.HandleFunc("GET /loads/{id}/driver-location", loads.DriverLocation)
	mux.HandleFunc("DELETE /loads/{id}", authed(loads.Delete))

	mux.Handle("/api/loads", http.StripPrefix("/api", mux))
	mux.Handle("/api/loads/", http.StripPrefix("/api", mux))

	if cfg.Socket != nil {
		mux.Handle("/ws", cfg.Socket)
	}

	return requestID(log, accessLog(cors(cfg.CORSOrigin, mux)))
}
