package main

import (
	"log"
	"net/http"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}
	jwtSecret = []byte(cfg.JWTSecret)

	db := initDB(cfg.DatabaseURL)

	profiles := newPGProfileStore(db)
	matches := newPGMatchStore(db)
	hub := newEventHub()
	svc := newMatchService(cfg, profiles, matches, hub)

	mux := http.NewServeMux()

	// Core auth endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))

	// Ping: mark this user as active "now"
	mux.Handle("/me/ping", authenticate(profiles, pingHandler(svc))) // POST

	// Discovery & matches
	mux.Handle("/discover", authenticate(profiles, discoverHandler(svc)))
	mux.Handle("/matches", authenticate(profiles, matchesHandler(svc)))           // GET /matches
	mux.Handle("/matches/", authenticate(profiles, matchesActionsRouter(svc)))    // GET/POST /matches/{id}/...
	mux.Handle("/matches/requests", authenticate(profiles, matchRequestsHandler(svc)))

	// WebSocket event stream for terminal match transitions
	mux.Handle("/ws/events", wsEventsHandler(hub))

	// Health check endpoint for Docker
	mux.Handle("/health", healthHandler())

	// Middleware chain: CORS -> DataLoader -> mux
	handler := withCORS(DataLoaderMiddleware(profiles)(mux))

	log.Default().Println("Starting Kindred matching backend on", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal(err)
	}
}
