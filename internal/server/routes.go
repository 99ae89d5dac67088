package server

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, db *sql.DB) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Card Table API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db))

	r.Post("/api/register", handleRegister(store))
	r.Post("/api/login", handleLogin(store))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(store))

		r.Post("/logout", handleLogout(store))
		r.Get("/me", handleMe())

		r.Get("/games", handleListGames(store))
		r.Post("/games", handleCreateGame(logger, store))
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", handleGameState(store))
			r.Post("/join", handleJoinGame(logger, store, broker))
			r.Post("/start", handleStartGame(logger, store, broker))
			r.Post("/cancel", handleCancelGame(logger, store, broker))
			r.Post("/draw", handleDrawCard(logger, store, broker))
			r.Post("/play", handlePlayCard(logger, store, broker))
			r.Get("/events", handleEvents(store, broker))
			r.Get("/ws", handleGameSocket(logger, store, broker))
		})
	})
}
