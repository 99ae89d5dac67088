package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func handleDrawCard(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		card, err := store.DrawCard(r.Context(), gameID, userFrom(r).ID)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}

		notifyGame(r.Context(), logger, store, broker, gameID, "card_drawn")
		writeJSON(w, http.StatusOK, card)
	}
}

func handlePlayCard(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		var req PlayRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := store.PlayCard(r.Context(), gameID, userFrom(r).ID, req)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}

		eventType := "card_played"
		if result.Won {
			eventType = "game_won"
		}
		notifyGame(r.Context(), logger, store, broker, gameID, eventType)
		writeJSON(w, http.StatusOK, result)
	}
}
