package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardtable/sequence/internal/game"
)

type CreateGameRequest struct {
	Variant     string `json:"variant"`
	PlayerCount int    `json:"playerCount"`
}

func handleCreateGame(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		variant, err := game.ParseVariant(req.Variant)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		user := userFrom(r)
		desc, err := store.CreateGame(r.Context(), user.ID, variant, req.PlayerCount)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, desc)
	}
}

func handleListGames(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		if limit < 1 || limit > 100 {
			limit = 20
		}
		offset := queryInt(r, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		games, err := store.ListAvailable(r.Context(), userFrom(r).ID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func handleGameState(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := store.GetState(r.Context(), chi.URLParam(r, "gameID"), userFrom(r).ID)
		if err != nil {
			writeError(w, statusFor(err), "game not found")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleJoinGame(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		user := userFrom(r)

		desc, err := store.JoinGame(r.Context(), gameID, user.ID)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}

		notifyGame(r.Context(), logger, store, broker, gameID, "player_joined")
		writeJSON(w, http.StatusOK, desc)
	}
}

func handleStartGame(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		if err := store.StartGame(r.Context(), gameID, userFrom(r).ID); err != nil {
			writeStoreError(w, logger, err)
			return
		}

		notifyGame(r.Context(), logger, store, broker, gameID, "game_started")
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func handleCancelGame(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		if err := store.CancelGame(r.Context(), gameID, userFrom(r).ID); err != nil {
			writeStoreError(w, logger, err)
			return
		}

		notifyGame(r.Context(), logger, store, broker, gameID, "game_cancelled")
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
