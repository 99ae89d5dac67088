package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func handleEvents(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		user := userFrom(r)

		// A first snapshot doubles as the seat check: only players of the game
		// may subscribe.
		view, err := store.GetState(r.Context(), gameID, user.ID)
		if err != nil {
			writeError(w, statusFor(err), "game not found")
			return
		}
		if !seated(view, user.ID) {
			writeError(w, http.StatusForbidden, "not a player in this game")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		snapshot, _ := json.Marshal(Event{Type: "state", GameID: gameID, State: &view})
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", snapshot)
		flusher.Flush()

		ch := broker.Subscribe(stateTopic(gameID, user.ID))
		defer broker.Unsubscribe(stateTopic(gameID, user.ID), ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func seated(view PlayerView, userID string) bool {
	for _, p := range view.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
