package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

// handleGameSocket is the WebSocket twin of the SSE stream: the same
// per-player state events, for clients that prefer a socket.
func handleGameSocket(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		user := userFrom(r)

		view, err := store.GetState(r.Context(), gameID, user.ID)
		if err != nil {
			writeError(w, statusFor(err), "game not found")
			return
		}
		if !seated(view, user.ID) {
			writeError(w, http.StatusForbidden, "not a player in this game")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 4*time.Hour)
		defer cancel()

		snapshot, _ := json.Marshal(Event{Type: "state", GameID: gameID, State: &view})
		if err := conn.Write(ctx, websocket.MessageText, snapshot); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		ch := broker.Subscribe(stateTopic(gameID, user.ID))
		defer broker.Unsubscribe(stateTopic(gameID, user.ID), ch)

		// Reads are drained so close frames and pongs are processed; clients
		// send nothing else on this socket.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-readDone:
				return
			case data := <-ch:
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
