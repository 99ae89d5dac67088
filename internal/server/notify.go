package server

import (
	"context"
	"log/slog"
)

// notifyGame pushes a fresh per-player state view to every seated player.
// Each player gets their own view because hands are private. Failures are
// logged and skipped; notification is best-effort and never blocks the
// mutation that triggered it.
func notifyGame(ctx context.Context, logger *slog.Logger, store Store, broker *Broker, gameID, eventType string) {
	userIDs, err := store.SeatedUserIDs(ctx, gameID)
	if err != nil {
		logger.Warn("listing players for notification", "game_id", gameID, "error", err)
		return
	}

	for _, userID := range userIDs {
		view, err := store.GetState(ctx, gameID, userID)
		if err != nil {
			logger.Warn("building state view for notification",
				"game_id", gameID, "user_id", userID, "error", err)
			continue
		}
		broker.Publish(stateTopic(gameID, userID), Event{
			Type:   eventType,
			GameID: gameID,
			State:  &view,
		})
	}
}
