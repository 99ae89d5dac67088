package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cardtable/sequence/internal/game"
)

// SeedDecks populates the master card list for each variant. Idempotent: a
// variant with any cards already present is left untouched.
func SeedDecks(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	decks := map[game.Variant][]string{
		game.VariantSequence: sequenceValues(),
		game.VariantStack:    stackValues(),
	}

	for variant, values := range decks {
		var n int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cards WHERE variant = ?`, string(variant),
		).Scan(&n); err != nil {
			return fmt.Errorf("counting %s cards: %w", variant, err)
		}
		if n > 0 {
			continue
		}

		var sb strings.Builder
		sb.WriteString(`INSERT INTO cards (id, variant, value) VALUES `)
		args := make([]any, 0, len(values)*3)
		for i, value := range values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, uuid.NewString(), string(variant), value)
		}
		if _, err := db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("seeding %s deck: %w", variant, err)
		}
		logger.Info("seeded deck", "variant", string(variant), "cards", len(values))
	}
	return nil
}

func sequenceValues() []string {
	deck := game.SequenceDeck()
	values := make([]string, len(deck))
	for i, c := range deck {
		values[i] = c.Code()
	}
	return values
}

func stackValues() []string {
	deck := game.StackDeck()
	values := make([]string, len(deck))
	for i, rank := range deck {
		values[i] = game.StackCode(rank)
	}
	return values
}
