package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cardtable/sequence/internal/game"
)

// deal claims the n lowest-position cards from the game's pool and moves them
// to the given pile for userID, in one statement. The position column holds the
// shuffle order assigned at game creation, so claiming by position is an
// unbiased draw without reading the whole pool.
func (s *SQLiteStore) deal(ctx context.Context, tx *sql.Tx, gameID, userID string, pile game.Pile, n int) ([]CardView, error) {
	rows, err := tx.QueryContext(ctx, `
		UPDATE game_cards
		SET user_id = ?, pile = ?
		WHERE id IN (
			SELECT id FROM game_cards
			WHERE game_id = ? AND user_id IS NULL AND pile = 0
			ORDER BY position
			LIMIT ?
		)
		RETURNING card_id
	`, userID, pile.Code(), gameID, n)
	if err != nil {
		return nil, fmt.Errorf("claiming cards: %w", err)
	}
	defer rows.Close()

	var cardIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		cardIDs = append(cardIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cardIDs) < n {
		return nil, fmt.Errorf("%w: wanted %d, pool had %d", ErrInsufficientCards, n, len(cardIDs))
	}

	return cardValues(ctx, tx, cardIDs)
}

func cardValues(ctx context.Context, tx *sql.Tx, cardIDs []string) ([]CardView, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(cardIDs)-1) + "?"
	args := make([]any, len(cardIDs))
	for i, id := range cardIDs {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, value FROM cards WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]string, len(cardIDs))
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		byID[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	views := make([]CardView, len(cardIDs))
	for i, id := range cardIDs {
		views[i] = CardView{ID: id, Value: byID[id]}
	}
	return views, nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	var pos int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM game_cards WHERE game_id = ?
	`, gameID).Scan(&pos)
	return pos, err
}

// reshuffle moves every discard-bottom card back to the pool under fresh
// shuffled positions. New positions start above every existing position so
// within-pile ordering elsewhere stays unambiguous.
func (s *SQLiteStore) reshuffle(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM game_cards WHERE game_id = ? AND user_id IS NULL AND pile = ?
	`, gameID, game.DiscardBottomPile().Code())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	base, err := nextPosition(ctx, tx, gameID)
	if err != nil {
		return 0, err
	}
	order := s.shuffledOrder(len(ids))
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE game_cards SET pile = 0, position = ? WHERE id = ?
		`, base+order[i], id); err != nil {
			return 0, fmt.Errorf("reshuffling: %w", err)
		}
	}
	return len(ids), nil
}

func poolCount(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id IS NULL AND pile = 0
	`, gameID).Scan(&n)
	return n, err
}

// drawIntoHand deals one card to userID's hand, reshuffling the discard first
// if the pool is empty. Returns nil when no card exists anywhere to deal.
func (s *SQLiteStore) drawIntoHand(ctx context.Context, tx *sql.Tx, gameID, userID string) (*CardView, error) {
	n, err := poolCount(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if n, err = s.reshuffle(ctx, tx, gameID); err != nil {
			return nil, err
		}
	}
	if n == 0 {
		return nil, nil
	}
	cards, err := s.deal(ctx, tx, gameID, userID, game.HandPile(), 1)
	if err != nil {
		return nil, err
	}
	return &cards[0], nil
}

// checkConservation re-counts a game's cards after every deal and reshuffle.
// The count never legitimately changes after game creation.
func (s *SQLiteStore) checkConservation(ctx context.Context, tx *sql.Tx, gameID string, want int) error {
	var have int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_cards WHERE game_id = ?
	`, gameID).Scan(&have); err != nil {
		return err
	}
	if have != want {
		return fmt.Errorf("%w: game %s has %d cards, want %d", ErrConservation, gameID, have, want)
	}
	return nil
}

// requireTurn loads the game and verifies the caller is seated, the game is in
// progress, and it is the caller's turn, all inside the caller's transaction.
func requireTurn(ctx context.Context, tx *sql.Tx, gameID, userID string) (gameRow, int, int, error) {
	g, err := loadGame(ctx, tx, gameID)
	if err != nil {
		return g, 0, 0, err
	}
	seat, lastDrawTurn, err := seatOf(ctx, tx, gameID, userID)
	if err != nil {
		return g, 0, 0, err
	}
	if g.Status != "in_progress" {
		return g, 0, 0, ErrGameNotActive
	}
	if seat != g.CurrentSeat {
		return g, 0, 0, ErrNotYourTurn
	}
	return g, seat, lastDrawTurn, nil
}

func (s *SQLiteStore) DrawCard(ctx context.Context, gameID, userID string) (CardView, error) {
	var card CardView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, _, lastDrawTurn, err := requireTurn(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if lastDrawTurn == g.Turn {
			return ErrAlreadyDrawn
		}

		drawn, err := s.drawIntoHand(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if drawn == nil {
			return fmt.Errorf("%w: pool and discard are both empty", ErrInsufficientCards)
		}
		card = *drawn

		if _, err := tx.ExecContext(ctx, `
			UPDATE game_players SET last_draw_turn = ? WHERE game_id = ? AND user_id = ?
		`, g.Turn, gameID, userID); err != nil {
			return err
		}
		return s.checkConservation(ctx, tx, gameID, g.Variant.Rules().DeckSize)
	})
	return card, err
}

func (s *SQLiteStore) PlayCard(ctx context.Context, gameID, userID string, req PlayRequest) (PlayResult, error) {
	var result PlayResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, seat, _, err := requireTurn(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}

		switch g.Variant {
		case game.VariantSequence:
			result, err = s.playSequence(ctx, tx, g, seat, userID, req)
		case game.VariantStack:
			result, err = s.playStack(ctx, tx, g, seat, userID, req)
		default:
			err = fmt.Errorf("unknown variant %q", g.Variant)
		}
		if err != nil {
			return err
		}
		return s.checkConservation(ctx, tx, gameID, g.Variant.Rules().DeckSize)
	})
	return result, err
}

// handCard finds the game_cards row for cardID in userID's hand.
func handCard(ctx context.Context, tx *sql.Tx, gameID, userID, cardID string) (rowID, value string, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT gc.id, c.value
		FROM game_cards gc
		JOIN cards c ON c.id = gc.card_id
		WHERE gc.game_id = ? AND gc.user_id = ? AND gc.pile = 0 AND gc.card_id = ?
	`, gameID, userID, cardID).Scan(&rowID, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrCardNotHeld
	}
	return rowID, value, err
}

// advanceTurn moves play to the next occupied seat and bumps the turn counter.
// Seats are assigned contiguously from 1, so modular arithmetic over the seated
// count lands on a real player even when the game started below capacity.
func advanceTurn(ctx context.Context, tx *sql.Tx, g gameRow, seat int, won bool, winnerID string, board string) (turn, nextSeat int, err error) {
	seats, err := seatedCount(ctx, tx, g.ID)
	if err != nil {
		return 0, 0, err
	}
	nextSeat = seat%seats + 1
	turn = g.Turn + 1

	if won {
		_, err = tx.ExecContext(ctx, `
			UPDATE games
			SET status = 'completed', winner_id = ?, turn = ?, current_seat = ?, board_state = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ?
		`, winnerID, turn, nextSeat, board, g.ID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE games
			SET turn = ?, current_seat = ?, board_state = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ?
		`, turn, nextSeat, board, g.ID)
	}
	return turn, nextSeat, err
}

func recordMove(ctx context.Context, tx *sql.Tx, gameID, userID string, turn int, card CardView, pos *game.Position) error {
	played, err := json.Marshal(card)
	if err != nil {
		return err
	}
	var x, y any
	if pos != nil {
		x, y = pos.X, pos.Y
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_moves (id, game_id, user_id, turn, card_played, x, y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), gameID, userID, turn, string(played), x, y)
	return err
}

func (s *SQLiteStore) playSequence(ctx context.Context, tx *sql.Tx, g gameRow, seat int, userID string, req PlayRequest) (PlayResult, error) {
	if req.Position == nil {
		return PlayResult{}, fmt.Errorf("%w: position is required", ErrBadPlacement)
	}
	pos := *req.Position

	rowID, value, err := handCard(ctx, tx, g.ID, userID, req.CardID)
	if err != nil {
		return PlayResult{}, err
	}
	card, err := game.ParseCard(value)
	if err != nil {
		return PlayResult{}, fmt.Errorf("parsing held card %q: %w", value, err)
	}

	var chips game.Chips
	if err := json.Unmarshal([]byte(g.BoardState), &chips); err != nil {
		return PlayResult{}, fmt.Errorf("decoding board state: %w", err)
	}

	cfg := game.DefaultConfig()
	color := game.SeatColor(seat)
	if !game.ValidatePlacement(chips, color, card, pos, cfg) {
		return PlayResult{}, ErrBadPlacement
	}

	result := PlayResult{}
	if card.OneEyed() {
		chips.Set(pos, game.NoColor)
		result.Removed = true
	} else {
		chips.Set(pos, color)
	}

	// The played card goes under the discard, face down, until a reshuffle.
	basePos, err := nextPosition(ctx, tx, g.ID)
	if err != nil {
		return PlayResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE game_cards SET user_id = NULL, pile = ?, position = ? WHERE id = ?
	`, game.DiscardBottomPile().Code(), basePos, rowID); err != nil {
		return PlayResult{}, err
	}

	if result.DrewCard, err = s.drawIntoHand(ctx, tx, g.ID, userID); err != nil {
		return PlayResult{}, err
	}

	if !result.Removed {
		if run := game.WinningRun(chips, color, cfg); run != nil {
			result.Won = true
			result.WinningRun = run
		}
	}

	board, err := json.Marshal(chips)
	if err != nil {
		return PlayResult{}, err
	}
	result.Turn, result.CurrentSeat, err = advanceTurn(ctx, tx, g, seat, result.Won, userID, string(board))
	if err != nil {
		return PlayResult{}, err
	}

	err = recordMove(ctx, tx, g.ID, userID, g.Turn, CardView{ID: req.CardID, Value: value}, &pos)
	return result, err
}

func (s *SQLiteStore) playStack(ctx context.Context, tx *sql.Tx, g gameRow, seat int, userID string, req PlayRequest) (PlayResult, error) {
	pile, err := game.BuildPile(req.BuildPile)
	if err != nil {
		return PlayResult{}, fmt.Errorf("%w: %v", ErrBadPlacement, err)
	}

	var rowID, value string
	fromPersonal := req.FromPersonal
	if fromPersonal {
		// Only the top of the personal pile is playable.
		var cardID string
		err := tx.QueryRowContext(ctx, `
			SELECT gc.id, gc.card_id, c.value
			FROM game_cards gc
			JOIN cards c ON c.id = gc.card_id
			WHERE gc.game_id = ? AND gc.user_id = ? AND gc.pile = ?
			ORDER BY gc.position DESC
			LIMIT 1
		`, g.ID, userID, game.PersonalPile().Code()).Scan(&rowID, &cardID, &value)
		if errors.Is(err, sql.ErrNoRows) {
			return PlayResult{}, ErrCardNotHeld
		}
		if err != nil {
			return PlayResult{}, err
		}
		if req.CardID != "" && req.CardID != cardID {
			return PlayResult{}, fmt.Errorf("%w: only the top personal card can be played", ErrCardNotHeld)
		}
		req.CardID = cardID
	} else {
		if rowID, value, err = handCard(ctx, tx, g.ID, userID, req.CardID); err != nil {
			return PlayResult{}, err
		}
	}

	rank, err := game.ParseStackCode(value)
	if err != nil {
		return PlayResult{}, fmt.Errorf("parsing held card %q: %w", value, err)
	}

	var height int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id = ? AND pile = ?
	`, g.ID, userID, pile.Code()).Scan(&height); err != nil {
		return PlayResult{}, err
	}
	if !game.StackPlayable(height, rank) {
		return PlayResult{}, fmt.Errorf("%w: pile %d at height %d cannot take %s",
			ErrBadPlacement, pile.Slot, height, value)
	}

	basePos, err := nextPosition(ctx, tx, g.ID)
	if err != nil {
		return PlayResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE game_cards SET pile = ?, position = ? WHERE id = ?
	`, pile.Code(), basePos, rowID); err != nil {
		return PlayResult{}, err
	}

	result := PlayResult{}
	if height+1 == game.BuildTop {
		// A completed pile is swept under the discard for future reshuffles.
		if _, err := tx.ExecContext(ctx, `
			UPDATE game_cards SET user_id = NULL, pile = ?
			WHERE game_id = ? AND user_id = ? AND pile = ?
		`, game.DiscardBottomPile().Code(), g.ID, userID, pile.Code()); err != nil {
			return PlayResult{}, err
		}
		result.SweptPile = pile.Slot
	}

	if !fromPersonal {
		if result.DrewCard, err = s.drawIntoHand(ctx, tx, g.ID, userID); err != nil {
			return PlayResult{}, err
		}
	}

	if fromPersonal {
		var remaining int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id = ? AND pile = ?
		`, g.ID, userID, game.PersonalPile().Code()).Scan(&remaining); err != nil {
			return PlayResult{}, err
		}
		result.Won = remaining == 0
	}

	result.Turn, result.CurrentSeat, err = advanceTurn(ctx, tx, g, seat, result.Won, userID, g.BoardState)
	if err != nil {
		return PlayResult{}, err
	}

	err = recordMove(ctx, tx, g.ID, userID, g.Turn, CardView{ID: req.CardID, Value: value}, nil)
	return result, err
}
