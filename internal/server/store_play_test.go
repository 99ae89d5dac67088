package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/cardtable/sequence/internal/game"
)

func TestDrawOncePerTurn(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	card, err := store.DrawCard(ctx, gameID, alice.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if card.ID == "" || card.Value == "" {
		t.Errorf("expected a card, got %+v", card)
	}

	if _, err := store.DrawCard(ctx, gameID, alice.ID); !errors.Is(err, ErrAlreadyDrawn) {
		t.Errorf("expected ErrAlreadyDrawn, got %v", err)
	}
	if _, err := store.DrawCard(ctx, gameID, bob.ID); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn for bob, got %v", err)
	}

	view, err := store.GetState(ctx, gameID, alice.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(view.Hand) != 8 {
		t.Errorf("expected hand of 8 after drawing, got %d", len(view.Hand))
	}
}

func TestConcurrentDrawsDealEachCardOnce(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	var drawn int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := store.DrawCard(gctx, gameID, alice.ID)
			if err == nil {
				atomic.AddInt32(&drawn, 1)
				return nil
			}
			if errors.Is(err, ErrAlreadyDrawn) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent draws: %v", err)
	}

	if drawn != 1 {
		t.Errorf("expected exactly one successful draw, got %d", drawn)
	}
	hand := countWhere(t, db,
		`SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id = ? AND pile = 0`, gameID, alice.ID)
	if hand != 8 {
		t.Errorf("expected hand of 8, got %d", hand)
	}
	total := countWhere(t, db, `SELECT COUNT(*) FROM game_cards WHERE game_id = ?`, gameID)
	if total != 162 {
		t.Errorf("conservation broken: %d cards", total)
	}
}

func TestStackPlayFromHand(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	cardID := forceCard(t, db, gameID, "1", alice.ID, 0)

	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: cardID, BuildPile: 1})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if result.Won || result.Removed || result.SweptPile != 0 {
		t.Errorf("unexpected result flags: %+v", result)
	}
	if result.DrewCard == nil {
		t.Errorf("expected a replacement card after playing from hand")
	}
	if result.CurrentSeat != 2 || result.Turn != 1 {
		t.Errorf("expected turn to pass to seat 2, got seat %d turn %d", result.CurrentSeat, result.Turn)
	}

	// Turn has passed.
	if _, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: cardID, BuildPile: 1}); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}

	moves := countWhere(t, db, `SELECT COUNT(*) FROM game_moves WHERE game_id = ?`, gameID)
	if moves != 1 {
		t.Errorf("expected 1 recorded move, got %d", moves)
	}
}

func TestStackRejectsUnplayableCard(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	cardID := forceCard(t, db, gameID, "5", alice.ID, 0)

	// A 5 on an empty build pile.
	if _, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: cardID, BuildPile: 2}); !errors.Is(err, ErrBadPlacement) {
		t.Errorf("expected ErrBadPlacement, got %v", err)
	}

	// A card alice does not hold.
	if _, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: "nope", BuildPile: 1}); !errors.Is(err, ErrCardNotHeld) {
		t.Errorf("expected ErrCardNotHeld, got %v", err)
	}

	// An out-of-range pile slot.
	if _, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: cardID, BuildPile: 5}); !errors.Is(err, ErrBadPlacement) {
		t.Errorf("expected ErrBadPlacement for pile 5, got %v", err)
	}
}

func TestStackCompletedPileIsSwept(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	for rank := 1; rank <= 11; rank++ {
		forceCard(t, db, gameID, game.StackCode(rank), alice.ID, 1)
	}
	cardID := forceCard(t, db, gameID, "12", alice.ID, 0)

	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{CardID: cardID, BuildPile: 1})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if result.SweptPile != 1 {
		t.Errorf("expected pile 1 to be swept, got %d", result.SweptPile)
	}

	remaining := countWhere(t, db,
		`SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id = ? AND pile = 1`, gameID, alice.ID)
	if remaining != 0 {
		t.Errorf("expected swept pile to be empty, got %d cards", remaining)
	}
	discard := countWhere(t, db,
		`SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id IS NULL AND pile = -2`, gameID)
	if discard != 12 {
		t.Errorf("expected 12 cards under the discard, got %d", discard)
	}
	total := countWhere(t, db, `SELECT COUNT(*) FROM game_cards WHERE game_id = ?`, gameID)
	if total != 162 {
		t.Errorf("conservation broken: %d cards", total)
	}
}

func TestStackWinByEmptyingPersonalPile(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	// Leave alice one wild card on her personal pile.
	if _, err := db.Exec(`
		UPDATE game_cards SET user_id = NULL, pile = 0
		WHERE game_id = ? AND user_id = ? AND pile = -1
	`, gameID, alice.ID); err != nil {
		t.Fatalf("clearing personal pile: %v", err)
	}
	forceCard(t, db, gameID, game.StackCode(game.WildRank), alice.ID, -1)

	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{FromPersonal: true, BuildPile: 3})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !result.Won {
		t.Fatalf("expected win on empty personal pile, got %+v", result)
	}
	if result.DrewCard != nil {
		t.Errorf("personal-pile plays should not draw a replacement")
	}

	view, err := store.GetState(ctx, gameID, bob.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if view.Game.Status != "completed" {
		t.Errorf("expected completed, got %q", view.Game.Status)
	}
	if view.WinnerID == nil || *view.WinnerID != alice.ID {
		t.Errorf("expected alice as winner, got %v", view.WinnerID)
	}

	// No further plays once the game is decided.
	if _, err := store.DrawCard(ctx, gameID, bob.ID); !errors.Is(err, ErrGameNotActive) {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
}

func TestDrawReshufflesDiscard(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantStack, alice, bob)

	// Move the whole pool under the discard so the next draw must reshuffle.
	if _, err := db.Exec(`
		UPDATE game_cards SET pile = -2
		WHERE game_id = ? AND user_id IS NULL AND pile = 0
	`, gameID); err != nil {
		t.Fatalf("draining pool: %v", err)
	}

	if _, err := store.DrawCard(ctx, gameID, alice.ID); err != nil {
		t.Fatalf("draw after reshuffle: %v", err)
	}

	discard := countWhere(t, db,
		`SELECT COUNT(*) FROM game_cards WHERE game_id = ? AND user_id IS NULL AND pile = -2`, gameID)
	if discard != 0 {
		t.Errorf("expected empty discard after reshuffle, got %d", discard)
	}
	total := countWhere(t, db, `SELECT COUNT(*) FROM game_cards WHERE game_id = ?`, gameID)
	if total != 162 {
		t.Errorf("conservation broken: %d cards", total)
	}
}

func TestSequencePlacementAndReplacementDraw(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantSequence, alice, bob)

	// (0,0) is printed as the two of hearts.
	returnHands(t, db, gameID)
	cardID := forceCard(t, db, gameID, "hearts:2", alice.ID, 0)

	// Wrong cell for the card.
	if _, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{
		CardID: cardID, Position: &game.Position{X: 1, Y: 0},
	}); !errors.Is(err, ErrBadPlacement) {
		t.Errorf("expected ErrBadPlacement, got %v", err)
	}

	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{
		CardID: cardID, Position: &game.Position{X: 0, Y: 0},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if result.DrewCard == nil {
		t.Errorf("expected a replacement card")
	}
	if result.CurrentSeat != 2 {
		t.Errorf("expected turn to pass to seat 2, got %d", result.CurrentSeat)
	}

	view, err := store.GetState(ctx, gameID, bob.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got := view.Board.At(game.Position{X: 0, Y: 0}); got != "red" {
		t.Errorf("expected red chip at (0,0), got %q", got)
	}
}

func TestSequenceWildJackCompletesSequence(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantSequence, alice, bob)

	chips := game.NewChips(10)
	for x := 2; x < 6; x++ {
		chips.Set(game.Position{X: x, Y: 3}, "red")
	}
	data, err := json.Marshal(chips)
	if err != nil {
		t.Fatalf("marshal board: %v", err)
	}
	if _, err := db.Exec(`UPDATE games SET board_state = ? WHERE id = ?`, string(data), gameID); err != nil {
		t.Fatalf("set board: %v", err)
	}

	// A two-eyed jack placed anywhere open completes the run of five.
	returnHands(t, db, gameID)
	cardID := forceCard(t, db, gameID, "clubs:J", alice.ID, 0)
	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{
		CardID: cardID, Position: &game.Position{X: 6, Y: 3},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !result.Won {
		t.Fatalf("expected a win, got %+v", result)
	}
	if len(result.WinningRun) != 5 {
		t.Errorf("expected a run of 5, got %d", len(result.WinningRun))
	}

	view, err := store.GetState(ctx, gameID, alice.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if view.Game.Status != "completed" {
		t.Errorf("expected completed, got %q", view.Game.Status)
	}
	if view.WinnerID == nil || *view.WinnerID != alice.ID {
		t.Errorf("expected alice as winner, got %v", view.WinnerID)
	}
}

func TestSequenceOneEyedJackRemovesOpponentChip(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	gameID := newRunningGame(t, store, game.VariantSequence, alice, bob)

	chips := game.NewChips(10)
	chips.Set(game.Position{X: 1, Y: 1}, "blue")
	data, err := json.Marshal(chips)
	if err != nil {
		t.Fatalf("marshal board: %v", err)
	}
	if _, err := db.Exec(`UPDATE games SET board_state = ? WHERE id = ?`, string(data), gameID); err != nil {
		t.Fatalf("set board: %v", err)
	}

	returnHands(t, db, gameID)
	cardID := forceCard(t, db, gameID, "hearts:J", alice.ID, 0)
	result, err := store.PlayCard(ctx, gameID, alice.ID, PlayRequest{
		CardID: cardID, Position: &game.Position{X: 1, Y: 1},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !result.Removed {
		t.Errorf("expected removal, got %+v", result)
	}
	if result.Won {
		t.Errorf("a removal cannot win")
	}

	view, err := store.GetState(ctx, gameID, alice.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got := view.Board.At(game.Position{X: 1, Y: 1}); got != game.NoColor {
		t.Errorf("expected empty cell after removal, got %q", got)
	}
}
