package server

import (
	"context"
	"crypto/md5"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cardtable/sequence/internal/game"
)

// SQLiteStore implements Store against a single SQLite database.
type SQLiteStore struct {
	db *sql.DB

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	var seed int64
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return &SQLiteStore{
		db:  db,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// shuffledOrder is a thread-safe Fisher-Yates permutation of 0..n-1.
func (s *SQLiteStore) shuffledOrder(n int) []int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return game.ShuffledOrder(n, s.rng)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- users & sessions ---

func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	u := User{
		ID:       uuid.NewString(),
		Username: username,
		Gravatar: fmt.Sprintf("%x", md5.Sum([]byte(strings.ToLower(email)))),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, gravatar, password_hash)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, username, email, u.Gravatar, passwordHash)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return User{}, ErrUserExists
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, gravatar, password_hash FROM users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.Gravatar, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id) VALUES (?) RETURNING id
	`, userID).Scan(&sessionID)
	return sessionID, err
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) UserFromSession(ctx context.Context, sessionID string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.gravatar
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`, sessionID).Scan(&u.ID, &u.Username, &u.Gravatar)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// --- game lifecycle ---

// gameRow is the games table row as loaded inside a transaction.
type gameRow struct {
	ID          string
	Variant     game.Variant
	Status      string
	PlayerCount int
	CurrentSeat int
	Turn        int
	BoardState  string
	WinnerID    sql.NullString
	CreatedAt   string
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadGame(ctx context.Context, q querier, gameID string) (gameRow, error) {
	var g gameRow
	var variant string
	err := q.QueryRowContext(ctx, `
		SELECT id, variant, status, player_count, current_seat, turn, board_state, winner_id, created_at
		FROM games WHERE id = ?
	`, gameID).Scan(&g.ID, &variant, &g.Status, &g.PlayerCount, &g.CurrentSeat, &g.Turn,
		&g.BoardState, &g.WinnerID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	g.Variant, err = game.ParseVariant(variant)
	return g, err
}

func seatedCount(ctx context.Context, q querier, gameID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_players WHERE game_id = ?
	`, gameID).Scan(&n)
	return n, err
}

// seatOf returns the seat and last_draw_turn for userID, or ErrNotSeated.
func seatOf(ctx context.Context, q querier, gameID, userID string) (seat, lastDrawTurn int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT seat, last_draw_turn FROM game_players WHERE game_id = ? AND user_id = ?
	`, gameID, userID).Scan(&seat, &lastDrawTurn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotSeated
	}
	return seat, lastDrawTurn, err
}

func (s *SQLiteStore) CreateGame(ctx context.Context, userID string, variant game.Variant, playerCount int) (GameDescription, error) {
	rules := variant.Rules()
	if playerCount < rules.MinPlayers || playerCount > rules.MaxPlayers {
		return GameDescription{}, fmt.Errorf("%w: player count %d outside %d-%d",
			ErrNotEnoughPlayers, playerCount, rules.MinPlayers, rules.MaxPlayers)
	}

	gameID := uuid.NewString()
	var desc GameDescription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO games (id, variant, player_count, board_state)
			VALUES (?, ?, ?, ?)
		`, gameID, string(variant), playerCount, initialBoardState(variant))
		if err != nil {
			return fmt.Errorf("inserting game: %w", err)
		}

		if err := s.insertDeck(ctx, tx, gameID, variant); err != nil {
			return err
		}

		desc, err = s.joinTx(ctx, tx, gameID, userID)
		return err
	})
	return desc, err
}

func initialBoardState(variant game.Variant) string {
	if variant != game.VariantSequence {
		return "null"
	}
	data, _ := json.Marshal(game.NewChips(game.DefaultConfig().BoardSize))
	return string(data)
}

// insertDeck copies the variant's seeded deck into game_cards with a fresh
// Fisher-Yates position assignment. Dealing later claims the lowest positions,
// so the random order here is the shuffle.
func (s *SQLiteStore) insertDeck(ctx context.Context, tx *sql.Tx, gameID string, variant game.Variant) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM cards WHERE variant = ? ORDER BY id`, string(variant))
	if err != nil {
		return fmt.Errorf("loading deck: %w", err)
	}
	defer rows.Close()

	var cardIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		cardIDs = append(cardIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rules := variant.Rules()
	if len(cardIDs) != rules.DeckSize {
		return fmt.Errorf("cards table holds %d %s cards, want %d", len(cardIDs), variant, rules.DeckSize)
	}

	order := s.shuffledOrder(len(cardIDs))

	var sb strings.Builder
	sb.WriteString(`INSERT INTO game_cards (id, game_id, card_id, pile, position) VALUES `)
	args := make([]any, 0, len(cardIDs)*4)
	for i, cardID := range cardIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, 0, ?)")
		args = append(args, uuid.NewString(), gameID, cardID, order[i])
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting game deck: %w", err)
	}
	return nil
}

func (s *SQLiteStore) JoinGame(ctx context.Context, gameID, userID string) (GameDescription, error) {
	var desc GameDescription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		desc, err = s.joinTx(ctx, tx, gameID, userID)
		return err
	})
	return desc, err
}

// joinTx seats a player and deals their starting cards in one transaction: the
// seat row, the hand, and (stack variant) the personal pile all land atomically
// or not at all.
func (s *SQLiteStore) joinTx(ctx context.Context, tx *sql.Tx, gameID, userID string) (GameDescription, error) {
	g, err := loadGame(ctx, tx, gameID)
	if err != nil {
		return GameDescription{}, err
	}
	if g.Status != "waiting" {
		return GameDescription{}, ErrGameNotWaiting
	}

	var joined int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_players WHERE game_id = ? AND user_id = ?
	`, gameID, userID).Scan(&joined); err != nil {
		return GameDescription{}, err
	}
	if joined > 0 {
		return GameDescription{}, ErrAlreadyJoined
	}

	seats, err := seatedCount(ctx, tx, gameID)
	if err != nil {
		return GameDescription{}, err
	}
	if seats >= g.PlayerCount {
		return GameDescription{}, ErrGameFull
	}

	seat := seats + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO game_players (id, game_id, user_id, seat)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), gameID, userID, seat); err != nil {
		return GameDescription{}, fmt.Errorf("seating player: %w", err)
	}

	rules := g.Variant.Rules()
	if _, err := s.deal(ctx, tx, gameID, userID, game.HandPile(), rules.HandSize); err != nil {
		return GameDescription{}, err
	}
	if rules.PersonalPileSize > 0 {
		if _, err := s.deal(ctx, tx, gameID, userID, game.PersonalPile(), rules.PersonalPileSize); err != nil {
			return GameDescription{}, err
		}
	}

	status := g.Status
	if seat == g.PlayerCount {
		status = "in_progress"
		if _, err := tx.ExecContext(ctx, `
			UPDATE games SET status = 'in_progress', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? AND status = 'waiting'
		`, gameID); err != nil {
			return GameDescription{}, err
		}
	}

	if err := s.checkConservation(ctx, tx, gameID, rules.DeckSize); err != nil {
		return GameDescription{}, err
	}

	return GameDescription{
		ID:          gameID,
		Variant:     string(g.Variant),
		Status:      status,
		Players:     seat,
		PlayerCount: g.PlayerCount,
		Joined:      true,
		CreatedAt:   g.CreatedAt,
	}, nil
}

func (s *SQLiteStore) StartGame(ctx context.Context, gameID, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if _, _, err := seatOf(ctx, tx, gameID, userID); err != nil {
			return err
		}
		if g.Status != "waiting" {
			return ErrGameNotWaiting
		}

		seats, err := seatedCount(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if seats < g.Variant.Rules().MinPlayers {
			return ErrNotEnoughPlayers
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE games SET status = 'in_progress', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? AND status = 'waiting'
		`, gameID)
		return err
	})
}

func (s *SQLiteStore) CancelGame(ctx context.Context, gameID, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if _, _, err := seatOf(ctx, tx, gameID, userID); err != nil {
			return err
		}
		if g.Status != "waiting" && g.Status != "in_progress" {
			return ErrGameNotActive
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE games SET status = 'cancelled', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? AND status IN ('waiting', 'in_progress')
		`, gameID)
		return err
	})
}

func (s *SQLiteStore) ListAvailable(ctx context.Context, userID string, limit, offset int) ([]GameDescription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.variant, g.status, g.player_count, g.created_at,
			(SELECT COUNT(*) FROM game_players gp WHERE gp.game_id = g.id) AS players,
			EXISTS(SELECT 1 FROM game_players gp WHERE gp.game_id = g.id AND gp.user_id = ?) AS joined
		FROM games g
		WHERE g.status = 'waiting'
			AND (SELECT COUNT(*) FROM game_players gp WHERE gp.game_id = g.id) < g.player_count
		ORDER BY g.created_at DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []GameDescription{}
	for rows.Next() {
		var d GameDescription
		if err := rows.Scan(&d.ID, &d.Variant, &d.Status, &d.PlayerCount, &d.CreatedAt, &d.Players, &d.Joined); err != nil {
			return nil, err
		}
		games = append(games, d)
	}
	return games, rows.Err()
}

func (s *SQLiteStore) SeatedUserIDs(ctx context.Context, gameID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM game_players WHERE game_id = ? ORDER BY seat
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetState builds the denormalized per-player view: public seat data for every
// player, the chip grid, and the viewer's own hand. Other hands stay hidden.
func (s *SQLiteStore) GetState(ctx context.Context, gameID, userID string) (PlayerView, error) {
	g, err := loadGame(ctx, s.db, gameID)
	if err != nil {
		return PlayerView{}, err
	}

	seats, err := seatedCount(ctx, s.db, gameID)
	if err != nil {
		return PlayerView{}, err
	}

	view := PlayerView{
		Game: GameDescription{
			ID:          g.ID,
			Variant:     string(g.Variant),
			Status:      g.Status,
			Players:     seats,
			PlayerCount: g.PlayerCount,
			CreatedAt:   g.CreatedAt,
		},
		Turn:        g.Turn,
		CurrentSeat: g.CurrentSeat,
		Hand:        []CardView{},
	}
	if g.WinnerID.Valid {
		view.WinnerID = &g.WinnerID.String
	}
	if g.BoardState != "" && g.BoardState != "null" {
		if err := json.Unmarshal([]byte(g.BoardState), &view.Board); err != nil {
			return PlayerView{}, fmt.Errorf("decoding board state: %w", err)
		}
	}

	if view.Players, err = s.seatViews(ctx, gameID, g.CurrentSeat); err != nil {
		return PlayerView{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT gc.card_id, c.value
		FROM game_cards gc
		JOIN cards c ON c.id = gc.card_id
		WHERE gc.game_id = ? AND gc.user_id = ? AND gc.pile = 0
		ORDER BY gc.position
	`, gameID, userID)
	if err != nil {
		return PlayerView{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var cv CardView
		if err := rows.Scan(&cv.ID, &cv.Value); err != nil {
			return PlayerView{}, err
		}
		view.Hand = append(view.Hand, cv)
	}
	return view, rows.Err()
}

func (s *SQLiteStore) seatViews(ctx context.Context, gameID string, currentSeat int) ([]SeatView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.gravatar, gp.seat, gp.last_draw_turn
		FROM game_players gp
		JOIN users u ON u.id = gp.user_id
		WHERE gp.game_id = ?
		ORDER BY gp.seat
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []SeatView{}
	bySeat := map[string]*SeatView{}
	for rows.Next() {
		var v SeatView
		if err := rows.Scan(&v.UserID, &v.Username, &v.Gravatar, &v.Seat, &v.LastDrawTurn); err != nil {
			return nil, err
		}
		v.Color = string(game.SeatColor(v.Seat))
		v.IsCurrent = v.Seat == currentSeat
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range views {
		bySeat[views[i].UserID] = &views[i]
	}

	// Pile counts per player.
	counts, err := s.db.QueryContext(ctx, `
		SELECT user_id, pile, COUNT(*)
		FROM game_cards
		WHERE game_id = ? AND user_id IS NOT NULL
		GROUP BY user_id, pile
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer counts.Close()
	for counts.Next() {
		var uid string
		var pileCode, n int
		if err := counts.Scan(&uid, &pileCode, &n); err != nil {
			return nil, err
		}
		v := bySeat[uid]
		if v == nil {
			continue
		}
		pile, err := game.PileFromCode(pileCode)
		if err != nil {
			continue
		}
		switch pile.Kind {
		case game.Hand:
			v.HandCount = n
		case game.Personal:
			v.PersonalPileCount = n
		}
	}
	if err := counts.Err(); err != nil {
		return nil, err
	}

	// Top of each personal pile; only the top card is public.
	tops, err := s.db.QueryContext(ctx, `
		SELECT gc.user_id, gc.card_id, c.value
		FROM game_cards gc
		JOIN cards c ON c.id = gc.card_id
		WHERE gc.game_id = ? AND gc.pile = -1
		ORDER BY gc.position
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer tops.Close()
	for tops.Next() {
		var uid string
		var cv CardView
		if err := tops.Scan(&uid, &cv.ID, &cv.Value); err != nil {
			return nil, err
		}
		if v := bySeat[uid]; v != nil {
			top := cv
			v.PersonalPileTop = &top
		}
	}
	if err := tops.Err(); err != nil {
		return nil, err
	}

	// Directional build piles, bottom to top.
	piles, err := s.db.QueryContext(ctx, `
		SELECT gc.user_id, gc.pile, c.value
		FROM game_cards gc
		JOIN cards c ON c.id = gc.card_id
		WHERE gc.game_id = ? AND gc.pile BETWEEN 1 AND 4
		ORDER BY gc.user_id, gc.pile, gc.position
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer piles.Close()
	for piles.Next() {
		var uid, value string
		var slot int
		if err := piles.Scan(&uid, &slot, &value); err != nil {
			return nil, err
		}
		if v := bySeat[uid]; v != nil {
			v.BuildPiles[slot-1] = append(v.BuildPiles[slot-1], value)
		}
	}
	return views, piles.Err()
}
