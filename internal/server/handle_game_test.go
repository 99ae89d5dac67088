package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardtable/sequence/internal/game"
)

func testRouter(t *testing.T) (*chi.Mux, *SQLiteStore, *sql.DB) {
	t.Helper()
	store, db := setupStore(t)

	r := chi.NewRouter()
	addRoutes(r, testLogger(), store, db)
	return r, store, db
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, handler http.Handler, username string) AuthResponse {
	t.Helper()

	w := doJSON(t, handler, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}

	var resp AuthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}

func TestRegisterLoginMe(t *testing.T) {
	r, _, _ := testRouter(t)

	auth := register(t, r, "alice")
	if auth.Token == "" || auth.User.Username != "alice" {
		t.Fatalf("unexpected register response: %+v", auth)
	}

	// Duplicate username.
	w := doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "hunter2hunter2",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", w.Code)
	}

	// Wrong password.
	w = doJSON(t, r, http.MethodPost, "/api/login", "", LoginRequest{
		Username: "alice", Password: "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", w.Code)
	}

	// Right password.
	w = doJSON(t, r, http.MethodPost, "/api/login", "", LoginRequest{
		Username: "alice", Password: "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/me", auth.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	var me User
	json.NewDecoder(w.Body).Decode(&me)
	if me.Username != "alice" {
		t.Errorf("expected alice, got %q", me.Username)
	}

	// No token.
	w = doJSON(t, r, http.MethodGet, "/api/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	r, _, _ := testRouter(t)
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")

	// Bad variant.
	w := doJSON(t, r, http.MethodPost, "/api/games", alice.Token, CreateGameRequest{
		Variant: "poker", PlayerCount: 2,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown variant, got %d", w.Code)
	}

	// Create.
	w = doJSON(t, r, http.MethodPost, "/api/games", alice.Token, CreateGameRequest{
		Variant: "stack", PlayerCount: 2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created GameDescription
	json.NewDecoder(w.Body).Decode(&created)

	// Listed for bob.
	w = doJSON(t, r, http.MethodGet, "/api/games", bob.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var listed []GameDescription
	json.NewDecoder(w.Body).Decode(&listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the created game in the lobby, got %+v", listed)
	}

	// Join fills the table and starts the game.
	w = doJSON(t, r, http.MethodPost, "/api/games/"+created.ID+"/join", bob.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var joined GameDescription
	json.NewDecoder(w.Body).Decode(&joined)
	if joined.Status != "in_progress" {
		t.Errorf("expected in_progress, got %q", joined.Status)
	}

	// State view for bob.
	w = doJSON(t, r, http.MethodGet, "/api/games/"+created.ID, bob.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", w.Code)
	}
	var view PlayerView
	json.NewDecoder(w.Body).Decode(&view)
	if len(view.Hand) != 7 {
		t.Errorf("expected hand of 7, got %d", len(view.Hand))
	}
	if view.CurrentSeat != 1 {
		t.Errorf("expected seat 1 to open, got %d", view.CurrentSeat)
	}

	// Alice draws; a second draw the same turn is refused.
	w = doJSON(t, r, http.MethodPost, "/api/games/"+created.ID+"/draw", alice.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("draw: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/games/"+created.ID+"/draw", alice.Token, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on second draw, got %d", w.Code)
	}

	// Bob cannot act out of turn.
	w = doJSON(t, r, http.MethodPost, "/api/games/"+created.ID+"/draw", bob.Token, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for out-of-turn draw, got %d", w.Code)
	}
}

func TestEventsStreamSendsSnapshot(t *testing.T) {
	r, store, _ := testRouter(t)
	alice := register(t, r, "alice")

	ctx := context.Background()
	aliceUser, err := store.UserFromSession(ctx, alice.Token)
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	desc, err := store.CreateGame(ctx, aliceUser.ID, game.VariantStack, 2)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := httptest.NewRequest(http.MethodGet, "/api/games/"+desc.ID+"/events?token="+alice.Token, nil)
	req = req.WithContext(reqCtx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: state") {
		t.Errorf("expected an initial state event, got %q", body)
	}
	if !strings.Contains(body, desc.ID) {
		t.Errorf("expected the game id in the snapshot, got %q", body)
	}
}

func TestEventsStreamRejectsOutsiders(t *testing.T) {
	r, store, _ := testRouter(t)
	alice := register(t, r, "alice")
	mallory := register(t, r, "mallory")

	ctx := context.Background()
	aliceUser, err := store.UserFromSession(ctx, alice.Token)
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	desc, err := store.CreateGame(ctx, aliceUser.ID, game.VariantStack, 2)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/games/"+desc.ID+"/events?token="+mallory.Token, "", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-player, got %d", w.Code)
	}
}
