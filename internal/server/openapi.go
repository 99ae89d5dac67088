package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Card Table API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for multiplayer board-and-card games.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/register
	postRegister, _ := r.NewOperationContext(http.MethodPost, "/api/register")
	postRegister.SetSummary("Register")
	postRegister.SetDescription("Creates an account and returns a session token.")
	postRegister.AddReqStructure(RegisterRequest{})
	postRegister.AddRespStructure(AuthResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRegister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postRegister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postRegister)

	// POST /api/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/login")
	postLogin.SetSummary("Log in")
	postLogin.SetDescription("Authenticate with username and password. Returns a session token.")
	postLogin.AddReqStructure(LoginRequest{})
	postLogin.AddRespStructure(AuthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/logout")
	postLogout.SetSummary("Log out")
	postLogout.SetDescription("Deletes the current session. Requires Bearer token.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/me")
	getMe.SetSummary("Current user")
	getMe.SetDescription("Returns the authenticated user. Requires Bearer token.")
	getMe.AddRespStructure(User{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/games")
	listGames.SetSummary("List joinable games")
	listGames.SetDescription("Returns waiting games with open seats. Supports limit and offset query parameters. Requires Bearer token.")
	listGames.AddRespStructure([]GameDescription{}, openapi.WithHTTPStatus(http.StatusOK))
	listGames.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listGames)

	// POST /api/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createGame.SetSummary("Create game")
	createGame.SetDescription("Creates a game, shuffles its deck, and seats the creator. Requires Bearer token.")
	createGame.AddReqStructure(CreateGameRequest{})
	createGame.AddRespStructure(GameDescription{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createGame)

	// GET /api/games/{gameID}
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}")
	getState.SetSummary("Get game state")
	getState.SetDescription("Returns the caller's view of the game: public seat data plus their own hand. Requires Bearer token.")
	getState.AddRespStructure(PlayerView{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// POST /api/games/{gameID}/join
	joinGame, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/join")
	joinGame.SetSummary("Join game")
	joinGame.SetDescription("Takes the next open seat and deals starting cards. Starts the game when the table fills. Requires Bearer token.")
	joinGame.AddRespStructure(GameDescription{}, openapi.WithHTTPStatus(http.StatusOK))
	joinGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	joinGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(joinGame)

	// POST /api/games/{gameID}/start
	startGame, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/start")
	startGame.SetSummary("Start game")
	startGame.SetDescription("Starts a waiting game before the table is full. Requires enough seated players and a Bearer token.")
	startGame.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	startGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(startGame)

	// POST /api/games/{gameID}/cancel
	cancelGame, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/cancel")
	cancelGame.SetSummary("Cancel game")
	cancelGame.SetDescription("Cancels a waiting or running game. Requires a seat and a Bearer token.")
	cancelGame.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	cancelGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(cancelGame)

	// POST /api/games/{gameID}/draw
	drawCard, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/draw")
	drawCard.SetSummary("Draw a card")
	drawCard.SetDescription("Draws one card into the caller's hand. Once per turn, on the caller's turn only. Requires Bearer token.")
	drawCard.AddRespStructure(CardView{}, openapi.WithHTTPStatus(http.StatusOK))
	drawCard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(drawCard)

	// POST /api/games/{gameID}/play
	playCard, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/play")
	playCard.SetSummary("Play a card")
	playCard.SetDescription("Plays a card: board placement for the sequence variant, build piles for the stack variant. Requires Bearer token.")
	playCard.AddReqStructure(PlayRequest{})
	playCard.AddRespStructure(PlayResult{}, openapi.WithHTTPStatus(http.StatusOK))
	playCard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	playCard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(playCard)

	// GET /api/games/{gameID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/events")
	getEvents.SetSummary("SSE state stream")
	getEvents.SetDescription("Server-Sent Events stream of the caller's game view. Pass the session token as a query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/games/{gameID}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/ws")
	getWS.SetSummary("WebSocket state stream")
	getWS.SetDescription("Upgrades to a WebSocket that carries the same state events as the SSE stream.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
