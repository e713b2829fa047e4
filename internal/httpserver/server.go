// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Numer0n relay bootstrap.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Bootstrap: POST /createGame (optional JWT guard), GET /games/{gameId}.
//   - Websocket gateway: GET /ws/{gameId} routes into the game's relay instance.
//
// Notes:
//   - CORS allows a single configured origin.
//   - The websocket route sits outside the handler timeout; the socket lives
//     for the whole game.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/numer0n/apps/go-server/internal/relay"
)

// Options configures a Server.
type Options struct {
	ClientOrigin string // CORS origin, default http://localhost:5174
	JWTSecret    string // empty = POST /createGame is unauthenticated
}

// Server bundles router and relay registry.
type Server struct {
	r        *chi.Mux
	registry *relay.Registry
	secret   []byte
}

// New constructs a Server, installs middleware, and registers routes.
func New(reg *relay.Registry, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5174"
	}
	s := &Server{r: chi.NewRouter(), registry: reg}
	if opts.JWTSecret != "" {
		s.secret = []byte(opts.JWTSecret)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(cors(opts.ClientOrigin))

	// Websocket gateway, no handler timeout
	s.r.Get("/ws/{gameId}", s.handleWebsocket)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"numer0n-relay","endpoints":["/health","POST /createGame","GET /games/{gameId}","GET /ws/{gameId}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		r.With(s.requireAuth()).Post("/createGame", s.handleCreateGame)
		r.Get("/games/{gameId}", s.handleGetGame)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not Found")
		})
	})

	return s
}

// Router exposes the internal router (useful for tests and main).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors allows a single origin and answers preflight requests.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes {"error": msg} with status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ------------------------------ GAMES --------------------------------------

// createGameReq/Res payloads for POST /createGame.
type createGameReq struct {
	GameID          string `json:"gameId"`
	ContractAddress string `json:"contractAddress"`
}
type createGameRes struct {
	GameID string `json:"gameId"`
	Port   int    `json:"port"`
}

// handleCreateGame starts a relay instance for the game and returns its port.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.GameID == "" {
		log.Warn().Msg("createGame: missing gameId")
		writeError(w, http.StatusBadRequest, "Missing gameId")
		return
	}
	if req.ContractAddress == "" {
		log.Warn().Str("gameId", req.GameID).Msg("createGame: missing contractAddress")
		writeError(w, http.StatusBadRequest, "Missing contractAddress")
		return
	}

	inst, err := s.registry.Create(r.Context(), req.GameID, req.ContractAddress)
	if err != nil {
		log.Error().Err(err).Str("gameId", req.GameID).Msg("createGame")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("gameId", req.GameID).Str("subject", Subject(r.Context())).Int("port", inst.Port()).Msg("createGame")
	_ = json.NewEncoder(w).Encode(createGameRes{GameID: inst.GameID(), Port: inst.Port()})
}

type gameRes struct {
	GameID          string   `json:"gameId"`
	ContractAddress string   `json:"contractAddress"`
	Port            int      `json:"port"`
	Live            bool     `json:"live"`
	Players         []string `json:"players"`
}

// handleGetGame reports a game's relay endpoint, live or persisted.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameId")
	if inst, err := s.registry.Lookup(id); err == nil {
		_ = json.NewEncoder(w).Encode(gameRes{
			GameID:          inst.GameID(),
			ContractAddress: inst.ContractAddress(),
			Port:            inst.Port(),
			Live:            true,
			Players:         nonNil(inst.Users()),
		})
		return
	}

	rec, err := s.registry.Record(r.Context(), id)
	if errors.Is(err, relay.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(gameRes{
		GameID:          rec.GameID,
		ContractAddress: rec.ContractAddress,
		Port:            rec.Port,
		Players:         []string{},
	})
}

// handleWebsocket hands the upgrade to the game's relay instance.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	inst, err := s.registry.Lookup(chi.URLParam(r, "gameId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}
	inst.ServeHTTP(w, r)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
