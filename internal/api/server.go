package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"coinforge/internal/auth"
	"coinforge/internal/bot"
	"coinforge/internal/config"
	"coinforge/internal/feed"
	"coinforge/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const callerContextKey contextKey = "caller"

type CallerContext struct {
	Subject string
	Token   string
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	auth *auth.TokenVerifier
	game *game.Service
	bot  *bot.Router
	hub  *feed.Hub
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, verifier *auth.TokenVerifier, gameSvc *game.Service, hub *feed.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		auth: verifier,
		game: gameSvc,
		bot:  bot.NewRouter(gameSvc, logger),
		hub:  hub,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Streams outlive the request timeout.
		r.Get("/stocks/stream", s.handleStockStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/commands", s.handleCommand)
			r.Post("/sync/replay", s.handleSyncReplay)

			r.Get("/stocks", s.handleStocksList)
			r.Get("/stocks/{symbol}/history", s.handleStockHistory)

			r.Route("/players/{platform}/{user}", func(r chi.Router) {
				r.Get("/portfolio", s.handlePortfolio)
				r.Get("/artifacts", s.handleStorage)
				r.Post("/artifacts", s.handleGrantArtifact)
				r.Post("/artifacts/{id}/{action}", s.handleArtifactAction)
				r.Post("/draws", s.handleDraw)
				r.Post("/orders", s.handleOrder)
				r.Post("/ledger", s.handleLedger)
				r.Post("/checkin", s.handleCheckin)
				r.Post("/boom", s.handleBoom)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			// Browsers cannot set headers on a websocket handshake.
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), callerContextKey, CallerContext{
			Subject: caller.Subject,
			Token:   token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) (CallerContext, error) {
	v := ctx.Value(callerContextKey)
	caller, ok := v.(CallerContext)
	if !ok || caller.Subject == "" {
		return CallerContext{}, errors.New("missing auth context")
	}
	return caller, nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var in bot.Command
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	reply, err := s.bot.Handle(r.Context(), in)
	switch {
	case errors.Is(err, bot.ErrNotCommand):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("commands start with %q", bot.Prefix))
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, reply)
	default:
		writeJSON(w, http.StatusOK, reply)
	}
}

// handleSyncReplay runs queued offline commands in order. A failed command
// does not stop the rest of the batch.
func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Commands []bot.Command `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]bot.Reply, 0, len(in.Commands))
	for _, cmd := range in.Commands {
		reply, err := s.bot.Handle(r.Context(), cmd)
		if errors.Is(err, bot.ErrNotCommand) {
			reply = bot.Reply{Message: fmt.Sprintf("Not a command: %q", cmd.Text)}
		}
		out = append(out, reply)
	}
	s.log.Info("sync replay", "caller", caller.Subject, "commands", len(in.Commands))
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	view, err := s.game.Market(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStockHistory(w http.ResponseWriter, r *http.Request) {
	view, err := s.game.History(r.Context(), chi.URLParam(r, "symbol"), r.URL.Query().Get("period"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrArtifactNotFound), errors.Is(err, game.ErrStockNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrAlreadyCheckedIn):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrArtifactLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case game.IsDomainError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
