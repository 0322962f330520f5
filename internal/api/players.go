package api

import (
	"fmt"
	"net/http"
	"strconv"

	"coinforge/internal/game"
	"coinforge/internal/identity"

	"github.com/go-chi/chi/v5"
)

// playerID resolves the {platform}/{user} path segments to the stable
// player id. It writes the error response itself.
func playerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := identity.Resolve(chi.URLParam(r, "platform"), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	out, err := s.game.Portfolio(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	out, err := s.game.Storage(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	out, err := s.game.Draw(r.Context(), userID, idempotencyKey(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGrantArtifact(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	out, err := s.game.GrantArtifact(r.Context(), userID, idempotencyKey(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleArtifactAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "artifact id must be a positive integer")
		return
	}

	var out any
	switch action := chi.URLParam(r, "action"); action {
	case "disassemble":
		out, err = s.game.Disassemble(r.Context(), userID, id, idempotencyKey(r))
	case "enhance":
		out, err = s.game.Enhance(r.Context(), userID, id, idempotencyKey(r))
	case "lock":
		out, err = s.game.Lock(r.Context(), userID, id)
	case "unlock":
		out, err = s.game.Unlock(r.Context(), userID, id)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown artifact action %q", action))
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	var in struct {
		Symbol   string `json:"symbol"`
		Side     string `json:"side"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.game.PlaceOrder(r.Context(), game.OrderInput{
		UserID:         userID,
		Symbol:         in.Symbol,
		Side:           in.Side,
		Quantity:       in.Quantity,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	var in struct {
		Coins        int64 `json:"coins"`
		UpgradeItems int64 `json:"upgrade_items"`
		RerollItems  int64 `json:"reroll_items"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, _ := callerFromContext(r.Context())
	out, err := s.game.AdjustLedger(r.Context(), game.LedgerInput{
		UserID:         userID,
		Coins:          in.Coins,
		UpgradeItems:   in.UpgradeItems,
		RerollItems:    in.RerollItems,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.log.Info("ledger adjusted", "caller", caller.Subject, "user_id", userID,
		"coins", in.Coins, "upgrade_items", in.UpgradeItems, "reroll_items", in.RerollItems)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	out, err := s.game.Checkin(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := playerID(w, r)
	if !ok {
		return
	}
	var in struct {
		Stake int64 `json:"stake"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Boom(r.Context(), userID, in.Stake, idempotencyKey(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
