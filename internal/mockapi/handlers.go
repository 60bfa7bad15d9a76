package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type createRequest struct {
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
}

type createResponse struct {
	ID        string `json:"id"`
	VoteCount int    `json:"voteCount"`
}

type updateRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	acc, err := s.authenticate(body.Email, body.Password)
	if errors.Is(err, errBadCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := s.issueToken(acc)
	if err != nil {
		s.log.Error("mock-api: issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.list(chi.URLParam(r, "ns"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")

	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	it, err := s.store.create(ns, body.Name, body.Artist)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.publishEvent(r.Context(), "ranking.item.created", map[string]any{
		"namespace": ns,
		"item":      it,
	})
	writeJSON(w, http.StatusCreated, createResponse{ID: it.ID, VoteCount: it.VoteCount})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	it, err := s.store.vote(ns, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.publishEvent(r.Context(), "ranking.vote.cast", map[string]any{
		"namespace": ns,
		"itemId":    it.ID,
		"voteCount": it.VoteCount,
	})
	writeJSON(w, http.StatusOK, map[string]any{"voteCount": it.VoteCount})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	id := chi.URLParam(r, "id")

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ID != "" && body.ID != id {
		writeError(w, http.StatusBadRequest, "id in body does not match path")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	it, err := s.store.update(ns, id, body.Name, body.Artist)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	editor := ""
	if c := claimsFrom(r.Context()); c != nil {
		editor = c.Email
	}
	s.log.Info("mock-api: item updated", zap.String("namespace", ns), zap.String("item", id), zap.String("editor", editor))
	s.publishEvent(r.Context(), "ranking.item.updated", map[string]any{
		"namespace": ns,
		"item":      it,
	})
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	id := chi.URLParam(r, "id")

	if err := s.store.remove(ns, id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publishEvent(r.Context(), "ranking.item.deleted", map[string]any{
		"namespace": ns,
		"itemId":    id,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
