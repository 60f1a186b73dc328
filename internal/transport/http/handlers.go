package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"team-duel-service/internal/app"
	"team-duel-service/internal/domain"
)

// APIHandler exposes the polling-friendly REST surface: match creation
// (the authoring hand-off), state fetch, and answer submission.
type APIHandler struct {
	manager *app.CompetitionManager
	log     zerolog.Logger
}

func NewAPIHandler(manager *app.CompetitionManager, log zerolog.Logger) *APIHandler {
	return &APIHandler{manager: manager, log: log}
}

func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/matches", h.handleMatches)
	mux.HandleFunc("/api/matches/", h.handleMatch)
}

func (h *APIHandler) handleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var params app.MatchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	view, err := h.manager.CreateMatch(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

type submitRequest struct {
	Team       domain.TeamSide `json:"team"`
	MemberID   string          `json:"memberId"`
	QuestionID string          `json:"questionId"`
	OptionID   string          `json:"optionId"`
}

func (h *APIHandler) handleMatch(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	matchID, sub, _ := strings.Cut(rest, "/")
	if matchID == "" {
		http.Error(w, "missing match id", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		view, err := h.manager.GetMatch(r.Context(), matchID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, view)
	case sub == "answers" && r.Method == http.MethodPost:
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		view, err := h.manager.SubmitAnswer(r.Context(), matchID, req.Team, req.MemberID, req.QuestionID, req.OptionID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, view)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug().Err(err).Msg("write response")
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
