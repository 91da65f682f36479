package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/auth"
	"lawly.io/sow-wizard/internal/core"
	"lawly.io/sow-wizard/internal/store"
	"lawly.io/sow-wizard/internal/utils"
)

// Options configure the sign-in surface of the API.
type Options struct {
	// Provider enables the Google sign-in routes when non-nil.
	Provider          auth.IdentityProvider
	PostLoginRedirect string
	CookieSecure      bool
}

type APIHandler struct {
	sessions *core.SessionService
	profiles *core.ProfileService
	auth     *core.AuthService
	logger   *zap.Logger

	provider          auth.IdentityProvider
	postLoginRedirect string
	cookieSecure      bool
}

func NewAPIHandler(sessions *core.SessionService, profiles *core.ProfileService, authSvc *core.AuthService, logger *zap.Logger, opts Options) *APIHandler {
	redirect := opts.PostLoginRedirect
	if redirect == "" {
		redirect = "/"
	}
	return &APIHandler{
		sessions:          sessions,
		profiles:          profiles,
		auth:              authSvc,
		logger:            logger,
		provider:          opts.Provider,
		postLoginRedirect: redirect,
		cookieSecure:      opts.CookieSecure,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// respondError maps the core error taxonomy onto HTTP. Causes of 500s are logged
// and never sent to the client.
func (h *APIHandler) respondError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, core.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	default:
		h.logger.Error("Request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type QuestionsResponse struct {
	Questions []store.Question `json:"questions"`
	Total     int              `json:"total"`
}

func (h *APIHandler) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	questions, err := h.sessions.ListQuestions(r.Context())
	if err != nil {
		h.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, QuestionsResponse{Questions: questions, Total: len(questions)})
}

type SessionsListResponse struct {
	Sessions []store.SessionSummary `json:"sessions"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	limit, offset, err := utils.PageParams(r.URL.Query(), core.DefaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, total, err := h.sessions.ListSessions(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondError(w, r, err, "")
		return
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, SessionsListResponse{Sessions: sessions, Total: total, Limit: limit, Offset: offset})
}

type answerInput struct {
	QuestionID *string `json:"question_id"`
	AnswerID   *string `json:"answer_id"`
}

// decodeAnswers reads {"answers":[{question_id,answer_id}]} and reports the first
// structural problem with the body.
func decodeAnswers(body []byte) ([]store.AnswerItem, string) {
	var req struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, "Invalid request body"
	}
	raw := bytes.TrimSpace(req.Answers)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, "answers must be an array"
	}

	var inputs []json.RawMessage
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, "answers must be an array"
	}
	answers := make([]store.AnswerItem, 0, len(inputs))
	for _, item := range inputs {
		var in answerInput
		if err := json.Unmarshal(item, &in); err != nil {
			return nil, "Invalid answer structure"
		}
		if in.QuestionID == nil || in.AnswerID == nil || *in.QuestionID == "" || *in.AnswerID == "" {
			return nil, "Invalid answer structure"
		}
		answers = append(answers, store.AnswerItem{QuestionID: *in.QuestionID, AnswerID: *in.AnswerID})
	}
	return answers, ""
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, 1<<20)); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	answers, problem := decodeAnswers(body.Bytes())
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	session, err := h.sessions.Submit(r.Context(), userID, answers)
	if err != nil {
		h.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// sessionIDParam returns the {sessionID} path value if it is a well-formed UUID.
func sessionIDParam(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id, ok := sessionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	session, err := h.sessions.GetSession(r.Context(), id, userID)
	if err != nil {
		h.respondError(w, r, err, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) GetSessionDetailsHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id, ok := sessionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	details, err := h.sessions.GetSessionDetails(r.Context(), id, userID)
	if err != nil {
		h.respondError(w, r, err, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler accepts exactly {"has_seen_welcome": true}.
func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&fields); err != nil || fields == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	raw, ok := fields["has_seen_welcome"]
	if !ok || len(fields) != 1 {
		writeError(w, http.StatusBadRequest, "has_seen_welcome must be a boolean")
		return
	}
	var seen bool
	if err := json.Unmarshal(raw, &seen); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		writeError(w, http.StatusBadRequest, "has_seen_welcome must be a boolean")
		return
	}
	if !seen {
		writeError(w, http.StatusBadRequest, "has_seen_welcome can only be set to true")
		return
	}

	profile, err := h.profiles.SetWelcomeSeen(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), tokenFromRequest(r)); err != nil {
		h.logger.Error("Sign out failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	h.clearCookie(w, sessionCookieName, "/")
	w.WriteHeader(http.StatusOK)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
