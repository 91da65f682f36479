package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/auth"
)

const (
	stateCookieName = "sow_oauth_state"
	stateCookiePath = "/auth/google"
	stateTTL        = 10 * time.Minute
)

func (h *APIHandler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewState()
	if err != nil {
		h.respondError(w, r, err, "")
		return
	}
	h.setCookie(w, stateCookieName, state, stateCookiePath, time.Now().Add(stateTTL))
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *APIHandler) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Info("Google sign-in declined", zap.String("error", e))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	c, err := r.Cookie(stateCookieName)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		writeError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	h.clearCookie(w, stateCookieName, stateCookiePath)

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("Google code exchange failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	signIn, err := h.auth.SignIn(r.Context(), identity.ExternalID, identity.Email)
	if err != nil {
		h.respondError(w, r, err, "")
		return
	}
	h.setCookie(w, sessionCookieName, signIn.Token, "/", signIn.ExpiresAt)
	http.Redirect(w, r, h.postLoginRedirect, http.StatusFound)
}
