package handler

import (
	"context"
	"net/http"
	"time"

	"recruit-portal/internal/models"
	"recruit-portal/internal/session"
)

const SessionCookieName = "portal_session"

type contextKey string

const (
	authStateKey contextKey = "auth_state"
	sessionIDKey contextKey = "session_id"
)

// resolveSession attaches the auth state of the request's session cookie.
// Waiting is bounded by Config.AuthWait; a session still resolving stays
// loading. A cookie that resolves to nobody is dropped and cleared.
func (h *Handler) resolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := session.Anonymous()
		var id string

		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			id = c.Value
			sc := h.sessions.Get(r.Context(), id)

			ctx, cancel := context.WithTimeout(r.Context(), h.config.AuthWait)
			state, _ = sc.Wait(ctx)
			cancel()

			if state.Status == session.StatusAnonymous {
				h.sessions.Drop(id)
				h.views.EndChat(id)
				h.clearCookie(w)
				id = ""
			}
		}

		ctx := context.WithValue(r.Context(), authStateKey, state)
		ctx = context.WithValue(ctx, sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthStateFrom returns the auth state attached to ctx, anonymous if none.
func AuthStateFrom(ctx context.Context) session.AuthState {
	if s, ok := ctx.Value(authStateKey).(session.AuthState); ok {
		return s
	}
	return session.Anonymous()
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func identityFrom(ctx context.Context) *models.Identity {
	return AuthStateFrom(ctx).Identity
}

func (h *Handler) setCookie(w http.ResponseWriter, sess *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
