package handler

import (
	"net/http"
	"strings"

	"recruit-portal/internal/common/auth"
	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/internal/router"
)

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if h.redirectHome(w, r) {
		return
	}
	h.ok(w, r, router.PageLogin, nil)
}

func (h *Handler) signupPage(w http.ResponseWriter, r *http.Request) {
	if h.redirectHome(w, r) {
		return
	}
	h.ok(w, r, router.PageSignup, nil)
}

// redirectHome sends a signed-in user away from the login and signup pages.
func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) bool {
	role, ok := AuthStateFrom(r.Context()).Role()
	if !ok {
		return false
	}
	http.Redirect(w, r, router.HomeFor(role), http.StatusSeeOther)
	return true
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.errors.WriteError(w, r, errors.NewValidationError("email and password are required"))
		return
	}

	sess, err := h.auth.SignIn(r.Context(), email, password)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	h.started(w, r, sess)
	http.Redirect(w, r, router.HomeFor(sess.Identity.Role), http.StatusSeeOther)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	req := auth.SignUpRequest{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		FullName: strings.TrimSpace(r.FormValue("full_name")),
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		h.errors.WriteError(w, r, errors.NewValidationError("email, password and full name are required"))
		return
	}

	sess, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	h.started(w, r, sess)
	http.Redirect(w, r, router.HomeFor(models.RoleCandidate), http.StatusSeeOther)
}

// started replaces any previous browser session with sess.
func (h *Handler) started(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	if old := sessionIDFrom(r.Context()); old != "" && old != sess.ID {
		h.sessions.Drop(old)
		h.views.EndChat(old)
	}
	h.setCookie(w, sess)
	h.logger.Info("Session started", map[string]interface{}{
		"user_id": sess.Identity.UserID,
		"role":    sess.Identity.Role,
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if id := sessionIDFrom(r.Context()); id != "" {
		if err := h.sessions.Get(r.Context(), id).SignOut(r.Context()); err != nil {
			h.logger.WithError(err).Warn("Sign out failed", nil)
		}
		h.sessions.Drop(id)
		h.views.EndChat(id)
	}
	h.clearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
