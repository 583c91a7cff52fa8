package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/i18n"
	"github.com/diewo77/go-backoffice/internal/identity"
	"github.com/diewo77/go-backoffice/internal/models"
)

// Authenticator checks credentials against the identity provider.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type AuthHandler struct {
	responder
	identities Authenticator
}

func NewAuthHandler(identities Authenticator, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{responder: responder{log: log}, identities: identities}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPage shows the login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, "login.html", nil)
}

// Login authenticates the posted credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decode(r, &c, func(vals url.Values) error {
		c.Email = formString(vals, "email")
		c.Password = vals.Get("password")
		return nil
	}); err != nil {
		h.fail(w, r, err, "login.html", nil)
		return
	}
	lang := i18n.LangFromContext(r.Context())
	user, err := h.identities.Authenticate(r.Context(), c.Email, c.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		h.log.WithContext(r.Context()).WithField("email", c.Email).Info("login rejected")
		msg := i18n.T(lang, "invalid_credentials")
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusUnauthorized, httpx.Fail(msg))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		h.render(w, r, "login.html", map[string]any{"Message": msg, "Email": c.Email})
		return
	}
	if err != nil {
		h.fail(w, r, err, "login.html", map[string]any{"Email": c.Email})
		return
	}
	if err := auth.CreateSession(w, user.ID); err != nil {
		h.fail(w, r, err, "login.html", nil)
		return
	}
	h.log.WithContext(r.Context()).WithField("user_id", user.ID).Info("user logged in")
	h.done(w, r, http.StatusOK, "", map[string]any{"id": user.ID}, "/dashboard")
}

// Logout clears the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	h.done(w, r, http.StatusOK, "", nil, "/login")
}
