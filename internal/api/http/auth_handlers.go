package http

import (
	"net/http"

	"github.com/mind-engage/examhall/internal/auth"
	"github.com/mind-engage/examhall/internal/rbac"
	"github.com/mind-engage/examhall/internal/user"
)

func principal(r *http.Request) rbac.Principal {
	p, _ := rbac.PrincipalFromContext(r.Context())
	return p
}

type sessionPayload struct {
	User         user.User `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
}

// POST /auth/register
func RegisterHandler(users *user.Service, tokens *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.RegisterInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.Register(r.Context(), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		pair, err := tokens.IssuePair(u.ID, u.Role)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusCreated, "registered successfully", sessionPayload{
			User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken,
		})
	}
}

// POST /auth/login
func LoginHandler(users *user.Service, tokens *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Username string `json:"username" validate:"required"`
			Password string `json:"password" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.Authenticate(r.Context(), in.Username, in.Password)
		if err != nil {
			respondError(w, r, err)
			return
		}
		pair, err := tokens.IssuePair(u.ID, u.Role)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "login successful", sessionPayload{
			User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken,
		})
	}
}

// POST /auth/refresh
func RefreshHandler(users *user.Service, tokens *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RefreshToken string `json:"refreshToken" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		p, err := tokens.ParseRefresh(in.RefreshToken)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "invalid refresh token"})
			return
		}
		// The account may have been disabled or re-roled since the token
		// was issued; the stored record wins.
		u, err := users.Get(r.Context(), p.ID)
		if err != nil || !u.IsActive {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "invalid refresh token"})
			return
		}
		access, err := tokens.IssueAccess(u.ID, u.Role)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, auth.TokenPair{AccessToken: access})
	}
}

// GET /auth/me
func MeHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), principal(r).ID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, u)
	}
}

// POST /auth/logout. Tokens are stateless; logout is an acknowledgement
// that lets clients drop their copy.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusOK, "logout successful", nil)
	}
}
