package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/rbac"
	"github.com/mind-engage/examhall/internal/user"
)

// GET /users?role=&search=
func ListUsersHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := user.ListOpts{Search: r.URL.Query().Get("search")}
		if roleStr := r.URL.Query().Get("role"); roleStr != "" {
			role, ok := rbac.ParseRole(roleStr)
			if !ok {
				respondError(w, r, apperr.Validation("invalid role filter"))
				return
			}
			opts.Role = role
		}
		list, err := users.List(r.Context(), opts)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, list)
	}
}

// GET /users/{id}
func GetUserHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, u)
	}
}

// PUT /users/{id}
func UpdateUserHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.UpdateInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.Update(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "user updated", u)
	}
}

// DELETE /users/{id}
func DeleteUserHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := users.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "user deleted", nil)
	}
}

// PUT /users/{id}/role
func ChangeRoleHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Role string `json:"role" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.ChangeRole(r.Context(), principal(r), chi.URLParam(r, "id"), rbac.Role(in.Role))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "role updated", u)
	}
}

// PUT /users/{id}/status
func ChangeStatusHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			IsActive *bool `json:"isActive" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		u, err := users.SetActive(r.Context(), principal(r), chi.URLParam(r, "id"), *in.IsActive)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "status updated", u)
	}
}
