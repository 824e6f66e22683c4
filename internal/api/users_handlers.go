package api

import (
	"net/http"
	"strings"

	"tube-curator/internal/storage"
)

type createUserRequest struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
}

type updateUserRequest struct {
	Email       *string   `json:"email"`
	DisplayName *string   `json:"displayName"`
	Roles       *[]string `json:"roles"`
}

// Users handles the /api/users collection. Account administration is an
// admin-only surface.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		users := h.Store.ListUsers()
		responses := make([]userResponse, 0, len(users))
		for _, user := range users {
			responses = append(responses, newUserResponse(user))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		check := &violations{}
		email := check.requireString("email", req.Email)
		displayName := check.requireString("displayName", req.DisplayName)
		if len(req.Password) < 12 {
			check.add("password", "must be at least 12 characters")
		}
		if err := check.err(); err != nil {
			WriteError(w, r, err)
			return
		}
		user, err := h.Store.CreateUser(storage.CreateUserParams{
			Email:       email,
			DisplayName: displayName,
			Password:    req.Password,
			Roles:       req.Roles,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusCreated, newUserResponse(user))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// UserByID handles /api/users/{id}.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, notFound("user"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		principal, ok := h.requirePrincipal(w, r)
		if !ok {
			return
		}
		// Users may read their own account; everything else is admin-only.
		if principal.SubjectID != id {
			if _, ok := h.requireAdmin(w, r); !ok {
				return
			}
		}
		user, exists := h.Store.GetUser(id)
		if !exists {
			WriteError(w, r, notFound("user"))
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(user))
	case http.MethodPut, http.MethodPatch:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		user, err := h.Store.UpdateUser(id, storage.UserUpdate{
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Roles:       req.Roles,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(user))
	case http.MethodDelete:
		principal, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		if principal.SubjectID == id {
			WriteError(w, r, conflict("administrators cannot delete their own account"))
			return
		}
		if err := h.Store.DeleteUser(id); err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}
