package api

import (
	"net/http"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/observability/logging"
	"tube-curator/internal/observability/metrics"
	"tube-curator/internal/storage"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login exchanges credentials for a signed access token. It sits on the
// public path list, so the gateway does not require a bearer token here.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	check := &violations{}
	email := check.requireString("email", req.Email)
	if req.Password == "" {
		check.add("password", "must not be blank")
	}
	if err := check.err(); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.Store.AuthenticateUser(email, req.Password)
	if err != nil {
		metrics.Default().ObserveAuthOutcome("login_failed")
		WriteError(w, r, storage.ErrInvalidCredentials)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(user)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Store.RecordUserLogin(user.ID, time.Now().UTC()); err != nil {
		logging.LoggerFromContext(r.Context()).Warn("record login failed", "error", err, "user_id", user.ID)
	}
	metrics.Default().ObserveAuthOutcome("login_succeeded")

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		User:      newUserResponse(user),
	})
}

// Me returns the account behind the request's access token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	user, exists := h.Store.GetUser(principal.SubjectID)
	if !exists {
		WriteError(w, r, notFound("account"))
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// ChangePassword rotates the caller's own password after re-verifying the
// current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	check := &violations{}
	if req.CurrentPassword == "" {
		check.add("currentPassword", "must not be blank")
	}
	if len(req.NewPassword) < 12 {
		check.add("newPassword", "must be at least 12 characters")
	}
	if err := check.err(); err != nil {
		WriteError(w, r, err)
		return
	}

	user, exists := h.Store.GetUser(principal.SubjectID)
	if !exists {
		WriteError(w, r, notFound("account"))
		return
	}
	if _, err := h.Store.AuthenticateUser(user.Email, req.CurrentPassword); err != nil {
		WriteError(w, r, unauthorized("current password is incorrect"))
		return
	}
	updated, err := h.Store.SetUserPassword(user.ID, req.NewPassword)
	if err != nil {
		WriteError(w, r, storageError(err))
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

type userResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	LastLoginAt *string  `json:"lastLoginAt,omitempty"`
}

func newUserResponse(user models.User) userResponse {
	resp := userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       append([]string(nil), user.Roles...),
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		formatted := user.LastLoginAt.UTC().Format(time.RFC3339)
		resp.LastLoginAt = &formatted
	}
	return resp
}
