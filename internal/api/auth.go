package api

import (
	"context"
	"net/http"

	"tube-curator/internal/auth"
	"tube-curator/internal/models"
)

type contextKey string

const principalContextKey contextKey = "authenticatedPrincipal"

// ContextWithPrincipal stores the verified token principal in the context.
func ContextWithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext retrieves the verified principal if the gateway
// authenticated the request.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(auth.Principal)
	return principal, ok
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, r, unauthorized("authentication required"))
		return auth.Principal{}, false
	}
	return principal, true
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Principal, bool) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if len(roles) == 0 {
		return principal, true
	}
	if !principal.HasAnyRole(roles...) {
		WriteError(w, r, forbidden())
		return auth.Principal{}, false
	}
	return principal, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	return h.requireRole(w, r, models.RoleAdmin)
}

func (h *Handler) requireModerator(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	return h.requireRole(w, r, models.RoleAdmin, models.RoleModerator)
}
