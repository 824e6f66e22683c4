package server

import (
	"net/http"
	"strings"

	"tube-curator/internal/api"
	"tube-curator/internal/auth"
	"tube-curator/internal/i18n"
	"tube-curator/internal/models"
	"tube-curator/internal/observability/metrics"
)

// TokenVerifier is the gateway's authentication boundary. The JWT manager
// satisfies it in production; tests substitute stubs.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// operationalPath reports whether the path serves probes and scrapers.
// These stay outside both trace correlation and authentication.
func operationalPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// publicPath reports whether the route is reachable without a credential.
// Everything else under /api/ fails closed: no token, or a token that does
// not verify, terminates the request with a 401 envelope.
func publicPath(method, path string) bool {
	if operationalPath(path) {
		return true
	}
	if method == http.MethodPost && path == "/api/auth/login" {
		return true
	}
	if method == http.MethodGet && path == "/api/mobile/catalog" {
		return true
	}
	return !strings.HasPrefix(path, "/api/")
}

// routeRule binds a path prefix (and optionally a set of methods) to the
// roles allowed through. The table is evaluated top to bottom; the first
// match wins, and routes with no match only require authentication.
type routeRule struct {
	prefix  string
	methods []string
	roles   []string
}

var roleTable = []routeRule{
	{
		prefix:  "/api/users",
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		roles:   []string{models.RoleAdmin},
	},
	{prefix: "/api/proposals/", methods: []string{http.MethodPost}, roles: []string{models.RoleAdmin}},
	{prefix: "/api/proposals", roles: []string{models.RoleAdmin, models.RoleModerator}},
	{prefix: "/api/videos/", methods: []string{http.MethodPost}, roles: []string{models.RoleAdmin, models.RoleModerator}},
	{
		prefix:  "/api/categories",
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		roles:   []string{models.RoleAdmin},
	},
	{
		prefix:  "/api/channels",
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		roles:   []string{models.RoleAdmin},
	},
	{
		prefix:  "/api/playlists",
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		roles:   []string{models.RoleAdmin},
	},
	{
		prefix:  "/api/videos",
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		roles:   []string{models.RoleAdmin},
	},
}

func (rule routeRule) matches(method, path string) bool {
	if !strings.HasPrefix(path, rule.prefix) {
		return false
	}
	if strings.HasSuffix(rule.prefix, "/") && path == strings.TrimSuffix(rule.prefix, "/") {
		return false
	}
	if len(rule.methods) == 0 {
		return true
	}
	for _, m := range rule.methods {
		if m == method {
			return true
		}
	}
	return false
}

func requiredRoles(method, path string) []string {
	for _, rule := range roleTable {
		if rule.matches(method, path) {
			return rule.roles
		}
	}
	return nil
}

// authMiddleware verifies the bearer token on protected routes and applies
// the static role table before the request reaches a handler. Handlers keep
// their own role checks for anything finer-grained than a route prefix.
func authMiddleware(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// The 401 message is deliberately the same for a missing and an
		// invalid credential; only the metric tells the cases apart.
		token := bearerToken(r)
		if token == "" {
			metrics.Default().ObserveAuthOutcome("missing_token")
			api.WriteError(w, r, &api.RequestError{Status: http.StatusUnauthorized, MessageKey: i18n.KeyInvalidToken})
			return
		}
		if verifier == nil {
			api.WriteStatusError(w, r, http.StatusServiceUnavailable, "authentication is not configured")
			return
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			metrics.Default().ObserveAuthOutcome("invalid_token")
			api.WriteError(w, r, &api.RequestError{Status: http.StatusUnauthorized, MessageKey: i18n.KeyInvalidToken, Err: err})
			return
		}

		if roles := requiredRoles(r.Method, r.URL.Path); len(roles) > 0 && !principal.HasAnyRole(roles...) {
			metrics.Default().ObserveAuthOutcome("forbidden")
			api.WriteStatusError(w, r, http.StatusForbidden, "forbidden")
			return
		}

		metrics.Default().ObserveAuthOutcome("authenticated")
		ctx := api.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
