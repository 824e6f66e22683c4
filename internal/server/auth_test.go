package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tube-curator/internal/api"
	"tube-curator/internal/auth"
	"tube-curator/internal/models"
)

type stubVerifier struct {
	principal auth.Principal
	err       error
	calls     int
}

func (s *stubVerifier) Verify(token string) (auth.Principal, error) {
	s.calls++
	if s.err != nil {
		return auth.Principal{}, s.err
	}
	return s.principal, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewarePublicPathsBypassVerification(t *testing.T) {
	t.Parallel()
	verifier := &stubVerifier{err: errors.New("should not be called")}
	handler := authMiddleware(verifier, okHandler())

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/readyz"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/api/mobile/catalog"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: expected bypass, got %d", tc.method, tc.path, rec.Code)
		}
	}
	if verifier.calls != 0 {
		t.Fatalf("verifier should not run on public paths, ran %d times", verifier.calls)
	}
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	t.Parallel()
	handler := authMiddleware(&stubVerifier{}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var envelope api.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error != "UNAUTHORIZED" {
		t.Fatalf("unexpected error code %q", envelope.Error)
	}
	if envelope.Message != "Invalid or expired credential" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
	if len(envelope.Details) != 0 {
		t.Fatalf("credential failures carry no details, got %v", envelope.Details)
	}
	if envelope.Timestamp == "" {
		t.Fatal("envelope missing timestamp")
	}
}

func TestAuthMiddlewareInvalidTokenFailsClosed(t *testing.T) {
	t.Parallel()
	handler := authMiddleware(&stubVerifier{err: auth.ErrInvalidToken}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var envelope api.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	// Same generic message as a missing token; subtypes must not leak.
	if envelope.Message != "Invalid or expired credential" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
	if len(envelope.Details) != 0 {
		t.Fatalf("credential failures carry no details, got %v", envelope.Details)
	}
}

func TestAuthMiddlewareRoleTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		roles  []string
		method string
		path   string
		want   int
	}{
		{name: "user reads catalog", roles: []string{models.RoleUser}, method: http.MethodGet, path: "/api/videos", want: http.StatusOK},
		{name: "user cannot create video", roles: []string{models.RoleUser}, method: http.MethodPost, path: "/api/videos", want: http.StatusForbidden},
		{name: "moderator cannot create video", roles: []string{models.RoleModerator}, method: http.MethodPost, path: "/api/videos", want: http.StatusForbidden},
		{name: "admin creates video", roles: []string{models.RoleAdmin}, method: http.MethodPost, path: "/api/videos", want: http.StatusOK},
		{name: "moderator submits proposal", roles: []string{models.RoleModerator}, method: http.MethodPost, path: "/api/proposals", want: http.StatusOK},
		{name: "user cannot submit proposal", roles: []string{models.RoleUser}, method: http.MethodPost, path: "/api/proposals", want: http.StatusForbidden},
		{name: "moderator cannot approve", roles: []string{models.RoleModerator}, method: http.MethodPost, path: "/api/proposals/p1/approve", want: http.StatusForbidden},
		{name: "admin approves", roles: []string{models.RoleAdmin}, method: http.MethodPost, path: "/api/proposals/p1/approve", want: http.StatusOK},
		{name: "moderator runs video check", roles: []string{models.RoleModerator}, method: http.MethodPost, path: "/api/videos/v1/check", want: http.StatusOK},
		{name: "user cannot manage accounts", roles: []string{models.RoleUser}, method: http.MethodPost, path: "/api/users", want: http.StatusForbidden},
		{name: "user reads own account route", roles: []string{models.RoleUser}, method: http.MethodGet, path: "/api/users/u1", want: http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			verifier := &stubVerifier{principal: auth.Principal{SubjectID: "u1", Role: tc.roles[0]}}
			handler := authMiddleware(verifier, okHandler())

			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareStoresPrincipal(t *testing.T) {
	t.Parallel()
	verifier := &stubVerifier{principal: auth.Principal{SubjectID: "user-1", Email: "a@b.c", Role: models.RoleAdmin}}
	var got auth.Principal
	var ok bool
	handler := authMiddleware(verifier, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = api.PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || got.SubjectID != "user-1" {
		t.Fatalf("expected principal in context, got %+v (ok=%v)", got, ok)
	}
}
