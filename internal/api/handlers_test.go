package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tube-curator/internal/auth"
	"tube-curator/internal/models"
	"tube-curator/internal/storage"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	store := storage.NewStorage()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return NewHandler(store, tokens), store
}

func requestAs(method, target string, body []byte, principal *auth.Principal) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != nil {
		req = req.WithContext(ContextWithPrincipal(context.Background(), *principal))
	}
	return req
}

func adminPrincipal() *auth.Principal {
	return &auth.Principal{SubjectID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
}

func moderatorPrincipal() *auth.Principal {
	return &auth.Principal{SubjectID: "mod-1", Email: "mod@example.com", Role: models.RoleModerator}
}

func userPrincipal(id string) *auth.Principal {
	return &auth.Principal{SubjectID: id, Email: id + "@example.com", Role: models.RoleUser}
}

func seedCatalogVideo(t *testing.T, store *storage.Storage, status string) (models.Category, models.Video) {
	t.Helper()
	category, err := store.CreateCategory("Music", "", 0)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	video, err := store.CreateVideo(storage.VideoParams{
		YoutubeID:  "dQw4w9WgXcQ",
		Title:      "Test Video",
		CategoryID: category.ID,
		CreatedBy:  "admin-1",
	})
	if err != nil {
		t.Fatalf("seed video: %v", err)
	}
	if status != models.VideoStatusPending {
		if video, err = store.MarkVideoStatus(video.ID, status, time.Now().UTC()); err != nil {
			t.Fatalf("mark video: %v", err)
		}
	}
	return category, video
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	if _, err := store.CreateUser(storage.CreateUserParams{
		Email:       "admin@example.com",
		DisplayName: "Admin",
		Password:    "correct horse battery",
		Roles:       []string{models.RoleAdmin},
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := []byte(`{"email":"admin@example.com","password":"wrong password!"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, requestAs(http.MethodPost, "/api/auth/login", body, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCategoriesRequirePrincipal(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Categories(rec, requestAs(http.MethodGet, "/api/categories", nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rec.Code)
	}
}

func TestCategoriesCreateAdminOnly(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)
	body := []byte(`{"name":"Music","description":"Curated music"}`)

	rec := httptest.NewRecorder()
	handler.Categories(rec, requestAs(http.MethodPost, "/api/categories", body, moderatorPrincipal()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("moderator create should be forbidden, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Categories(rec, requestAs(http.MethodPost, "/api/categories", body, adminPrincipal()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create failed with %d: %s", rec.Code, rec.Body.String())
	}

	// Same name again is a conflict, not a validation failure.
	rec = httptest.NewRecorder()
	handler.Categories(rec, requestAs(http.MethodPost, "/api/categories", body, adminPrincipal()))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create should conflict, got %d", rec.Code)
	}
}

func TestCreateVideoValidation(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	body := []byte(`{"description":"missing everything else"}`)
	rec := httptest.NewRecorder()
	handler.Videos(rec, requestAs(http.MethodPost, "/api/videos", body, adminPrincipal()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var envelope ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(envelope.Details) != 3 {
		t.Fatalf("expected violations for youtubeId, title and categoryId, got %v", envelope.Details)
	}
}

func TestCreateVideoStartsPending(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	category, err := store.CreateCategory("Music", "", 0)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	body := []byte(`{"youtubeId":"dQw4w9WgXcQ","title":"Test Video","categoryId":"` + category.ID + `"}`)
	rec := httptest.NewRecorder()
	handler.Videos(rec, requestAs(http.MethodPost, "/api/videos", body, adminPrincipal()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", rec.Code, rec.Body.String())
	}
	var resp videoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.VideoStatusPending {
		t.Fatalf("new videos start pending, got %q", resp.Status)
	}
	if resp.CreatedBy != "admin-1" {
		t.Fatalf("expected creator admin-1, got %q", resp.CreatedBy)
	}
	if resp.LastCheckedAt != nil {
		t.Fatal("new videos have no check timestamp")
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	body := []byte(`{"name":"Music","surprise":true}`)
	rec := httptest.NewRecorder()
	handler.Categories(rec, requestAs(http.MethodPost, "/api/categories", body, adminPrincipal()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields should be rejected, got %d", rec.Code)
	}
}

type stubChecker struct {
	available bool
	err       error
	gotID     string
}

func (s *stubChecker) VideoAvailable(_ context.Context, youtubeID string) (bool, error) {
	s.gotID = youtubeID
	return s.available, s.err
}

func TestVideoCheckTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		checker    *stubChecker
		wantStatus int
		wantVideo  string
	}{
		{name: "available video goes active", checker: &stubChecker{available: true}, wantStatus: http.StatusOK, wantVideo: models.VideoStatusActive},
		{name: "missing video goes unavailable", checker: &stubChecker{available: false}, wantStatus: http.StatusOK, wantVideo: models.VideoStatusUnavailable},
		{name: "probe failure demotes nothing", checker: &stubChecker{err: errors.New("oembed timeout")}, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			handler, store := newTestHandler(t)
			handler.Checker = tc.checker
			_, video := seedCatalogVideo(t, store, models.VideoStatusPending)

			rec := httptest.NewRecorder()
			handler.VideoByID(rec, requestAs(http.MethodPost, "/api/videos/"+video.ID+"/check", nil, moderatorPrincipal()))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.checker.gotID != video.YoutubeID {
				t.Fatalf("checker probed %q, want %q", tc.checker.gotID, video.YoutubeID)
			}

			stored, _ := store.GetVideo(video.ID)
			if tc.wantVideo != "" {
				if stored.Status != tc.wantVideo {
					t.Fatalf("expected stored status %q, got %q", tc.wantVideo, stored.Status)
				}
				if stored.LastCheckedAt == nil {
					t.Fatal("check must stamp LastCheckedAt")
				}
			} else if stored.Status != models.VideoStatusPending {
				t.Fatalf("failed probe must leave status untouched, got %q", stored.Status)
			}
		})
	}
}

func TestVideoCheckWithoutChecker(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	_, video := seedCatalogVideo(t, store, models.VideoStatusPending)

	rec := httptest.NewRecorder()
	handler.VideoByID(rec, requestAs(http.MethodPost, "/api/videos/"+video.ID+"/check", nil, moderatorPrincipal()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured checker, got %d", rec.Code)
	}
}

func TestProposalLifecycleThroughHandlers(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	category, err := store.CreateCategory("Music", "", 0)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	body := []byte(`{"kind":"video","action":"add","note":"great clip","payload":{"youtubeId":"abc123DEF45","title":"Proposed","categoryId":"` + category.ID + `"}}`)
	rec := httptest.NewRecorder()
	handler.Proposals(rec, requestAs(http.MethodPost, "/api/proposals", body, moderatorPrincipal()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed with %d: %s", rec.Code, rec.Body.String())
	}
	var proposal proposalResponse
	if err := json.NewDecoder(rec.Body).Decode(&proposal); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if proposal.Status != models.ProposalStatusPending {
		t.Fatalf("new proposals are pending, got %q", proposal.Status)
	}
	if proposal.ProposedBy != "mod-1" {
		t.Fatalf("proposer should come from the principal, got %q", proposal.ProposedBy)
	}

	rec = httptest.NewRecorder()
	handler.ProposalByID(rec, requestAs(http.MethodPost, "/api/proposals/"+proposal.ID+"/approve", []byte(`{"note":"approved"}`), adminPrincipal()))
	if rec.Code != http.StatusOK {
		t.Fatalf("approve failed with %d: %s", rec.Code, rec.Body.String())
	}
	var resolved proposalResponse
	if err := json.NewDecoder(rec.Body).Decode(&resolved); err != nil {
		t.Fatalf("decode resolved proposal: %v", err)
	}
	if resolved.Status != models.ProposalStatusApproved {
		t.Fatalf("expected approved, got %q", resolved.Status)
	}
	if resolved.ResolvedBy != "admin-1" {
		t.Fatalf("resolver should come from the principal, got %q", resolved.ResolvedBy)
	}

	videos := store.ListVideos(category.ID, "", "")
	if len(videos) != 1 || videos[0].YoutubeID != "abc123DEF45" {
		t.Fatalf("approval should apply the payload, got %+v", videos)
	}

	// A second resolution attempt is a conflict.
	rec = httptest.NewRecorder()
	handler.ProposalByID(rec, requestAs(http.MethodPost, "/api/proposals/"+proposal.ID+"/reject", nil, adminPrincipal()))
	if rec.Code != http.StatusConflict {
		t.Fatalf("double resolution should conflict, got %d", rec.Code)
	}
}

func TestProposalApproveRequiresAdmin(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ProposalByID(rec, requestAs(http.MethodPost, "/api/proposals/p-1/approve", nil, moderatorPrincipal()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("moderator approval should be forbidden, got %d", rec.Code)
	}
}

func TestProposalValidation(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	body := []byte(`{"kind":"album","action":"explode"}`)
	rec := httptest.NewRecorder()
	handler.Proposals(rec, requestAs(http.MethodPost, "/api/proposals", body, moderatorPrincipal()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var envelope ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(envelope.Details) != 2 {
		t.Fatalf("expected kind and action violations, got %v", envelope.Details)
	}
}

func TestMobileCatalogIsPublicAndFiltersInactiveVideos(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	category, active := seedCatalogVideo(t, store, models.VideoStatusActive)
	if _, err := store.CreateVideo(storage.VideoParams{
		YoutubeID:  "pending00001",
		Title:      "Still Pending",
		CategoryID: category.ID,
	}); err != nil {
		t.Fatalf("seed pending video: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.MobileCatalog(rec, requestAs(http.MethodGet, "/api/mobile/catalog", nil, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("catalog failed with %d: %s", rec.Code, rec.Body.String())
	}
	var catalog mobileCatalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&catalog); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if catalog.GeneratedAt == "" {
		t.Fatal("catalog missing generatedAt")
	}
	if len(catalog.Categories) != 1 {
		t.Fatalf("expected one category, got %d", len(catalog.Categories))
	}
	videos := catalog.Categories[0].Videos
	if len(videos) != 1 || videos[0].ID != active.ID {
		t.Fatalf("catalog must only carry active videos, got %+v", videos)
	}
}

func TestUserSelfReadAndAdminRead(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	target, err := store.CreateUser(storage.CreateUserParams{
		Email:       "viewer@example.com",
		DisplayName: "Viewer",
		Password:    "a long enough password",
		Roles:       []string{models.RoleUser},
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.UserByID(rec, requestAs(http.MethodGet, "/api/users/"+target.ID, nil, userPrincipal(target.ID)))
	if rec.Code != http.StatusOK {
		t.Fatalf("self read failed with %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.UserByID(rec, requestAs(http.MethodGet, "/api/users/"+target.ID, nil, userPrincipal("someone-else")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reading another account should be forbidden, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.UserByID(rec, requestAs(http.MethodGet, "/api/users/"+target.ID, nil, adminPrincipal()))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin read failed with %d", rec.Code)
	}
}

func TestAdminCannotDeleteOwnAccount(t *testing.T) {
	t.Parallel()
	handler, store := newTestHandler(t)
	admin, err := store.CreateUser(storage.CreateUserParams{
		Email:       "root@example.com",
		DisplayName: "Root",
		Password:    "a long enough password",
		Roles:       []string{models.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	principal := &auth.Principal{SubjectID: admin.ID, Role: models.RoleAdmin}
	rec := httptest.NewRecorder()
	handler.UserByID(rec, requestAs(http.MethodDelete, "/api/users/"+admin.ID, nil, principal))

	if rec.Code != http.StatusConflict {
		t.Fatalf("self-delete should be a conflict, got %d", rec.Code)
	}
	if _, exists := store.GetUser(admin.ID); !exists {
		t.Fatal("account must survive a refused delete")
	}
}
