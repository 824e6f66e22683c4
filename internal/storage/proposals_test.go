package storage

import (
	"encoding/json"
	"errors"
	"testing"

	"tube-curator/internal/models"
)

func proposalJSON(t *testing.T, payload any) []byte {
	t.Helper()
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return encoded
}

func TestCreateProposalValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	cases := []struct {
		name   string
		params ProposalParams
	}{
		{
			name: "unknown kind",
			params: ProposalParams{
				Kind:       "livestream",
				Action:     models.ProposalActionAdd,
				Payload:    []byte(`{}`),
				ProposedBy: "mod-1",
			},
		},
		{
			name: "unknown action",
			params: ProposalParams{
				Kind:       models.ProposalKindVideo,
				Action:     "archive",
				Payload:    []byte(`{}`),
				ProposedBy: "mod-1",
			},
		},
		{
			name: "update without target",
			params: ProposalParams{
				Kind:       models.ProposalKindVideo,
				Action:     models.ProposalActionUpdate,
				Payload:    []byte(`{}`),
				ProposedBy: "mod-1",
			},
		},
		{
			name: "add without payload",
			params: ProposalParams{
				Kind:       models.ProposalKindVideo,
				Action:     models.ProposalActionAdd,
				ProposedBy: "mod-1",
			},
		},
		{
			name: "malformed payload",
			params: ProposalParams{
				Kind:       models.ProposalKindVideo,
				Action:     models.ProposalActionAdd,
				Payload:    []byte(`{not json`),
				ProposedBy: "mod-1",
			},
		},
		{
			name: "missing proposer",
			params: ProposalParams{
				Kind:    models.ProposalKindVideo,
				Action:  models.ProposalActionAdd,
				Payload: []byte(`{}`),
			},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := store.CreateProposal(tc.params); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			}
		})
	}
}

func TestApproveAddProposalCreatesVideo(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	category := seedCategory(t, store, "Music")

	payload := proposalJSON(t, map[string]any{
		"youtubeId":  "vid-proposed",
		"title":      "Proposed Video",
		"categoryId": category.ID,
	})
	proposal, err := store.CreateProposal(ProposalParams{
		Kind:       models.ProposalKindVideo,
		Action:     models.ProposalActionAdd,
		Payload:    payload,
		Note:       "great fit for the category",
		ProposedBy: "mod-1",
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if proposal.Status != models.ProposalStatusPending {
		t.Fatalf("expected pending, got %q", proposal.Status)
	}

	resolved, err := store.ApproveProposal(proposal.ID, "admin-1", "looks good")
	if err != nil {
		t.Fatalf("approve proposal: %v", err)
	}
	if resolved.Status != models.ProposalStatusApproved {
		t.Fatalf("expected approved, got %q", resolved.Status)
	}
	if resolved.ResolvedBy != "admin-1" || resolved.ResolvedAt == nil {
		t.Fatalf("resolution metadata missing: %+v", resolved)
	}

	videos := store.ListVideos(category.ID, "", "")
	if len(videos) != 1 || videos[0].YoutubeID != "vid-proposed" {
		t.Fatalf("approved proposal did not create the video: %v", videos)
	}
	if videos[0].CreatedBy != "mod-1" {
		t.Fatalf("expected proposer as creator, got %q", videos[0].CreatedBy)
	}
}

func TestApproveUpdateProposalAppliesPatch(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	category := seedCategory(t, store, "Music")
	channel := seedChannel(t, store, "UCpatch", "Original Title", category.ID)

	payload := proposalJSON(t, map[string]any{"title": "Patched Title"})
	proposal, err := store.CreateProposal(ProposalParams{
		Kind:       models.ProposalKindChannel,
		Action:     models.ProposalActionUpdate,
		TargetID:   channel.ID,
		Payload:    payload,
		ProposedBy: "mod-1",
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if _, err := store.ApproveProposal(proposal.ID, "admin-1", ""); err != nil {
		t.Fatalf("approve proposal: %v", err)
	}

	updated, ok := store.GetChannel(channel.ID)
	if !ok {
		t.Fatal("channel disappeared")
	}
	if updated.Title != "Patched Title" {
		t.Fatalf("expected patched title, got %q", updated.Title)
	}
	if updated.YoutubeID != "UCpatch" {
		t.Fatalf("untouched field changed: %q", updated.YoutubeID)
	}
}

func TestApproveRemoveProposalDeletes(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	category := seedCategory(t, store, "Music")
	video := seedVideo(t, store, "vid-gone", "Going Away", category.ID, "")

	proposal, err := store.CreateProposal(ProposalParams{
		Kind:       models.ProposalKindVideo,
		Action:     models.ProposalActionRemove,
		TargetID:   video.ID,
		ProposedBy: "mod-1",
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if _, err := store.ApproveProposal(proposal.ID, "admin-1", ""); err != nil {
		t.Fatalf("approve proposal: %v", err)
	}
	if _, ok := store.GetVideo(video.ID); ok {
		t.Fatal("approved removal left the video behind")
	}
}

func TestApproveFailureLeavesProposalPending(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	// The payload names a category that does not exist, so applying fails.
	payload := proposalJSON(t, map[string]any{
		"youtubeId":  "vid-bad",
		"title":      "Bad Target",
		"categoryId": "no-such-category",
	})
	proposal, err := store.CreateProposal(ProposalParams{
		Kind:       models.ProposalKindVideo,
		Action:     models.ProposalActionAdd,
		Payload:    payload,
		ProposedBy: "mod-1",
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	if _, err := store.ApproveProposal(proposal.ID, "admin-1", ""); err == nil {
		t.Fatal("expected approval to fail")
	}
	current, ok := store.GetProposal(proposal.ID)
	if !ok {
		t.Fatal("proposal disappeared")
	}
	if current.Status != models.ProposalStatusPending {
		t.Fatalf("failed approval should leave the proposal pending, got %q", current.Status)
	}
}

func TestRejectProposal(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	category := seedCategory(t, store, "Music")

	payload := proposalJSON(t, map[string]any{
		"youtubeId":  "vid-rej",
		"title":      "Rejected",
		"categoryId": category.ID,
	})
	proposal, err := store.CreateProposal(ProposalParams{
		Kind:       models.ProposalKindVideo,
		Action:     models.ProposalActionAdd,
		Payload:    payload,
		ProposedBy: "mod-1",
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	rejected, err := store.RejectProposal(proposal.ID, "admin-1", "off topic")
	if err != nil {
		t.Fatalf("reject proposal: %v", err)
	}
	if rejected.Status != models.ProposalStatusRejected || rejected.ResolutionNote != "off topic" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if videos := store.ListVideos("", "", ""); len(videos) != 0 {
		t.Fatalf("rejected proposal must not touch the catalog, got %v", videos)
	}

	if _, err := store.ApproveProposal(proposal.ID, "admin-1", ""); !errors.Is(err, ErrProposalResolved) {
		t.Fatalf("expected ErrProposalResolved, got %v", err)
	}
	if _, err := store.RejectProposal(proposal.ID, "admin-1", ""); !errors.Is(err, ErrProposalResolved) {
		t.Fatalf("expected ErrProposalResolved, got %v", err)
	}
}

func TestListProposalsNewestFirstAndFiltered(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	category := seedCategory(t, store, "Music")

	var ids []string
	for _, youtubeID := range []string{"vid-1", "vid-2", "vid-3"} {
		payload := proposalJSON(t, map[string]any{
			"youtubeId":  youtubeID,
			"title":      "Video " + youtubeID,
			"categoryId": category.ID,
		})
		proposal, err := store.CreateProposal(ProposalParams{
			Kind:       models.ProposalKindVideo,
			Action:     models.ProposalActionAdd,
			Payload:    payload,
			ProposedBy: "mod-1",
		})
		if err != nil {
			t.Fatalf("create proposal: %v", err)
		}
		ids = append(ids, proposal.ID)
	}
	if _, err := store.RejectProposal(ids[0], "admin-1", ""); err != nil {
		t.Fatalf("reject proposal: %v", err)
	}

	pending := store.ListProposals(models.ProposalStatusPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending proposals, got %d", len(pending))
	}
	rejected := store.ListProposals(models.ProposalStatusRejected)
	if len(rejected) != 1 || rejected[0].ID != ids[0] {
		t.Fatalf("unexpected rejected list %v", rejected)
	}
	if all := store.ListProposals(""); len(all) != 3 {
		t.Fatalf("expected 3 proposals, got %d", len(all))
	}
}
