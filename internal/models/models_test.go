package models

import "testing"

func TestNormalizeRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input    string
		expected string
	}{
		{"admin", RoleAdmin},
		{" Admin ", RoleAdmin},
		{"MODERATOR", RoleModerator},
		{"user", RoleUser},
		{"", RoleUser},
		{"superuser", RoleUser},
	}
	for _, tc := range cases {
		if got := NormalizeRole(tc.input); got != tc.expected {
			t.Fatalf("NormalizeRole(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestUserHasRole(t *testing.T) {
	t.Parallel()

	user := User{Roles: []string{RoleModerator}}
	if !user.HasRole("Moderator") {
		t.Fatalf("expected case-insensitive role match")
	}
	if user.HasRole(RoleAdmin) {
		t.Fatalf("did not expect admin role")
	}
}

func TestProposalValidators(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{ProposalKindChannel, ProposalKindPlaylist, ProposalKindVideo} {
		if !ValidProposalKind(kind) {
			t.Fatalf("expected %q to be a valid proposal kind", kind)
		}
	}
	if ValidProposalKind("comment") {
		t.Fatalf("unexpected valid kind")
	}
	if !ValidProposalAction(ProposalActionRemove) || ValidProposalAction("archive") {
		t.Fatalf("proposal action validation mismatch")
	}
}
