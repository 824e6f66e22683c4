package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Roles recognised by the API. RoleUser is the implicit role for tokens that
// carry no role claim.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// NormalizeRole maps an arbitrary role string onto the closed role set,
// falling back to RoleUser for anything unknown.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleModerator:
		return RoleModerator
	default:
		return RoleUser
	}
}

// User represents a curator or moderator account.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	Roles        []string   `json:"roles"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// HasRole reports whether the user carries the given role (case-insensitive).
func (u User) HasRole(role string) bool {
	for _, existing := range u.Roles {
		if strings.EqualFold(existing, role) {
			return true
		}
	}
	return false
}

// Category groups curated channels, playlists, and videos for the catalog.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Channel is a curated YouTube channel assigned to a category.
type Channel struct {
	ID           string    `json:"id"`
	YoutubeID    string    `json:"youtubeId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CategoryID   string    `json:"categoryId"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Playlist is a curated YouTube playlist, optionally tied to a curated channel.
type Playlist struct {
	ID           string    `json:"id"`
	YoutubeID    string    `json:"youtubeId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	ChannelID    string    `json:"channelId,omitempty"`
	CategoryID   string    `json:"categoryId"`
	ItemCount    int       `json:"itemCount"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Video lifecycle states maintained by the scheduled availability check.
const (
	VideoStatusActive      = "active"
	VideoStatusPending     = "pending"
	VideoStatusUnavailable = "unavailable"
)

// Video is a curated YouTube video.
type Video struct {
	ID            string     `json:"id"`
	YoutubeID     string     `json:"youtubeId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	ThumbnailURL  string     `json:"thumbnailUrl,omitempty"`
	ChannelID     string     `json:"channelId,omitempty"`
	CategoryID    string     `json:"categoryId"`
	Duration      string     `json:"duration,omitempty"`
	Status        string     `json:"status"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Proposal kinds, actions, and statuses for the moderation workflow.
const (
	ProposalKindChannel  = "channel"
	ProposalKindPlaylist = "playlist"
	ProposalKindVideo    = "video"

	ProposalActionAdd    = "add"
	ProposalActionUpdate = "update"
	ProposalActionRemove = "remove"

	ProposalStatusPending  = "pending"
	ProposalStatusApproved = "approved"
	ProposalStatusRejected = "rejected"
)

// ModerationProposal captures a moderator's suggested catalog change awaiting
// an administrator decision. Payload carries the proposed entity encoded as
// JSON; it stays opaque to the workflow until the proposal is approved.
type ModerationProposal struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Action         string          `json:"action"`
	TargetID       string          `json:"targetId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Note           string          `json:"note,omitempty"`
	Status         string          `json:"status"`
	ProposedBy     string          `json:"proposedBy"`
	ResolvedBy     string          `json:"resolvedBy,omitempty"`
	ResolutionNote string          `json:"resolutionNote,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
}

// ValidProposalKind reports whether kind names a proposable entity type.
func ValidProposalKind(kind string) bool {
	switch kind {
	case ProposalKindChannel, ProposalKindPlaylist, ProposalKindVideo:
		return true
	}
	return false
}

// ValidProposalAction reports whether action names a supported catalog change.
func ValidProposalAction(action string) bool {
	switch action {
	case ProposalActionAdd, ProposalActionUpdate, ProposalActionRemove:
		return true
	}
	return false
}
