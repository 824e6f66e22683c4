package storage

import (
	"context"
	"errors"
	"time"

	"tube-curator/internal/models"
)

// Sentinel errors shared by both repository implementations.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrProposalResolved   = errors.New("proposal already resolved")
)

// CreateUserParams describes a new curator or moderator account.
type CreateUserParams struct {
	Email       string
	DisplayName string
	Password    string
	Roles       []string
}

// UserUpdate represents the fields that can be modified for an existing user.
type UserUpdate struct {
	DisplayName *string
	Email       *string
	Roles       *[]string
}

// CategoryUpdate represents mutable category fields.
type CategoryUpdate struct {
	Name        *string
	Description *string
	Position    *int
}

// ChannelParams describes a curated channel on create or proposal approval.
type ChannelParams struct {
	YoutubeID    string
	Title        string
	Description  string
	ThumbnailURL string
	CategoryID   string
	CreatedBy    string
}

// ChannelUpdate represents mutable channel fields.
type ChannelUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	CategoryID   *string
}

// PlaylistParams describes a curated playlist.
type PlaylistParams struct {
	YoutubeID    string
	Title        string
	Description  string
	ThumbnailURL string
	ChannelID    string
	CategoryID   string
	ItemCount    int
	CreatedBy    string
}

// PlaylistUpdate represents mutable playlist fields.
type PlaylistUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	CategoryID   *string
	ItemCount    *int
}

// VideoParams describes a curated video.
type VideoParams struct {
	YoutubeID    string
	Title        string
	Description  string
	ThumbnailURL string
	ChannelID    string
	CategoryID   string
	Duration     string
	CreatedBy    string
}

// VideoUpdate represents mutable video fields.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	CategoryID   *string
	Duration     *string
}

// ProposalParams describes a new moderation proposal.
type ProposalParams struct {
	Kind       string
	Action     string
	TargetID   string
	Payload    []byte
	Note       string
	ProposedBy string
}

// Repository exposes the datastore operations required by the API handlers,
// the moderation workflow, and the video validation job.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(params CreateUserParams) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	ListUsers() []models.User
	GetUser(id string) (models.User, bool)
	FindUserByEmail(email string) (models.User, bool)
	UpdateUser(id string, update UserUpdate) (models.User, error)
	SetUserPassword(id, password string) (models.User, error)
	RecordUserLogin(id string, at time.Time) error
	DeleteUser(id string) error

	CreateCategory(name, description string, position int) (models.Category, error)
	GetCategory(id string) (models.Category, bool)
	ListCategories() []models.Category
	UpdateCategory(id string, update CategoryUpdate) (models.Category, error)
	DeleteCategory(id string) error

	CreateChannel(params ChannelParams) (models.Channel, error)
	GetChannel(id string) (models.Channel, bool)
	ListChannels(categoryID, query string) []models.Channel
	UpdateChannel(id string, update ChannelUpdate) (models.Channel, error)
	DeleteChannel(id string) error

	CreatePlaylist(params PlaylistParams) (models.Playlist, error)
	GetPlaylist(id string) (models.Playlist, bool)
	ListPlaylists(categoryID string) []models.Playlist
	UpdatePlaylist(id string, update PlaylistUpdate) (models.Playlist, error)
	DeletePlaylist(id string) error

	CreateVideo(params VideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	ListVideos(categoryID, channelID, status string) []models.Video
	UpdateVideo(id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(id string) error
	ListVideosForValidation(checkedBefore time.Time, limit int) []models.Video
	MarkVideoStatus(id, status string, checkedAt time.Time) (models.Video, error)

	CreateProposal(params ProposalParams) (models.ModerationProposal, error)
	GetProposal(id string) (models.ModerationProposal, bool)
	ListProposals(status string) []models.ModerationProposal
	ApproveProposal(id, resolvedBy, note string) (models.ModerationProposal, error)
	RejectProposal(id, resolvedBy, note string) (models.ModerationProposal, error)

	Close(ctx context.Context) error
}

var _ Repository = (*Storage)(nil)
