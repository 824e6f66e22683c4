package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tube-curator/internal/models"
)

// proposalPayload is the wire form of a proposed catalog entity. A single
// shape covers all three kinds; irrelevant fields stay empty.
type proposalPayload struct {
	YoutubeID    string  `json:"youtubeId,omitempty"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
	CategoryID   *string `json:"categoryId,omitempty"`
	ChannelID    string  `json:"channelId,omitempty"`
	ItemCount    *int    `json:"itemCount,omitempty"`
	Duration     *string `json:"duration,omitempty"`
}

// CreateProposal records a moderator's suggested catalog change.
func (s *Storage) CreateProposal(params ProposalParams) (models.ModerationProposal, error) {
	if !models.ValidProposalKind(params.Kind) {
		return models.ModerationProposal{}, fmt.Errorf("unknown proposal kind %q", params.Kind)
	}
	if !models.ValidProposalAction(params.Action) {
		return models.ModerationProposal{}, fmt.Errorf("unknown proposal action %q", params.Action)
	}
	if params.Action != models.ProposalActionAdd && strings.TrimSpace(params.TargetID) == "" {
		return models.ModerationProposal{}, errors.New("targetId is required for update and remove proposals")
	}
	if params.Action != models.ProposalActionRemove && len(params.Payload) == 0 {
		return models.ModerationProposal{}, errors.New("payload is required for add and update proposals")
	}
	if len(params.Payload) > 0 && !json.Valid(params.Payload) {
		return models.ModerationProposal{}, errors.New("payload must be valid JSON")
	}
	if strings.TrimSpace(params.ProposedBy) == "" {
		return models.ModerationProposal{}, errors.New("proposedBy is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.idFactory()
	if err != nil {
		return models.ModerationProposal{}, err
	}
	proposal := models.ModerationProposal{
		ID:         id,
		Kind:       params.Kind,
		Action:     params.Action,
		TargetID:   strings.TrimSpace(params.TargetID),
		Payload:    append([]byte(nil), params.Payload...),
		Note:       strings.TrimSpace(params.Note),
		Status:     models.ProposalStatusPending,
		ProposedBy: params.ProposedBy,
		CreatedAt:  s.clock(),
	}

	s.data.Proposals[id] = proposal
	if err := s.persist(); err != nil {
		delete(s.data.Proposals, id)
		return models.ModerationProposal{}, err
	}
	return proposal, nil
}

func (s *Storage) GetProposal(id string) (models.ModerationProposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.data.Proposals[id]
	return proposal, ok
}

// ListProposals returns proposals newest first, optionally filtered by status.
func (s *Storage) ListProposals(status string) []models.ModerationProposal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proposals := make([]models.ModerationProposal, 0, len(s.data.Proposals))
	for _, proposal := range s.data.Proposals {
		if status != "" && proposal.Status != status {
			continue
		}
		proposals = append(proposals, proposal)
	}
	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	return proposals
}

// ApproveProposal applies the proposed catalog change and marks the proposal
// approved. When applying fails the proposal stays pending and the error is
// returned to the resolver.
func (s *Storage) ApproveProposal(id, resolvedBy, note string) (models.ModerationProposal, error) {
	proposal, ok := s.GetProposal(id)
	if !ok {
		return models.ModerationProposal{}, ErrNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.ModerationProposal{}, ErrProposalResolved
	}

	if err := s.applyProposal(proposal); err != nil {
		return models.ModerationProposal{}, fmt.Errorf("apply proposal %s: %w", id, err)
	}
	return s.resolveProposal(id, models.ProposalStatusApproved, resolvedBy, note)
}

// RejectProposal marks the proposal rejected without touching the catalog.
func (s *Storage) RejectProposal(id, resolvedBy, note string) (models.ModerationProposal, error) {
	proposal, ok := s.GetProposal(id)
	if !ok {
		return models.ModerationProposal{}, ErrNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.ModerationProposal{}, ErrProposalResolved
	}
	return s.resolveProposal(id, models.ProposalStatusRejected, resolvedBy, note)
}

func (s *Storage) resolveProposal(id, status, resolvedBy, note string) (models.ModerationProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.data.Proposals[id]
	if !ok {
		return models.ModerationProposal{}, ErrNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.ModerationProposal{}, ErrProposalResolved
	}
	previous := proposal

	now := s.clock()
	proposal.Status = status
	proposal.ResolvedBy = resolvedBy
	proposal.ResolutionNote = strings.TrimSpace(note)
	proposal.ResolvedAt = &now

	s.data.Proposals[id] = proposal
	if err := s.persist(); err != nil {
		s.data.Proposals[id] = previous
		return models.ModerationProposal{}, err
	}
	return proposal, nil
}

func (s *Storage) applyProposal(proposal models.ModerationProposal) error {
	var payload proposalPayload
	if len(proposal.Payload) > 0 {
		if err := json.Unmarshal(proposal.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	switch proposal.Kind {
	case models.ProposalKindChannel:
		return s.applyChannelProposal(proposal, payload)
	case models.ProposalKindPlaylist:
		return s.applyPlaylistProposal(proposal, payload)
	case models.ProposalKindVideo:
		return s.applyVideoProposal(proposal, payload)
	default:
		return fmt.Errorf("unknown proposal kind %q", proposal.Kind)
	}
}

func (s *Storage) applyChannelProposal(proposal models.ModerationProposal, payload proposalPayload) error {
	switch proposal.Action {
	case models.ProposalActionAdd:
		_, err := s.CreateChannel(ChannelParams{
			YoutubeID:    payload.YoutubeID,
			Title:        stringValue(payload.Title),
			Description:  stringValue(payload.Description),
			ThumbnailURL: stringValue(payload.ThumbnailURL),
			CategoryID:   stringValue(payload.CategoryID),
			CreatedBy:    proposal.ProposedBy,
		})
		return err
	case models.ProposalActionUpdate:
		_, err := s.UpdateChannel(proposal.TargetID, ChannelUpdate{
			Title:        payload.Title,
			Description:  payload.Description,
			ThumbnailURL: payload.ThumbnailURL,
			CategoryID:   payload.CategoryID,
		})
		return err
	case models.ProposalActionRemove:
		return s.DeleteChannel(proposal.TargetID)
	default:
		return fmt.Errorf("unknown proposal action %q", proposal.Action)
	}
}

func (s *Storage) applyPlaylistProposal(proposal models.ModerationProposal, payload proposalPayload) error {
	switch proposal.Action {
	case models.ProposalActionAdd:
		_, err := s.CreatePlaylist(PlaylistParams{
			YoutubeID:    payload.YoutubeID,
			Title:        stringValue(payload.Title),
			Description:  stringValue(payload.Description),
			ThumbnailURL: stringValue(payload.ThumbnailURL),
			ChannelID:    payload.ChannelID,
			CategoryID:   stringValue(payload.CategoryID),
			ItemCount:    intValue(payload.ItemCount),
			CreatedBy:    proposal.ProposedBy,
		})
		return err
	case models.ProposalActionUpdate:
		_, err := s.UpdatePlaylist(proposal.TargetID, PlaylistUpdate{
			Title:        payload.Title,
			Description:  payload.Description,
			ThumbnailURL: payload.ThumbnailURL,
			CategoryID:   payload.CategoryID,
			ItemCount:    payload.ItemCount,
		})
		return err
	case models.ProposalActionRemove:
		return s.DeletePlaylist(proposal.TargetID)
	default:
		return fmt.Errorf("unknown proposal action %q", proposal.Action)
	}
}

func (s *Storage) applyVideoProposal(proposal models.ModerationProposal, payload proposalPayload) error {
	switch proposal.Action {
	case models.ProposalActionAdd:
		_, err := s.CreateVideo(VideoParams{
			YoutubeID:    payload.YoutubeID,
			Title:        stringValue(payload.Title),
			Description:  stringValue(payload.Description),
			ThumbnailURL: stringValue(payload.ThumbnailURL),
			ChannelID:    payload.ChannelID,
			CategoryID:   stringValue(payload.CategoryID),
			Duration:     stringValue(payload.Duration),
			CreatedBy:    proposal.ProposedBy,
		})
		return err
	case models.ProposalActionUpdate:
		_, err := s.UpdateVideo(proposal.TargetID, VideoUpdate{
			Title:        payload.Title,
			Description:  payload.Description,
			ThumbnailURL: payload.ThumbnailURL,
			CategoryID:   payload.CategoryID,
			Duration:     payload.Duration,
		})
		return err
	case models.ProposalActionRemove:
		return s.DeleteVideo(proposal.TargetID)
	default:
		return fmt.Errorf("unknown proposal action %q", proposal.Action)
	}
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func intValue(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
