package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tube-curator/internal/models"
)

// CreateChannel adds a curated channel to the catalog.
func (s *Storage) CreateChannel(params ChannelParams) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Channel{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Channel{}, errors.New("title is required")
	}
	if _, ok := s.data.Categories[params.CategoryID]; !ok {
		return models.Channel{}, fmt.Errorf("category %s does not exist", params.CategoryID)
	}
	for _, channel := range s.data.Channels {
		if channel.YoutubeID == youtubeID {
			return models.Channel{}, fmt.Errorf("channel %s is already curated", youtubeID)
		}
	}

	id, err := s.idFactory()
	if err != nil {
		return models.Channel{}, err
	}
	now := s.clock()
	channel := models.Channel{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		CategoryID:   params.CategoryID,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.Channels[id] = channel
	if err := s.persist(); err != nil {
		delete(s.data.Channels, id)
		return models.Channel{}, err
	}
	return channel, nil
}

func (s *Storage) GetChannel(id string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.data.Channels[id]
	return channel, ok
}

// ListChannels returns curated channels, optionally filtered by category and
// a case-insensitive title substring.
func (s *Storage) ListChannels(categoryID, query string) []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	channels := make([]models.Channel, 0, len(s.data.Channels))
	for _, channel := range s.data.Channels {
		if categoryID != "" && channel.CategoryID != categoryID {
			continue
		}
		if normalizedQuery != "" && !strings.Contains(strings.ToLower(channel.Title), normalizedQuery) {
			continue
		}
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Title < channels[j].Title
	})
	return channels
}

func (s *Storage) UpdateChannel(id string, update ChannelUpdate) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[id]
	if !ok {
		return models.Channel{}, ErrNotFound
	}
	previous := channel

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Channel{}, errors.New("title is required")
		}
		channel.Title = trimmed
	}
	if update.Description != nil {
		channel.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		channel.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		if _, ok := s.data.Categories[*update.CategoryID]; !ok {
			return models.Channel{}, fmt.Errorf("category %s does not exist", *update.CategoryID)
		}
		channel.CategoryID = *update.CategoryID
	}
	channel.UpdatedAt = s.clock()

	s.data.Channels[id] = channel
	if err := s.persist(); err != nil {
		s.data.Channels[id] = previous
		return models.Channel{}, err
	}
	return channel, nil
}

func (s *Storage) DeleteChannel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[id]
	if !ok {
		return ErrNotFound
	}
	for _, playlist := range s.data.Playlists {
		if playlist.ChannelID == id {
			return fmt.Errorf("channel %s is still referenced by the catalog", id)
		}
	}
	for _, video := range s.data.Videos {
		if video.ChannelID == id {
			return fmt.Errorf("channel %s is still referenced by the catalog", id)
		}
	}
	delete(s.data.Channels, id)
	if err := s.persist(); err != nil {
		s.data.Channels[id] = channel
		return err
	}
	return nil
}

// CreatePlaylist adds a curated playlist to the catalog.
func (s *Storage) CreatePlaylist(params PlaylistParams) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Playlist{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Playlist{}, errors.New("title is required")
	}
	if _, ok := s.data.Categories[params.CategoryID]; !ok {
		return models.Playlist{}, fmt.Errorf("category %s does not exist", params.CategoryID)
	}
	if params.ChannelID != "" {
		if _, ok := s.data.Channels[params.ChannelID]; !ok {
			return models.Playlist{}, fmt.Errorf("channel %s does not exist", params.ChannelID)
		}
	}

	id, err := s.idFactory()
	if err != nil {
		return models.Playlist{}, err
	}
	now := s.clock()
	playlist := models.Playlist{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		ChannelID:    params.ChannelID,
		CategoryID:   params.CategoryID,
		ItemCount:    params.ItemCount,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.Playlists[id] = playlist
	if err := s.persist(); err != nil {
		delete(s.data.Playlists, id)
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (s *Storage) GetPlaylist(id string) (models.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playlist, ok := s.data.Playlists[id]
	return playlist, ok
}

func (s *Storage) ListPlaylists(categoryID string) []models.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]models.Playlist, 0, len(s.data.Playlists))
	for _, playlist := range s.data.Playlists {
		if categoryID != "" && playlist.CategoryID != categoryID {
			continue
		}
		playlists = append(playlists, playlist)
	}
	sort.Slice(playlists, func(i, j int) bool {
		return playlists[i].Title < playlists[j].Title
	})
	return playlists
}

func (s *Storage) UpdatePlaylist(id string, update PlaylistUpdate) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return models.Playlist{}, ErrNotFound
	}
	previous := playlist

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Playlist{}, errors.New("title is required")
		}
		playlist.Title = trimmed
	}
	if update.Description != nil {
		playlist.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		playlist.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		if _, ok := s.data.Categories[*update.CategoryID]; !ok {
			return models.Playlist{}, fmt.Errorf("category %s does not exist", *update.CategoryID)
		}
		playlist.CategoryID = *update.CategoryID
	}
	if update.ItemCount != nil && *update.ItemCount >= 0 {
		playlist.ItemCount = *update.ItemCount
	}
	playlist.UpdatedAt = s.clock()

	s.data.Playlists[id] = playlist
	if err := s.persist(); err != nil {
		s.data.Playlists[id] = previous
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (s *Storage) DeletePlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.data.Playlists, id)
	if err := s.persist(); err != nil {
		s.data.Playlists[id] = playlist
		return err
	}
	return nil
}

// CreateVideo adds a curated video in the pending state; the validation job
// promotes it to active on its first successful availability probe.
func (s *Storage) CreateVideo(params VideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Video{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	if _, ok := s.data.Categories[params.CategoryID]; !ok {
		return models.Video{}, fmt.Errorf("category %s does not exist", params.CategoryID)
	}
	if params.ChannelID != "" {
		if _, ok := s.data.Channels[params.ChannelID]; !ok {
			return models.Video{}, fmt.Errorf("channel %s does not exist", params.ChannelID)
		}
	}
	for _, video := range s.data.Videos {
		if video.YoutubeID == youtubeID {
			return models.Video{}, fmt.Errorf("video %s is already curated", youtubeID)
		}
	}

	id, err := s.idFactory()
	if err != nil {
		return models.Video{}, err
	}
	now := s.clock()
	video := models.Video{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		ChannelID:    params.ChannelID,
		CategoryID:   params.CategoryID,
		Duration:     strings.TrimSpace(params.Duration),
		Status:       models.VideoStatusPending,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		delete(s.data.Videos, id)
		return models.Video{}, err
	}
	return video, nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok
}

func (s *Storage) ListVideos(categoryID, channelID, status string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if categoryID != "" && video.CategoryID != categoryID {
			continue
		}
		if channelID != "" && video.ChannelID != channelID {
			continue
		}
		if status != "" && video.Status != status {
			continue
		}
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].Title < videos[j].Title
	})
	return videos
}

func (s *Storage) UpdateVideo(id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	previous := video

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Video{}, errors.New("title is required")
		}
		video.Title = trimmed
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		if _, ok := s.data.Categories[*update.CategoryID]; !ok {
			return models.Video{}, fmt.Errorf("category %s does not exist", *update.CategoryID)
		}
		video.CategoryID = *update.CategoryID
	}
	if update.Duration != nil {
		video.Duration = strings.TrimSpace(*update.Duration)
	}
	video.UpdatedAt = s.clock()

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = previous
		return models.Video{}, err
	}
	return video, nil
}

func (s *Storage) DeleteVideo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.data.Videos, id)
	if err := s.persist(); err != nil {
		s.data.Videos[id] = video
		return err
	}
	return nil
}

// ListVideosForValidation returns videos never checked or last checked before
// the cutoff, oldest first, bounded by limit when positive.
func (s *Storage) ListVideosForValidation(checkedBefore time.Time, limit int) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if video.LastCheckedAt != nil && !video.LastCheckedAt.Before(checkedBefore) {
			continue
		}
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool {
		left, right := videos[i].LastCheckedAt, videos[j].LastCheckedAt
		switch {
		case left == nil && right == nil:
			return videos[i].CreatedAt.Before(videos[j].CreatedAt)
		case left == nil:
			return true
		case right == nil:
			return false
		default:
			return left.Before(*right)
		}
	})
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos
}

// MarkVideoStatus records the outcome of an availability probe.
func (s *Storage) MarkVideoStatus(id, status string, checkedAt time.Time) (models.Video, error) {
	switch status {
	case models.VideoStatusActive, models.VideoStatusPending, models.VideoStatusUnavailable:
	default:
		return models.Video{}, fmt.Errorf("unknown video status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	previous := video

	stamp := checkedAt.UTC()
	video.Status = status
	video.LastCheckedAt = &stamp
	video.UpdatedAt = s.clock()

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = previous
		return models.Video{}, err
	}
	return video, nil
}
