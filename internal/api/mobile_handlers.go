package api

import (
	"net/http"
	"time"

	"tube-curator/internal/models"
)

type mobileCategoryResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Position    int                `json:"position"`
	Channels    []channelResponse  `json:"channels"`
	Playlists   []playlistResponse `json:"playlists"`
	Videos      []videoResponse    `json:"videos"`
}

type mobileCatalogResponse struct {
	Categories  []mobileCategoryResponse `json:"categories"`
	GeneratedAt string                   `json:"generatedAt"`
}

// MobileCatalog serves the read-only feed consumed by the mobile clients.
// It is the one public catalog surface: no token required, and only videos
// that passed their last availability check are included.
func (h *Handler) MobileCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	categories := h.Store.ListCategories()
	out := make([]mobileCategoryResponse, 0, len(categories))
	for _, category := range categories {
		entry := mobileCategoryResponse{
			ID:          category.ID,
			Name:        category.Name,
			Description: category.Description,
			Position:    category.Position,
			Channels:    []channelResponse{},
			Playlists:   []playlistResponse{},
			Videos:      []videoResponse{},
		}
		for _, channel := range h.Store.ListChannels(category.ID, "") {
			entry.Channels = append(entry.Channels, newChannelResponse(channel))
		}
		for _, playlist := range h.Store.ListPlaylists(category.ID) {
			entry.Playlists = append(entry.Playlists, newPlaylistResponse(playlist))
		}
		for _, video := range h.Store.ListVideos(category.ID, "", models.VideoStatusActive) {
			entry.Videos = append(entry.Videos, newVideoResponse(video))
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, mobileCatalogResponse{
		Categories:  out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
