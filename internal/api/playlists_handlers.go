package api

import (
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/storage"
)

type createPlaylistRequest struct {
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ChannelID    string `json:"channelId"`
	CategoryID   string `json:"categoryId"`
	ItemCount    int    `json:"itemCount"`
}

type updatePlaylistRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	CategoryID   *string `json:"categoryId"`
	ItemCount    *int    `json:"itemCount"`
}

type playlistResponse struct {
	ID           string `json:"id"`
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ChannelID    string `json:"channelId,omitempty"`
	CategoryID   string `json:"categoryId"`
	ItemCount    int    `json:"itemCount"`
	CreatedBy    string `json:"createdBy,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func newPlaylistResponse(playlist models.Playlist) playlistResponse {
	return playlistResponse{
		ID:           playlist.ID,
		YoutubeID:    playlist.YoutubeID,
		Title:        playlist.Title,
		Description:  playlist.Description,
		ThumbnailURL: playlist.ThumbnailURL,
		ChannelID:    playlist.ChannelID,
		CategoryID:   playlist.CategoryID,
		ItemCount:    playlist.ItemCount,
		CreatedBy:    playlist.CreatedBy,
		CreatedAt:    playlist.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    playlist.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Playlists handles the /api/playlists collection.
func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		playlists := h.Store.ListPlaylists(strings.TrimSpace(r.URL.Query().Get("category")))
		responses := make([]playlistResponse, 0, len(playlists))
		for _, playlist := range playlists {
			responses = append(responses, newPlaylistResponse(playlist))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		principal, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		var req createPlaylistRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		check := &violations{}
		youtubeID := check.requireString("youtubeId", req.YoutubeID)
		title := check.requireString("title", req.Title)
		categoryID := check.requireString("categoryId", req.CategoryID)
		if req.ItemCount < 0 {
			check.add("itemCount", "must not be negative")
		}
		if err := check.err(); err != nil {
			WriteError(w, r, err)
			return
		}
		playlist, err := h.Store.CreatePlaylist(storage.PlaylistParams{
			YoutubeID:    youtubeID,
			Title:        title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			ChannelID:    strings.TrimSpace(req.ChannelID),
			CategoryID:   categoryID,
			ItemCount:    req.ItemCount,
			CreatedBy:    principal.SubjectID,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusCreated, newPlaylistResponse(playlist))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// PlaylistByID handles /api/playlists/{id}.
func (h *Handler) PlaylistByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/playlists/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, notFound("playlist"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		playlist, exists := h.Store.GetPlaylist(id)
		if !exists {
			WriteError(w, r, notFound("playlist"))
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodPut, http.MethodPatch:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req updatePlaylistRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		playlist, err := h.Store.UpdatePlaylist(id, storage.PlaylistUpdate{
			Title:        req.Title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			CategoryID:   req.CategoryID,
			ItemCount:    req.ItemCount,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodDelete:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		if err := h.Store.DeletePlaylist(id); err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}
