package api

import (
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/storage"
)

type createChannelRequest struct {
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	CategoryID   string `json:"categoryId"`
}

type updateChannelRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	CategoryID   *string `json:"categoryId"`
}

type channelResponse struct {
	ID           string `json:"id"`
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	CategoryID   string `json:"categoryId"`
	CreatedBy    string `json:"createdBy,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func newChannelResponse(channel models.Channel) channelResponse {
	return channelResponse{
		ID:           channel.ID,
		YoutubeID:    channel.YoutubeID,
		Title:        channel.Title,
		Description:  channel.Description,
		ThumbnailURL: channel.ThumbnailURL,
		CategoryID:   channel.CategoryID,
		CreatedBy:    channel.CreatedBy,
		CreatedAt:    channel.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    channel.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Channels handles the /api/channels collection. Reads accept optional
// category and q filters; direct writes are admin-only.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		query := r.URL.Query()
		channels := h.Store.ListChannels(strings.TrimSpace(query.Get("category")), strings.TrimSpace(query.Get("q")))
		responses := make([]channelResponse, 0, len(channels))
		for _, channel := range channels {
			responses = append(responses, newChannelResponse(channel))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		principal, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		var req createChannelRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		check := &violations{}
		youtubeID := check.requireString("youtubeId", req.YoutubeID)
		title := check.requireString("title", req.Title)
		categoryID := check.requireString("categoryId", req.CategoryID)
		if err := check.err(); err != nil {
			WriteError(w, r, err)
			return
		}
		channel, err := h.Store.CreateChannel(storage.ChannelParams{
			YoutubeID:    youtubeID,
			Title:        title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			CategoryID:   categoryID,
			CreatedBy:    principal.SubjectID,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusCreated, newChannelResponse(channel))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// ChannelByID handles /api/channels/{id}.
func (h *Handler) ChannelByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/channels/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, notFound("channel"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		channel, exists := h.Store.GetChannel(id)
		if !exists {
			WriteError(w, r, notFound("channel"))
			return
		}
		writeJSON(w, http.StatusOK, newChannelResponse(channel))
	case http.MethodPut, http.MethodPatch:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req updateChannelRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		channel, err := h.Store.UpdateChannel(id, storage.ChannelUpdate{
			Title:        req.Title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			CategoryID:   req.CategoryID,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusOK, newChannelResponse(channel))
	case http.MethodDelete:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		if err := h.Store.DeleteChannel(id); err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}
