package api

import (
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/observability/logging"
	"tube-curator/internal/storage"
)

type createVideoRequest struct {
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ChannelID    string `json:"channelId"`
	CategoryID   string `json:"categoryId"`
	Duration     string `json:"duration"`
}

type updateVideoRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	CategoryID   *string `json:"categoryId"`
	Duration     *string `json:"duration"`
}

type videoResponse struct {
	ID            string  `json:"id"`
	YoutubeID     string  `json:"youtubeId"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	ThumbnailURL  string  `json:"thumbnailUrl,omitempty"`
	ChannelID     string  `json:"channelId,omitempty"`
	CategoryID    string  `json:"categoryId"`
	Duration      string  `json:"duration,omitempty"`
	Status        string  `json:"status"`
	LastCheckedAt *string `json:"lastCheckedAt,omitempty"`
	CreatedBy     string  `json:"createdBy,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func newVideoResponse(video models.Video) videoResponse {
	resp := videoResponse{
		ID:           video.ID,
		YoutubeID:    video.YoutubeID,
		Title:        video.Title,
		Description:  video.Description,
		ThumbnailURL: video.ThumbnailURL,
		ChannelID:    video.ChannelID,
		CategoryID:   video.CategoryID,
		Duration:     video.Duration,
		Status:       video.Status,
		CreatedBy:    video.CreatedBy,
		CreatedAt:    video.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    video.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if video.LastCheckedAt != nil {
		formatted := video.LastCheckedAt.UTC().Format(time.RFC3339)
		resp.LastCheckedAt = &formatted
	}
	return resp
}

// Videos handles the /api/videos collection. Reads accept category, channel
// and status filters.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		query := r.URL.Query()
		videos := h.Store.ListVideos(
			strings.TrimSpace(query.Get("category")),
			strings.TrimSpace(query.Get("channel")),
			strings.TrimSpace(query.Get("status")))
		responses := make([]videoResponse, 0, len(videos))
		for _, video := range videos {
			responses = append(responses, newVideoResponse(video))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		principal, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		var req createVideoRequest
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
		video, err := h.Store.CreateVideo(storage.VideoParams{
			YoutubeID:    youtubeID,
			Title:        title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			ChannelID:    strings.TrimSpace(req.ChannelID),
			CategoryID:   categoryID,
			Duration:     req.Duration,
			CreatedBy:    principal.SubjectID,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusCreated, newVideoResponse(video))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// VideoByID handles /api/videos/{id} and the /api/videos/{id}/check probe.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	if rest == "" {
		WriteError(w, r, notFound("video"))
		return
	}
	if id, ok := strings.CutSuffix(rest, "/check"); ok {
		h.videoCheck(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		WriteError(w, r, notFound("video"))
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		video, exists := h.Store.GetVideo(id)
		if !exists {
			WriteError(w, r, notFound("video"))
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(video))
	case http.MethodPut, http.MethodPatch:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req updateVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		video, err := h.Store.UpdateVideo(id, storage.VideoUpdate{
			Title:        req.Title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			CategoryID:   req.CategoryID,
			Duration:     req.Duration,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(video))
	case http.MethodDelete:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		if err := h.Store.DeleteVideo(id); err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// videoCheck runs an on-demand availability probe instead of waiting for the
// next validation sweep.
func (h *Handler) videoCheck(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := h.requireModerator(w, r); !ok {
		return
	}
	if h.Checker == nil {
		WriteStatusError(w, r, http.StatusServiceUnavailable, "availability checks are not configured")
		return
	}
	video, exists := h.Store.GetVideo(id)
	if !exists {
		WriteError(w, r, notFound("video"))
		return
	}

	available, err := h.Checker.VideoAvailable(r.Context(), video.YoutubeID)
	if err != nil {
		logging.LoggerFromContext(r.Context()).Warn("availability probe failed", "error", err, "video_id", video.ID)
		WriteStatusError(w, r, http.StatusServiceUnavailable, "availability probe failed")
		return
	}
	status := models.VideoStatusActive
	if !available {
		status = models.VideoStatusUnavailable
	}
	updated, err := h.Store.MarkVideoStatus(video.ID, status, time.Now().UTC())
	if err != nil {
		WriteError(w, r, storageError(err))
		return
	}
	writeJSON(w, http.StatusOK, newVideoResponse(updated))
}
