package api

import (
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/storage"
)

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Position    *int    `json:"position"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func newCategoryResponse(category models.Category) categoryResponse {
	return categoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Position:    category.Position,
		CreatedAt:   category.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   category.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Categories handles the /api/categories collection. Reads are open to any
// authenticated account; writes are admin-only.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		categories := h.Store.ListCategories()
		responses := make([]categoryResponse, 0, len(categories))
		for _, category := range categories {
			responses = append(responses, newCategoryResponse(category))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req createCategoryRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		check := &violations{}
		name := check.requireString("name", req.Name)
		if req.Position < 0 {
			check.add("position", "must not be negative")
		}
		if err := check.err(); err != nil {
			WriteError(w, r, err)
			return
		}
		category, err := h.Store.CreateCategory(name, req.Description, req.Position)
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusCreated, newCategoryResponse(category))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// CategoryByID handles /api/categories/{id}.
func (h *Handler) CategoryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, notFound("category"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requirePrincipal(w, r); !ok {
			return
		}
		category, exists := h.Store.GetCategory(id)
		if !exists {
			WriteError(w, r, notFound("category"))
			return
		}
		writeJSON(w, http.StatusOK, newCategoryResponse(category))
	case http.MethodPut, http.MethodPatch:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		var req updateCategoryRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		category, err := h.Store.UpdateCategory(id, storage.CategoryUpdate{
			Name:        req.Name,
			Description: req.Description,
			Position:    req.Position,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusOK, newCategoryResponse(category))
	case http.MethodDelete:
		if _, ok := h.requireAdmin(w, r); !ok {
			return
		}
		if _, exists := h.Store.GetCategory(id); !exists {
			WriteError(w, r, notFound("category"))
			return
		}
		if err := h.Store.DeleteCategory(id); err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}
