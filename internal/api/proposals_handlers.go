package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/observability/metrics"
	"tube-curator/internal/storage"
)

type createProposalRequest struct {
	Kind     string          `json:"kind"`
	Action   string          `json:"action"`
	TargetID string          `json:"targetId"`
	Payload  json.RawMessage `json:"payload"`
	Note     string          `json:"note"`
}

type resolveProposalRequest struct {
	Note string `json:"note"`
}

type proposalResponse struct {
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
	CreatedAt      string          `json:"createdAt"`
	ResolvedAt     *string         `json:"resolvedAt,omitempty"`
}

func newProposalResponse(proposal models.ModerationProposal) proposalResponse {
	resp := proposalResponse{
		ID:             proposal.ID,
		Kind:           proposal.Kind,
		Action:         proposal.Action,
		TargetID:       proposal.TargetID,
		Payload:        proposal.Payload,
		Note:           proposal.Note,
		Status:         proposal.Status,
		ProposedBy:     proposal.ProposedBy,
		ResolvedBy:     proposal.ResolvedBy,
		ResolutionNote: proposal.ResolutionNote,
		CreatedAt:      proposal.CreatedAt.UTC().Format(time.RFC3339),
	}
	if proposal.ResolvedAt != nil {
		formatted := proposal.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &formatted
	}
	return resp
}

// Proposals handles the /api/proposals collection. Moderators submit and
// list; only approval and rejection are restricted to administrators.
func (h *Handler) Proposals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireModerator(w, r); !ok {
			return
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		proposals := h.Store.ListProposals(status)
		responses := make([]proposalResponse, 0, len(proposals))
		for _, proposal := range proposals {
			responses = append(responses, newProposalResponse(proposal))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		principal, ok := h.requireModerator(w, r)
		if !ok {
			return
		}
		var req createProposalRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		check := &violations{}
		kind := check.requireString("kind", req.Kind)
		action := check.requireString("action", req.Action)
		if kind != "" && !models.ValidProposalKind(kind) {
			check.add("kind", "must be one of channel, playlist, video")
		}
		if action != "" && !models.ValidProposalAction(action) {
			check.add("action", "must be one of add, update, remove")
		}
		if err := check.err(); err != nil {
			WriteError(w, r, err)
			return
		}
		proposal, err := h.Store.CreateProposal(storage.ProposalParams{
			Kind:       kind,
			Action:     action,
			TargetID:   req.TargetID,
			Payload:    req.Payload,
			Note:       req.Note,
			ProposedBy: principal.SubjectID,
		})
		if err != nil {
			WriteError(w, r, storageError(err))
			return
		}
		metrics.Default().ObserveProposalEvent("submitted")
		writeJSON(w, http.StatusCreated, newProposalResponse(proposal))
	default:
		WriteMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// ProposalByID handles /api/proposals/{id} plus the approve and reject
// transitions.
func (h *Handler) ProposalByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/proposals/")
	if rest == "" {
		WriteError(w, r, notFound("proposal"))
		return
	}
	if id, ok := strings.CutSuffix(rest, "/approve"); ok {
		h.resolveProposal(w, r, id, true)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/reject"); ok {
		h.resolveProposal(w, r, id, false)
		return
	}
	if strings.Contains(rest, "/") {
		WriteError(w, r, notFound("proposal"))
		return
	}

	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := h.requireModerator(w, r); !ok {
		return
	}
	proposal, exists := h.Store.GetProposal(rest)
	if !exists {
		WriteError(w, r, notFound("proposal"))
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(proposal))
}

func (h *Handler) resolveProposal(w http.ResponseWriter, r *http.Request, id string, approve bool) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req resolveProposalRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
	}

	var proposal models.ModerationProposal
	var err error
	if approve {
		proposal, err = h.Store.ApproveProposal(id, principal.SubjectID, req.Note)
	} else {
		proposal, err = h.Store.RejectProposal(id, principal.SubjectID, req.Note)
	}
	if err != nil {
		WriteError(w, r, storageError(err))
		return
	}
	if approve {
		metrics.Default().ObserveProposalEvent("approved")
	} else {
		metrics.Default().ObserveProposalEvent("rejected")
	}
	writeJSON(w, http.StatusOK, newProposalResponse(proposal))
}
