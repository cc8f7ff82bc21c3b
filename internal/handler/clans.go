package handler

import (
	"net/http"

	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// FoundClanRequest is the body of POST /api/clans
type FoundClanRequest struct {
	FounderID   uuid.UUID `json:"founder_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Outline     string    `json:"outline"`
}

// UpdateClanRequest is the body of PUT /api/clans/{id}
type UpdateClanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Outline     string `json:"outline"`
}

// JoinClanRequest is the body of POST /api/clans/{id}/members
type JoinClanRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// ClaimAreaRequest is the body of POST /api/clans/{id}/claims
type ClaimAreaRequest struct {
	World string             `json:"world"`
	Box   domain.BoundingBox `json:"box"`
}

// ListClans returns all clans
func (h *ClanHandler) ListClans(w http.ResponseWriter, r *http.Request) {
	clans, err := h.svc.Clans(r.Context())
	if err != nil {
		h.fail(w, "Failed to list clans", err)
		return
	}
	h.writeJSON(w, clans, http.StatusOK)
}

// GetClan returns a single clan
func (h *ClanHandler) GetClan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	clan, err := h.svc.Clan(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get clan", err)
		return
	}
	h.writeJSON(w, clan, http.StatusOK)
}

// FoundClan creates a clan led by the founder
func (h *ClanHandler) FoundClan(w http.ResponseWriter, r *http.Request) {
	var req FoundClanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.FounderID == uuid.Nil {
		h.writeError(w, "Invalid request body", "founder_id is required", http.StatusBadRequest)
		return
	}
	outline, ok := h.material(w, req.Outline, "")
	if !ok {
		return
	}

	clan, err := h.svc.FoundClan(r.Context(), req.FounderID, req.Name, req.Description, outline)
	if err != nil {
		h.fail(w, "Failed to found clan", err)
		return
	}
	h.writeJSON(w, clan, http.StatusCreated)
}

// UpdateClan renames a clan or changes its description or outline
func (h *ClanHandler) UpdateClan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateClanRequest
	if !h.decode(w, r, &req) {
		return
	}
	outline, ok := h.material(w, req.Outline, "")
	if !ok {
		return
	}

	clan, err := h.svc.UpdateClan(r.Context(), id, req.Name, req.Description, outline)
	if err != nil {
		h.fail(w, "Failed to update clan", err)
		return
	}
	h.writeJSON(w, clan, http.StatusOK)
}

// DisbandClan deletes a clan
func (h *ClanHandler) DisbandClan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DisbandClan(r.Context(), id); err != nil {
		h.fail(w, "Failed to disband clan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinClan adds a player to the clan
func (h *ClanHandler) JoinClan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req JoinClanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PlayerID == uuid.Nil {
		h.writeError(w, "Invalid request body", "player_id is required", http.StatusBadRequest)
		return
	}

	member, err := h.svc.JoinClan(r.Context(), req.PlayerID, id)
	if err != nil {
		h.fail(w, "Failed to join clan", err)
		return
	}
	h.writeJSON(w, member, http.StatusOK)
}

// ClaimArea claims a box for the clan
func (h *ClanHandler) ClaimArea(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req ClaimAreaRequest
	if !h.decode(w, r, &req) {
		return
	}

	claim, err := h.svc.ClaimArea(r.Context(), id, req.World, req.Box)
	if err != nil {
		h.fail(w, "Failed to claim area", err)
		return
	}
	h.writeJSON(w, claim, http.StatusCreated)
}
