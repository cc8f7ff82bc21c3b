package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// AssignPermRequest is the body of PUT /api/members/{id}/perm. A null perm_id
// clears the assignment.
type AssignPermRequest struct {
	PermID *uuid.UUID `json:"perm_id"`
}

// ListMembers returns all members
func (h *ClanHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context())
	if err != nil {
		h.fail(w, "Failed to list members", err)
		return
	}
	h.writeJSON(w, members, http.StatusOK)
}

// GetMember returns a single member
func (h *ClanHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	member, err := h.svc.Member(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get member", err)
		return
	}
	h.writeJSON(w, member, http.StatusOK)
}

// LeaveClan removes the member from their clan
func (h *ClanHandler) LeaveClan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	member, err := h.svc.LeaveClan(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to leave clan", err)
		return
	}
	h.writeJSON(w, member, http.StatusOK)
}

// AssignPerm sets or clears the member's clan perm
func (h *ClanHandler) AssignPerm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req AssignPermRequest
	if !h.decode(w, r, &req) {
		return
	}

	member, err := h.svc.AssignPerm(r.Context(), id, req.PermID)
	if err != nil {
		h.fail(w, "Failed to assign perm", err)
		return
	}
	h.writeJSON(w, member, http.StatusOK)
}

// CanBreak answers whether the member may break ?material= at ?world=&x=&y=&z=
func (h *ClanHandler) CanBreak(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	pos, ok := h.queryPosition(w, r)
	if !ok {
		return
	}
	material, ok := h.material(w, r.URL.Query().Get("material"), "")
	if !ok {
		return
	}
	if material == "" {
		h.writeError(w, "Invalid material", "material is required", http.StatusBadRequest)
		return
	}

	allowed, err := h.svc.CanBreak(r.Context(), id, pos.world, pos.x, pos.y, pos.z, material)
	if err != nil {
		h.fail(w, "Failed to check permission", err)
		return
	}
	h.writeJSON(w, map[string]bool{"allowed": allowed}, http.StatusOK)
}
