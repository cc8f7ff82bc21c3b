package handler

import (
	"net/http"

	"clanstore/internal/domain"
)

// ListPerms returns all perms
func (h *ClanHandler) ListPerms(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.Perms(r.Context())
	if err != nil {
		h.fail(w, "Failed to list perms", err)
		return
	}
	h.writeJSON(w, perms, http.StatusOK)
}

// GetPerm returns a single perm
func (h *ClanHandler) GetPerm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	perm, err := h.svc.Perm(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get perm", err)
		return
	}
	h.writeJSON(w, perm, http.StatusOK)
}

// CreatePerm creates a perm; an omitted id is generated
func (h *ClanHandler) CreatePerm(w http.ResponseWriter, r *http.Request) {
	var perm domain.Perm
	if !h.decode(w, r, &perm) {
		return
	}
	if perm.BreakBlocks == nil {
		perm.BreakBlocks = []domain.Material{}
	}

	if err := h.svc.CreatePerm(r.Context(), &perm); err != nil {
		h.fail(w, "Failed to create perm", err)
		return
	}
	h.writeJSON(w, perm, http.StatusCreated)
}

// UpdatePerm rewrites a perm
func (h *ClanHandler) UpdatePerm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var perm domain.Perm
	if !h.decode(w, r, &perm) {
		return
	}
	perm.ID = id
	if perm.BreakBlocks == nil {
		perm.BreakBlocks = []domain.Material{}
	}

	if err := h.svc.UpdatePerm(r.Context(), &perm); err != nil {
		h.fail(w, "Failed to update perm", err)
		return
	}
	h.writeJSON(w, perm, http.StatusOK)
}
