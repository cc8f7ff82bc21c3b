package handler

import (
	"net/http"
	"strconv"
)

// ListClaims returns all claims
func (h *ClanHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.svc.Claims(r.Context())
	if err != nil {
		h.fail(w, "Failed to list claims", err)
		return
	}
	h.writeJSON(w, claims, http.StatusOK)
}

// GetClaim returns a single claim
func (h *ClanHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	claim, err := h.svc.Claim(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get claim", err)
		return
	}
	h.writeJSON(w, claim, http.StatusOK)
}

// ReleaseClaim deletes a claim
func (h *ClanHandler) ReleaseClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.ReleaseClaim(r.Context(), id); err != nil {
		h.fail(w, "Failed to release claim", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClaimAt returns the claim containing ?world=&x=&y=&z=
func (h *ClanHandler) ClaimAt(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.queryPosition(w, r)
	if !ok {
		return
	}
	claim, err := h.svc.ClaimAt(r.Context(), pos.world, pos.x, pos.y, pos.z)
	if err != nil {
		h.fail(w, "Failed to look up claim", err)
		return
	}
	if claim == nil {
		h.writeError(w, "Not found", "no claim at this position", http.StatusNotFound)
		return
	}
	h.writeJSON(w, claim, http.StatusOK)
}

// NearbyClaims returns claims within ?radius= chunks (default 1) of ?world=&x=&z=
func (h *ClanHandler) NearbyClaims(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.queryPosition(w, r)
	if !ok {
		return
	}
	radius := int64(1)
	if raw := r.URL.Query().Get("radius"); raw != "" {
		var err error
		if radius, err = strconv.ParseInt(raw, 10, 32); err != nil || radius < 0 {
			h.writeError(w, "Invalid radius", "radius must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	claims, err := h.svc.NearbyClaims(r.Context(), pos.world, pos.x, pos.z, int32(radius))
	if err != nil {
		h.fail(w, "Failed to list nearby claims", err)
		return
	}
	h.writeJSON(w, claims, http.StatusOK)
}

// ListChunks returns every claimed chunk key
func (h *ClanHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.ChunkKeys(r.Context())
	if err != nil {
		h.fail(w, "Failed to list chunks", err)
		return
	}
	h.writeJSON(w, keys, http.StatusOK)
}

// ChunkClaims returns the claims indexed under a chunk key
func (h *ClanHandler) ChunkClaims(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(r.PathValue("key"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid chunk key", err.Error(), http.StatusBadRequest)
		return
	}
	claims, err := h.svc.ClaimsInChunk(r.Context(), key)
	if err != nil {
		h.fail(w, "Failed to list chunk claims", err)
		return
	}
	h.writeJSON(w, claims, http.StatusOK)
}
