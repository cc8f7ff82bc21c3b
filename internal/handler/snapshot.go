package handler

import (
	"bytes"
	"log"
	"net/http"

	"clanstore/internal/codec"
)

// Export writes a snapshot of the store as JSON or YAML
func (h *ClanHandler) Export(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	// Buffer so a failed read still gets a JSON error response
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf, c.Format()); err != nil {
		h.fail(w, "Failed to export snapshot", err)
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=clans."+c.Format())
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Failed to write export: %v", err)
	}
}

// Import loads a JSON or YAML snapshot from the request body
func (h *ClanHandler) Import(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, err := c.Parse(r.Body)
	if err != nil {
		h.writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.Load(r.Context(), snapshot)
	if err != nil {
		h.fail(w, "Failed to import snapshot", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// Purge deletes everything in the store
func (h *ClanHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Purge(r.Context()); err != nil {
		h.fail(w, "Failed to purge store", err)
		return
	}
	h.writeJSON(w, map[string]string{"status": "purged"}, http.StatusOK)
}
