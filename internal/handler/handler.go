package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"clanstore/internal/domain"
	"clanstore/internal/repository/sqlstore"
	"clanstore/internal/service"
)

// ClanHandler handles the admin API requests
type ClanHandler struct {
	svc *service.ClanService
}

// NewClanHandler creates a new clan handler
func NewClanHandler(svc *service.ClanService) *ClanHandler {
	return &ClanHandler{svc: svc}
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Register adds the API routes to mux
func (h *ClanHandler) Register(mux *http.ServeMux) {
	// Clans
	mux.HandleFunc("GET /api/clans", h.ListClans)
	mux.HandleFunc("POST /api/clans", h.FoundClan)
	mux.HandleFunc("GET /api/clans/{id}", h.GetClan)
	mux.HandleFunc("PUT /api/clans/{id}", h.UpdateClan)
	mux.HandleFunc("DELETE /api/clans/{id}", h.DisbandClan)
	mux.HandleFunc("POST /api/clans/{id}/members", h.JoinClan)
	mux.HandleFunc("POST /api/clans/{id}/claims", h.ClaimArea)

	// Claims and the chunk index
	mux.HandleFunc("GET /api/claims", h.ListClaims)
	mux.HandleFunc("GET /api/claims/at", h.ClaimAt)
	mux.HandleFunc("GET /api/claims/near", h.NearbyClaims)
	mux.HandleFunc("GET /api/claims/{id}", h.GetClaim)
	mux.HandleFunc("DELETE /api/claims/{id}", h.ReleaseClaim)
	mux.HandleFunc("GET /api/chunks", h.ListChunks)
	mux.HandleFunc("GET /api/chunks/{key}/claims", h.ChunkClaims)

	// Members
	mux.HandleFunc("GET /api/members", h.ListMembers)
	mux.HandleFunc("GET /api/members/{id}", h.GetMember)
	mux.HandleFunc("DELETE /api/members/{id}/clan", h.LeaveClan)
	mux.HandleFunc("PUT /api/members/{id}/perm", h.AssignPerm)
	mux.HandleFunc("GET /api/members/{id}/can-break", h.CanBreak)

	// Perms
	mux.HandleFunc("GET /api/perms", h.ListPerms)
	mux.HandleFunc("POST /api/perms", h.CreatePerm)
	mux.HandleFunc("GET /api/perms/{id}", h.GetPerm)
	mux.HandleFunc("PUT /api/perms/{id}", h.UpdatePerm)

	// Snapshots
	mux.HandleFunc("GET /api/export/{format}", h.Export)
	mux.HandleFunc("POST /api/import/{format}", h.Import)
	mux.HandleFunc("DELETE /api/store", h.Purge)
}

// Helper methods

func (h *ClanHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *ClanHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// fail writes err with the status its kind maps to. Server-side failures are
// logged.
func (h *ClanHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s: %v", msg, err)
	}
	h.writeError(w, msg, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyInClan),
		errors.Is(err, service.ErrNotInClan):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalid), errors.Is(err, sqlstore.ErrInvalid):
		return http.StatusBadRequest
	case sqlstore.IsFatal(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses the {name} path segment as a UUID, writing a 400 when it isn't one
func (h *ClanHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.writeError(w, "Invalid "+name, err.Error(), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ClanHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// position reads x, y and z query parameters; absent ones are zero
type position struct {
	world   string
	x, y, z float64
}

func (h *ClanHandler) queryPosition(w http.ResponseWriter, r *http.Request) (position, bool) {
	q := r.URL.Query()
	p := position{world: q.Get("world")}
	if p.world == "" {
		h.writeError(w, "Invalid position", "world is required", http.StatusBadRequest)
		return p, false
	}
	for name, dst := range map[string]*float64{"x": &p.x, "y": &p.y, "z": &p.z} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, "Invalid position", name+": "+err.Error(), http.StatusBadRequest)
			return p, false
		}
		*dst = v
	}
	return p, true
}

// material parses an optional material token, returning fallback when raw is empty
func (h *ClanHandler) material(w http.ResponseWriter, raw string, fallback domain.Material) (domain.Material, bool) {
	if raw == "" {
		return fallback, true
	}
	m, err := domain.ParseMaterial(raw)
	if err != nil {
		h.writeError(w, "Invalid material", err.Error(), http.StatusBadRequest)
		return "", false
	}
	return m, true
}
