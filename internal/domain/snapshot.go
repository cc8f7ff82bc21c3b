package domain

import "github.com/google/uuid"

// Snapshot is a complete copy of the stored entities, used for export and
// bulk import
type Snapshot struct {
	Clans   []*Clan   `json:"clans"`
	Claims  []*Claim  `json:"claims"`
	Members []*Member `json:"members"`
	Perms   []*Perm   `json:"perms"`
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Clans:   []*Clan{},
		Claims:  []*Claim{},
		Members: []*Member{},
		Perms:   []*Perm{},
	}
}

// ClaimsOf returns the snapshot's claims owned by clanID
func (s *Snapshot) ClaimsOf(clanID uuid.UUID) []*Claim {
	var out []*Claim
	for _, c := range s.Claims {
		if c.ClanID == clanID {
			out = append(out, c)
		}
	}
	return out
}
