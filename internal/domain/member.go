package domain

import "github.com/google/uuid"

// Member is the persistent record of one player. The member ID is the player ID.
type Member struct {
	ID         uuid.UUID  `json:"id" yaml:"id"`
	ClanID     *uuid.UUID `json:"clan_id,omitempty" yaml:"clan_id,omitempty"`
	ClanPermID *uuid.UUID `json:"clan_perm_id,omitempty" yaml:"clan_perm_id,omitempty"`
}

// NewMember creates an unattached member for a player
func NewMember(playerID uuid.UUID) *Member {
	return &Member{ID: playerID}
}

// InClan reports whether the member belongs to a clan
func (m *Member) InClan() bool {
	return m.ClanID != nil
}

// Clone returns a deep copy
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	out := Member{ID: m.ID}
	if m.ClanID != nil {
		out.ClanID = IDPtr(*m.ClanID)
	}
	if m.ClanPermID != nil {
		out.ClanPermID = IDPtr(*m.ClanPermID)
	}
	return &out
}
