package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrPermOwner is returned when a perm has both or neither of a clan and member owner
var ErrPermOwner = errors.New("perm must belong to exactly one of a clan or a member")

// Perm is a named permission rule set scoped to exactly one clan or one member.
//
// BreakBlocks is read as a whitelist when BreakBlocksWhitelist is true and as a
// blacklist otherwise.
type Perm struct {
	ID                   uuid.UUID  `json:"id" yaml:"id"`
	Name                 string     `json:"name" yaml:"name"`
	Description          string     `json:"description" yaml:"description"`
	ClanID               *uuid.UUID `json:"clan_id,omitempty" yaml:"clan_id,omitempty"`
	MemberID             *uuid.UUID `json:"member_id,omitempty" yaml:"member_id,omitempty"`
	BreakBlocks          []Material `json:"break_blocks" yaml:"break_blocks"`
	BreakBlocksWhitelist bool       `json:"break_blocks_whitelist" yaml:"break_blocks_whitelist"`
}

// NewClanPerm creates a perm owned by a clan. The empty whitelist allows nothing.
func NewClanPerm(clanID uuid.UUID, name, description string) *Perm {
	return &Perm{
		ID:                   uuid.New(),
		Name:                 name,
		Description:          description,
		ClanID:               IDPtr(clanID),
		BreakBlocks:          []Material{},
		BreakBlocksWhitelist: true,
	}
}

// NewMemberPerm creates a perm owned by a single member
func NewMemberPerm(memberID uuid.UUID, name, description string) *Perm {
	return &Perm{
		ID:                   uuid.New(),
		Name:                 name,
		Description:          description,
		MemberID:             IDPtr(memberID),
		BreakBlocks:          []Material{},
		BreakBlocksWhitelist: true,
	}
}

// Validate checks the identifier, the owner exclusivity and the rule set
func (p *Perm) Validate() error {
	if p.ID == uuid.Nil {
		return errors.New("perm id is required")
	}
	if (p.ClanID == nil) == (p.MemberID == nil) {
		return ErrPermOwner
	}
	for _, m := range p.BreakBlocks {
		if !m.Valid() {
			return errors.New("perm break rule has an invalid material")
		}
	}
	return nil
}

// CanBreak reports whether this perm allows blocks of material m to be broken
func (p *Perm) CanBreak(m Material) bool {
	listed := false
	for _, b := range p.BreakBlocks {
		if b == m {
			listed = true
			break
		}
	}
	return p.BreakBlocksWhitelist == listed
}

// ScopedTo reports whether the perm may serve as clan perm for a member of
// clanID. A member outside every clan (uuid.Nil) holds no clan perm.
func (p *Perm) ScopedTo(clanID, memberID uuid.UUID) bool {
	if clanID == uuid.Nil {
		return false
	}
	if p.ClanID != nil {
		return *p.ClanID == clanID
	}
	return p.MemberID != nil && *p.MemberID == memberID
}

// Clone returns a deep copy
func (p *Perm) Clone() *Perm {
	if p == nil {
		return nil
	}
	out := *p
	if p.ClanID != nil {
		out.ClanID = IDPtr(*p.ClanID)
	}
	if p.MemberID != nil {
		out.MemberID = IDPtr(*p.MemberID)
	}
	out.BreakBlocks = append([]Material{}, p.BreakBlocks...)
	return &out
}
