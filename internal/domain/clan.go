package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Clan is a named group owning claims, members and permission sets.
//
// ClaimIDs, MemberIDs and PermIDs are relations: they mirror the clanID column
// of the claims, members and perms tables and are rebuilt from storage on read.
type Clan struct {
	ID          uuid.UUID   `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Outline     Material    `json:"outline" yaml:"outline"`
	ClaimIDs    []uuid.UUID `json:"claim_ids" yaml:"claim_ids"`
	MemberIDs   []uuid.UUID `json:"member_ids" yaml:"member_ids"`
	PermIDs     []uuid.UUID `json:"perm_ids" yaml:"perm_ids"`
}

// NewClan creates a clan with a fresh identifier and empty relation sets
func NewClan(name, description string, outline Material) *Clan {
	if outline == "" {
		outline = DefaultOutline
	}
	return &Clan{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Outline:     outline,
		ClaimIDs:    []uuid.UUID{},
		MemberIDs:   []uuid.UUID{},
		PermIDs:     []uuid.UUID{},
	}
}

// Validate checks the persisted fields of a clan
func (c *Clan) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("clan id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("clan name is required")
	}
	if !c.Outline.Valid() {
		return errors.New("clan outline material is invalid")
	}
	return nil
}

// HasMember reports whether the member belongs to this clan
func (c *Clan) HasMember(memberID uuid.UUID) bool {
	return ContainsID(c.MemberIDs, memberID)
}

// Clone returns a deep copy so callers can't mutate cached relation slices
func (c *Clan) Clone() *Clan {
	if c == nil {
		return nil
	}
	out := *c
	out.ClaimIDs = append([]uuid.UUID{}, c.ClaimIDs...)
	out.MemberIDs = append([]uuid.UUID{}, c.MemberIDs...)
	out.PermIDs = append([]uuid.UUID{}, c.PermIDs...)
	return &out
}
