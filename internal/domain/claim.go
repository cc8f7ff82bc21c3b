package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Claim is an axis-aligned territorial volume in one world, owned by one clan
type Claim struct {
	ID        uuid.UUID   `json:"id" yaml:"id"`
	ClanID    uuid.UUID   `json:"clan_id" yaml:"clan_id"`
	World     string      `json:"world" yaml:"world"`
	Box       BoundingBox `json:"box" yaml:"box"`
	ChunkKeys []int64     `json:"chunk_keys" yaml:"chunk_keys"`
}

// NewClaim creates a claim with a fresh identifier whose chunk keys are derived from box
func NewClaim(clanID uuid.UUID, world string, box BoundingBox) *Claim {
	return &Claim{
		ID:        uuid.New(),
		ClanID:    clanID,
		World:     world,
		Box:       box,
		ChunkKeys: box.ChunkKeys(),
	}
}

// Validate checks the persisted fields of a claim
func (c *Claim) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("claim id is required")
	}
	if c.ClanID == uuid.Nil {
		return errors.New("claim clan id is required")
	}
	if strings.TrimSpace(c.World) == "" {
		return errors.New("claim world is required")
	}
	if err := c.Box.Validate(); err != nil {
		return fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if len(c.ChunkKeys) > MaxClaimChunks {
		return fmt.Errorf("claim %s: %w", c.ID, ErrBoxTooLarge)
	}
	return nil
}

// InChunk reports whether key is one of the claim's chunk keys
func (c *Claim) InChunk(key int64) bool {
	for _, k := range c.ChunkKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Overlaps reports whether two claims share any block in the same world
func (c *Claim) Overlaps(o *Claim) bool {
	return c.World == o.World && c.Box.Intersects(o.Box)
}

// Clone returns a deep copy
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.ChunkKeys = append([]int64{}, c.ChunkKeys...)
	return &out
}
