package sqlstore

import (
	"database/sql"
	"fmt"

	"clanstore/internal/domain"
)

// ============================================================================
// Row Scanners
// ============================================================================
//
// Column order must match between each xColumns constant, the scanArgs()
// slice and the insert/update argument lists built from the same row type.
// Decode failures are returned as plain errors; the caller's connection
// wrapper turns them into fatal errors.

const clanColumns = `clanID, name, description, renderingOutline`

// clanRow holds the scalar columns of a clan
type clanRow struct {
	ID          string
	Name        string
	Description string
	Outline     string
}

func (r *clanRow) scanArgs() []any {
	return []any{&r.ID, &r.Name, &r.Description, &r.Outline}
}

// toDomain converts the row; relation sets are filled by the caller
func (r *clanRow) toDomain() (*domain.Clan, error) {
	id, err := parseID("clanID", r.ID)
	if err != nil {
		return nil, err
	}
	outline, err := domain.ParseMaterial(r.Outline)
	if err != nil {
		return nil, fmt.Errorf("decode renderingOutline: %w", err)
	}
	return &domain.Clan{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Outline:     outline,
	}, nil
}

const claimColumns = `claimID, worldName, X1, X2, Y1, Y2, Z1, Z2, clanID`

// claimRow holds the scalar columns of a claim
type claimRow struct {
	ID     string
	World  string
	X1, X2 float64
	Y1, Y2 float64
	Z1, Z2 float64
	ClanID string
}

func (r *claimRow) scanArgs() []any {
	return []any{
		&r.ID,     // 1
		&r.World,  // 2
		&r.X1,     // 3
		&r.X2,     // 4
		&r.Y1,     // 5
		&r.Y2,     // 6
		&r.Z1,     // 7
		&r.Z2,     // 8
		&r.ClanID, // 9
	}
}

func claimArgs(c *domain.Claim) []any {
	b := c.Box
	return []any{c.ID.String(), c.World, b.X1, b.X2, b.Y1, b.Y2, b.Z1, b.Z2, c.ClanID.String()}
}

// toDomain converts the row; chunk keys are filled by the caller
func (r *claimRow) toDomain() (*domain.Claim, error) {
	id, err := parseID("claimID", r.ID)
	if err != nil {
		return nil, err
	}
	clanID, err := parseID("clanID", r.ClanID)
	if err != nil {
		return nil, err
	}
	return &domain.Claim{
		ID:     id,
		ClanID: clanID,
		World:  r.World,
		Box: domain.BoundingBox{
			X1: r.X1, X2: r.X2,
			Y1: r.Y1, Y2: r.Y2,
			Z1: r.Z1, Z2: r.Z2,
		},
	}, nil
}

const memberColumns = `memberID, clanPermID, clanID`

// memberRow holds the columns of a member
type memberRow struct {
	ID         string
	ClanPermID sql.NullString
	ClanID     sql.NullString
}

func (r *memberRow) scanArgs() []any {
	return []any{&r.ID, &r.ClanPermID, &r.ClanID}
}

func (r *memberRow) toDomain() (*domain.Member, error) {
	id, err := parseID("memberID", r.ID)
	if err != nil {
		return nil, err
	}
	permID, err := nullToID("clanPermID", r.ClanPermID)
	if err != nil {
		return nil, err
	}
	clanID, err := nullToID("clanID", r.ClanID)
	if err != nil {
		return nil, err
	}
	return &domain.Member{ID: id, ClanID: clanID, ClanPermID: permID}, nil
}

const permColumns = `permID, name, description, breakBlocks, breakBlocksWhitelist, clanID, memberID`

// permRow holds the columns of a perm
type permRow struct {
	ID          string
	Name        string
	Description string
	BreakBlocks string
	Whitelist   int64
	ClanID      sql.NullString
	MemberID    sql.NullString
}

func (r *permRow) scanArgs() []any {
	return []any{
		&r.ID,          // 1
		&r.Name,        // 2
		&r.Description, // 3
		&r.BreakBlocks, // 4
		&r.Whitelist,   // 5
		&r.ClanID,      // 6
		&r.MemberID,    // 7
	}
}

func permArgs(p *domain.Perm) ([]any, error) {
	blocks, err := marshalMaterials(p.BreakBlocks)
	if err != nil {
		return nil, fmt.Errorf("encode breakBlocks: %w", err)
	}
	return []any{
		p.ID.String(), p.Name, p.Description, blocks,
		boolToInt(p.BreakBlocksWhitelist), idToNull(p.ClanID), idToNull(p.MemberID),
	}, nil
}

func (r *permRow) toDomain() (*domain.Perm, error) {
	id, err := parseID("permID", r.ID)
	if err != nil {
		return nil, err
	}
	clanID, err := nullToID("clanID", r.ClanID)
	if err != nil {
		return nil, err
	}
	memberID, err := nullToID("memberID", r.MemberID)
	if err != nil {
		return nil, err
	}
	blocks, err := unmarshalMaterials(r.BreakBlocks)
	if err != nil {
		return nil, err
	}
	return &domain.Perm{
		ID:                   id,
		Name:                 r.Name,
		Description:          r.Description,
		ClanID:               clanID,
		MemberID:             memberID,
		BreakBlocks:          blocks,
		BreakBlocksWhitelist: r.Whitelist != 0,
	}, nil
}
