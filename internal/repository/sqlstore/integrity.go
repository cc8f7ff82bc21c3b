package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"clanstore/internal/cache"
	"clanstore/internal/domain"
)

// ============================================================================
// Referential Integrity
// ============================================================================
//
// Foreign keys are declared in the schema, but every cascade and repair is
// also performed here inside the owning transaction so behaviour is the same
// on every engine and with foreign key enforcement switched off.

// cascadeClan removes a clan with its claims, chunk rows and perms, and
// detaches its members. Detached members lose their clan perm, and any link
// to the clan's perms is cleared.
func cascadeClan(ctx context.Context, q session, clanID uuid.UUID) error {
	id := clanID.String()
	steps := []struct {
		what  string
		query string
	}{
		{"clear member perm links", `UPDATE members SET clanPermID = NULL
			WHERE clanPermID IN (SELECT permID FROM perms WHERE clanID = ?)`},
		{"detach members", `UPDATE members SET clanID = NULL, clanPermID = NULL WHERE clanID = ?`},
		{"delete chunk rows", `DELETE FROM claimedChunks
			WHERE claimID IN (SELECT claimID FROM claims WHERE clanID = ?)`},
		{"delete claims", `DELETE FROM claims WHERE clanID = ?`},
		{"delete perms", `DELETE FROM perms WHERE clanID = ?`},
		{"delete clan", `DELETE FROM clans WHERE clanID = ?`},
	}
	for _, step := range steps {
		if _, err := q.exec(ctx, step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}
	return nil
}

// cascadeClaims deletes claims and their chunk index rows
func cascadeClaims(ctx context.Context, q session, claimIDs []uuid.UUID) error {
	if len(claimIDs) == 0 {
		return nil
	}
	set, err := q.d.stringSet(idStrings(claimIDs))
	if err != nil {
		return err
	}
	if _, err := q.exec(ctx, `DELETE FROM claimedChunks WHERE `+q.d.inSet("claimID"), set); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}
	if _, err := q.exec(ctx, `DELETE FROM claims WHERE `+q.d.inSet("claimID"), set); err != nil {
		return fmt.Errorf("delete claims: %w", err)
	}
	return nil
}

// replaceChunkRows rewrites the chunk index rows of one claim, one row per
// distinct key
func replaceChunkRows(ctx context.Context, q session, claimID uuid.UUID, keys []int64) error {
	id := claimID.String()
	if _, err := q.exec(ctx, `DELETE FROM claimedChunks WHERE claimID = ?`, id); err != nil {
		return fmt.Errorf("clear chunk rows: %w", err)
	}
	for _, key := range domain.SortChunkKeys(append([]int64(nil), keys...)) {
		if _, err := q.exec(ctx, `INSERT INTO claimedChunks (claimID, chunkKey) VALUES (?, ?)`, id, key); err != nil {
			return fmt.Errorf("insert chunk row: %w", err)
		}
	}
	return nil
}

// attachMembers links members to a clan, creating unknown members on the way
func attachMembers(ctx context.Context, q session, clanID uuid.UUID, memberIDs []uuid.UUID) error {
	for _, memberID := range memberIDs {
		_, err := q.exec(ctx, `INSERT INTO members (memberID, clanPermID, clanID) VALUES (?, NULL, ?)
			ON CONFLICT (memberID) DO UPDATE SET clanID = excluded.clanID`,
			memberID.String(), clanID.String())
		if err != nil {
			return fmt.Errorf("attach member: %w", err)
		}
	}
	return repairMemberPerms(ctx, q, memberIDs)
}

// detachMembers clears the clan link of members
func detachMembers(ctx context.Context, q session, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	set, err := q.d.stringSet(idStrings(memberIDs))
	if err != nil {
		return err
	}
	if _, err := q.exec(ctx, `UPDATE members SET clanID = NULL WHERE `+q.d.inSet("memberID"), set); err != nil {
		return fmt.Errorf("detach members: %w", err)
	}
	return repairMemberPerms(ctx, q, memberIDs)
}

// permOutOfScope matches member rows that hold a clan perm while outside every
// clan, or whose clan perm is missing or belongs to neither the member nor the
// member's clan
const permOutOfScope = `clanPermID IS NOT NULL AND (members.clanID IS NULL OR NOT EXISTS (
	SELECT 1 FROM perms p WHERE p.permID = members.clanPermID
	AND (p.memberID = members.memberID OR p.clanID = members.clanID)))`

// repairMemberPerms clears out-of-scope clan perm links on the given members
func repairMemberPerms(ctx context.Context, q session, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	set, err := q.d.stringSet(idStrings(memberIDs))
	if err != nil {
		return err
	}
	_, err = q.exec(ctx, `UPDATE members SET clanPermID = NULL WHERE `+q.d.inSet("memberID")+` AND `+permOutOfScope, set)
	if err != nil {
		return fmt.Errorf("repair member perms: %w", err)
	}
	return nil
}

// repairPermRefs clears member links to a perm that no longer covers them
func repairPermRefs(ctx context.Context, q session, permID uuid.UUID) error {
	_, err := q.exec(ctx, `UPDATE members SET clanPermID = NULL WHERE clanPermID = ? AND `+permOutOfScope, permID.String())
	if err != nil {
		return fmt.Errorf("repair perm references: %w", err)
	}
	return nil
}

// ownersOf returns the distinct non-null clanID values of the given rows
func ownersOf(ctx context.Context, q session, table, idColumn string, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	set, err := q.d.stringSet(idStrings(ids))
	if err != nil {
		return nil, err
	}
	return selectIDs(ctx, q, "clanID",
		`SELECT DISTINCT clanID FROM `+table+` WHERE clanID IS NOT NULL AND `+q.d.inSet(idColumn), set)
}

// ============================================================================
// Cache Invalidation
// ============================================================================

// invalidation collects the cached entities a write has made stale. It is
// applied after commit.
type invalidation struct {
	clans   []uuid.UUID
	claims  []uuid.UUID
	members []uuid.UUID
	perms   []uuid.UUID
}

func (inv *invalidation) clan(ids ...uuid.UUID)   { inv.clans = append(inv.clans, ids...) }
func (inv *invalidation) claim(ids ...uuid.UUID)  { inv.claims = append(inv.claims, ids...) }
func (inv *invalidation) member(ids ...uuid.UUID) { inv.members = append(inv.members, ids...) }
func (inv *invalidation) perm(ids ...uuid.UUID)   { inv.perms = append(inv.perms, ids...) }

// clanPtr records an optional clan identifier
func (inv *invalidation) clanPtr(id *uuid.UUID) {
	if id != nil {
		inv.clan(*id)
	}
}

func (inv *invalidation) apply(c *cache.Set) {
	for _, id := range inv.clans {
		c.Clans.Remove(id)
	}
	for _, id := range inv.claims {
		c.Claims.Remove(id)
	}
	for _, id := range inv.members {
		c.Members.Remove(id)
	}
	for _, id := range inv.perms {
		c.Perms.Remove(id)
	}
}
