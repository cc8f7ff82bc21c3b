package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// ============================================================================
// Clan Operations
// ============================================================================

// ClanExists reports whether a clan is stored
func (s *Store) ClanExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache.Clans.Contains(id) {
		return true, nil
	}
	var found bool
	err := s.conn.Do(ctx, "clan exists", func(ctx context.Context, q session) error {
		var err error
		found, err = exists(ctx, q, "clans", "clanID", id)
		return err
	})
	return found, err
}

// GetClan returns a clan with its relation sets, or nil when absent
func (s *Store) GetClan(ctx context.Context, id uuid.UUID) (*domain.Clan, error) {
	if c, ok := s.cache.Clans.Get(id); ok {
		return c.Clone(), nil
	}
	var clan *domain.Clan
	err := s.conn.Do(ctx, "get clan", func(ctx context.Context, q session) error {
		var err error
		clan, err = loadClan(ctx, q, id)
		if err != nil || clan == nil {
			return err
		}
		cached := clan.Clone()
		q.onSuccess(func() { s.cache.Clans.Put(id, cached) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clan, nil
}

// CreateClan stores a new clan. Listed members are linked to it (and created
// when unknown), claim bodies are inserted and bare claim identifiers are
// re-pointed at the clan. Creating an existing clan is a no-op.
func (s *Store) CreateClan(ctx context.Context, clan *domain.Clan, claims []*domain.Claim) error {
	if err := validateClan(clan, claims); err != nil {
		return err
	}
	if s.cache.Clans.Contains(clan.ID) {
		return nil
	}
	return s.conn.Tx(ctx, "create clan", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "clans", "clanID", clan.ID)
		if err != nil || found {
			return err
		}
		_, err = q.exec(ctx, `INSERT INTO clans (`+clanColumns+`) VALUES (?, ?, ?, ?)`,
			clan.ID.String(), clan.Name, clan.Description, string(clan.Outline))
		if err != nil {
			return fmt.Errorf("insert clan: %w", err)
		}
		return s.syncClanRelations(ctx, q, clan, claims)
	})
}

// UpdateClan rewrites an existing clan. The clan's claims become exactly the
// union of clan.ClaimIDs and the given claim bodies; claims it owned outside
// that set are deleted. Its members become exactly clan.MemberIDs; members
// outside the set are detached. Updating an absent clan is a no-op.
func (s *Store) UpdateClan(ctx context.Context, clan *domain.Clan, claims []*domain.Claim) error {
	if err := validateClan(clan, claims); err != nil {
		return err
	}
	return s.conn.Tx(ctx, "update clan", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "clans", "clanID", clan.ID)
		if err != nil || !found {
			return err
		}
		_, err = q.exec(ctx, `UPDATE clans SET name = ?, description = ?, renderingOutline = ? WHERE clanID = ?`,
			clan.Name, clan.Description, string(clan.Outline), clan.ID.String())
		if err != nil {
			return fmt.Errorf("update clan: %w", err)
		}
		return s.syncClanRelations(ctx, q, clan, claims)
	})
}

// DeleteClan removes a clan, its claims and its perms and detaches its
// members. Deleting an absent clan is a no-op.
func (s *Store) DeleteClan(ctx context.Context, id uuid.UUID) error {
	return s.conn.Tx(ctx, "delete clan", func(ctx context.Context, q session) error {
		clan, err := loadClan(ctx, q, id)
		if err != nil || clan == nil {
			return err
		}
		if err := cascadeClan(ctx, q, id); err != nil {
			return err
		}

		var inv invalidation
		inv.clan(id)
		inv.claim(clan.ClaimIDs...)
		inv.member(clan.MemberIDs...)
		inv.perm(clan.PermIDs...)
		q.onSuccess(func() { inv.apply(s.cache) })
		return nil
	})
}

// Clans lists every clan with relation sets, bypassing the cache
func (s *Store) Clans(ctx context.Context) ([]*domain.Clan, error) {
	var clans []*domain.Clan
	err := s.conn.Do(ctx, "list clans", func(ctx context.Context, q session) error {
		rows, err := q.query(ctx, `SELECT `+clanColumns+` FROM clans ORDER BY clanID`)
		if err != nil {
			return err
		}
		var scanned []clanRow
		for rows.Next() {
			var r clanRow
			if err := rows.Scan(r.scanArgs()...); err != nil {
				rows.Close()
				return err
			}
			scanned = append(scanned, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		clans = make([]*domain.Clan, 0, len(scanned))
		for i := range scanned {
			clan, err := scanned[i].toDomain()
			if err != nil {
				return err
			}
			if err := loadClanRelations(ctx, q, clan); err != nil {
				return err
			}
			clans = append(clans, clan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clans, nil
}

// syncClanRelations makes the stored claim and member sets of a clan match
// clan and claims, then re-reads the clan for the cache
func (s *Store) syncClanRelations(ctx context.Context, q session, clan *domain.Clan, claims []*domain.Claim) error {
	var inv invalidation
	id := clan.ID

	// Claims
	bodyIDs := make([]uuid.UUID, 0, len(claims))
	for _, c := range claims {
		bodyIDs = append(bodyIDs, c.ID)
	}
	want := sortedUnion(clan.ClaimIDs, bodyIDs)
	current, err := selectIDs(ctx, q, "claimID", `SELECT claimID FROM claims WHERE clanID = ?`, id.String())
	if err != nil {
		return err
	}
	stale := difference(current, want)
	if err := cascadeClaims(ctx, q, stale); err != nil {
		return err
	}
	inv.claim(stale...)

	previous, err := ownersOf(ctx, q, "claims", "claimID", want)
	if err != nil {
		return err
	}
	inv.clan(previous...)

	for _, c := range claims {
		if err := upsertClaim(ctx, q, c); err != nil {
			return err
		}
	}
	if bare := difference(want, bodyIDs); len(bare) > 0 {
		set, err := q.d.stringSet(idStrings(bare))
		if err != nil {
			return err
		}
		if _, err := q.exec(ctx, `UPDATE claims SET clanID = ? WHERE `+q.d.inSet("claimID"), id.String(), set); err != nil {
			return fmt.Errorf("re-point claims: %w", err)
		}
	}
	inv.claim(want...)

	// Members
	wantMembers := sortedUnion(clan.MemberIDs)
	currentMembers, err := selectIDs(ctx, q, "memberID", `SELECT memberID FROM members WHERE clanID = ?`, id.String())
	if err != nil {
		return err
	}
	leaving := difference(currentMembers, wantMembers)
	if err := detachMembers(ctx, q, leaving); err != nil {
		return err
	}
	previous, err = ownersOf(ctx, q, "members", "memberID", wantMembers)
	if err != nil {
		return err
	}
	inv.clan(previous...)
	if err := attachMembers(ctx, q, id, wantMembers); err != nil {
		return err
	}
	inv.member(leaving...)
	inv.member(wantMembers...)

	stored, err := loadClan(ctx, q, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("clan %s vanished during write", id)
	}
	q.onSuccess(func() {
		inv.apply(s.cache)
		s.cache.Clans.Put(id, stored)
	})
	return nil
}

func validateClan(clan *domain.Clan, claims []*domain.Claim) error {
	if clan == nil {
		return invalidf("clan is nil")
	}
	if err := clan.Validate(); err != nil {
		return invalidf("%v", err)
	}
	for _, c := range claims {
		if c == nil {
			return invalidf("clan %s: claim is nil", clan.ID)
		}
		if err := c.Validate(); err != nil {
			return invalidf("clan %s: %v", clan.ID, err)
		}
		if c.ClanID != clan.ID {
			return invalidf("claim %s belongs to clan %s, not %s", c.ID, c.ClanID, clan.ID)
		}
	}
	return nil
}

// loadClan reads a clan and its relation sets; nil when absent
func loadClan(ctx context.Context, q session, id uuid.UUID) (*domain.Clan, error) {
	var r clanRow
	err := q.queryRow(ctx, `SELECT `+clanColumns+` FROM clans WHERE clanID = ?`, id.String()).Scan(r.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select clan: %w", err)
	}
	clan, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	if err := loadClanRelations(ctx, q, clan); err != nil {
		return nil, err
	}
	return clan, nil
}

func loadClanRelations(ctx context.Context, q session, clan *domain.Clan) error {
	id := clan.ID.String()
	var err error
	if clan.ClaimIDs, err = selectIDs(ctx, q, "claimID", `SELECT claimID FROM claims WHERE clanID = ?`, id); err != nil {
		return fmt.Errorf("select clan claims: %w", err)
	}
	if clan.MemberIDs, err = selectIDs(ctx, q, "memberID", `SELECT memberID FROM members WHERE clanID = ?`, id); err != nil {
		return fmt.Errorf("select clan members: %w", err)
	}
	if clan.PermIDs, err = selectIDs(ctx, q, "permID", `SELECT permID FROM perms WHERE clanID = ?`, id); err != nil {
		return fmt.Errorf("select clan perms: %w", err)
	}
	return nil
}
