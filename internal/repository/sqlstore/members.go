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
// Member Operations
// ============================================================================

// MemberExists reports whether a member is stored
func (s *Store) MemberExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache.Members.Contains(id) {
		return true, nil
	}
	var found bool
	err := s.conn.Do(ctx, "member exists", func(ctx context.Context, q session) error {
		var err error
		found, err = exists(ctx, q, "members", "memberID", id)
		return err
	})
	return found, err
}

// GetMember returns a member, or nil when absent
func (s *Store) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	if m, ok := s.cache.Members.Get(id); ok {
		return m.Clone(), nil
	}
	var member *domain.Member
	err := s.conn.Do(ctx, "get member", func(ctx context.Context, q session) error {
		var err error
		member, err = loadMember(ctx, q, id)
		if err != nil || member == nil {
			return err
		}
		cached := member.Clone()
		q.onSuccess(func() { s.cache.Members.Put(id, cached) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// CreateMember stores a member. Creating an existing member is a no-op.
func (s *Store) CreateMember(ctx context.Context, member *domain.Member) error {
	if member == nil || member.ID == uuid.Nil {
		return invalidf("member id is required")
	}
	if s.cache.Members.Contains(member.ID) {
		return nil
	}
	return s.conn.Tx(ctx, "create member", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "members", "memberID", member.ID)
		if err != nil || found {
			return err
		}
		if err := checkMemberLinks(ctx, q, member); err != nil {
			return err
		}
		_, err = q.exec(ctx, `INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?)`,
			member.ID.String(), idToNull(member.ClanPermID), idToNull(member.ClanID))
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		return s.afterMemberWrite(q, member, nil)
	})
}

// UpdateMember rewrites an existing member's clan and clan perm links.
// Updating an absent member is a no-op.
func (s *Store) UpdateMember(ctx context.Context, member *domain.Member) error {
	if member == nil || member.ID == uuid.Nil {
		return invalidf("member id is required")
	}
	return s.conn.Tx(ctx, "update member", func(ctx context.Context, q session) error {
		previous, err := loadMember(ctx, q, member.ID)
		if err != nil || previous == nil {
			return err
		}
		if err := checkMemberLinks(ctx, q, member); err != nil {
			return err
		}
		_, err = q.exec(ctx, `UPDATE members SET clanPermID = ?, clanID = ? WHERE memberID = ?`,
			idToNull(member.ClanPermID), idToNull(member.ClanID), member.ID.String())
		if err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return s.afterMemberWrite(q, member, previous.ClanID)
	})
}

// Members lists every member, bypassing the cache
func (s *Store) Members(ctx context.Context) ([]*domain.Member, error) {
	var members []*domain.Member
	err := s.conn.Do(ctx, "list members", func(ctx context.Context, q session) error {
		rows, err := q.query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY memberID`)
		if err != nil {
			return err
		}
		defer rows.Close()

		members = []*domain.Member{}
		for rows.Next() {
			var r memberRow
			if err := rows.Scan(r.scanArgs()...); err != nil {
				return err
			}
			m, err := r.toDomain()
			if err != nil {
				return err
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// checkMemberLinks enforces that the clan exists and that a clan perm is held
// only inside a clan and belongs to the member or to the member's clan
func checkMemberLinks(ctx context.Context, q session, member *domain.Member) error {
	if member.ClanID != nil {
		found, err := exists(ctx, q, "clans", "clanID", *member.ClanID)
		if err != nil {
			return err
		}
		if !found {
			return invalidf("member %s: clan %s does not exist", member.ID, *member.ClanID)
		}
	}
	if member.ClanPermID == nil {
		return nil
	}
	if member.ClanID == nil {
		return invalidf("member %s: a clan perm requires a clan", member.ID)
	}
	perm, err := loadPerm(ctx, q, *member.ClanPermID)
	if err != nil {
		return err
	}
	if perm == nil {
		return invalidf("member %s: perm %s does not exist", member.ID, *member.ClanPermID)
	}
	if !perm.ScopedTo(*member.ClanID, member.ID) {
		return invalidf("member %s: perm %s belongs to neither the member nor its clan", member.ID, perm.ID)
	}
	return nil
}

func (s *Store) afterMemberWrite(q session, member *domain.Member, previousClan *uuid.UUID) error {
	var inv invalidation
	inv.clanPtr(previousClan)
	inv.clanPtr(member.ClanID)
	stored := member.Clone()
	q.onSuccess(func() {
		inv.apply(s.cache)
		s.cache.Members.Put(stored.ID, stored)
	})
	return nil
}

// loadMember reads one member; nil when absent
func loadMember(ctx context.Context, q session, id uuid.UUID) (*domain.Member, error) {
	var r memberRow
	err := q.queryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE memberID = ?`, id.String()).Scan(r.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select member: %w", err)
	}
	return r.toDomain()
}
