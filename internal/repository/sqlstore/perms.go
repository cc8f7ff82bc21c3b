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
// Perm Operations
// ============================================================================

// PermExists reports whether a perm is stored
func (s *Store) PermExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache.Perms.Contains(id) {
		return true, nil
	}
	var found bool
	err := s.conn.Do(ctx, "perm exists", func(ctx context.Context, q session) error {
		var err error
		found, err = exists(ctx, q, "perms", "permID", id)
		return err
	})
	return found, err
}

// GetPerm returns a perm, or nil when absent
func (s *Store) GetPerm(ctx context.Context, id uuid.UUID) (*domain.Perm, error) {
	if p, ok := s.cache.Perms.Get(id); ok {
		return p.Clone(), nil
	}
	var perm *domain.Perm
	err := s.conn.Do(ctx, "get perm", func(ctx context.Context, q session) error {
		var err error
		perm, err = loadPerm(ctx, q, id)
		if err != nil || perm == nil {
			return err
		}
		cached := perm.Clone()
		q.onSuccess(func() { s.cache.Perms.Put(id, cached) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// CreatePerm stores a perm owned by exactly one existing clan or member.
// Creating an existing perm is a no-op.
func (s *Store) CreatePerm(ctx context.Context, perm *domain.Perm) error {
	if err := validatePerm(perm); err != nil {
		return err
	}
	if s.cache.Perms.Contains(perm.ID) {
		return nil
	}
	return s.conn.Tx(ctx, "create perm", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "perms", "permID", perm.ID)
		if err != nil || found {
			return err
		}
		if err := checkPermOwner(ctx, q, perm); err != nil {
			return err
		}
		args, err := permArgs(perm)
		if err != nil {
			return err
		}
		if _, err := q.exec(ctx, `INSERT INTO perms (`+permColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("insert perm: %w", err)
		}
		return s.afterPermWrite(ctx, q, perm, nil)
	})
}

// UpdatePerm rewrites an existing perm. Members whose clan perm it no longer
// covers lose the link. Updating an absent perm is a no-op.
func (s *Store) UpdatePerm(ctx context.Context, perm *domain.Perm) error {
	if err := validatePerm(perm); err != nil {
		return err
	}
	return s.conn.Tx(ctx, "update perm", func(ctx context.Context, q session) error {
		previous, err := loadPerm(ctx, q, perm.ID)
		if err != nil || previous == nil {
			return err
		}
		if err := checkPermOwner(ctx, q, perm); err != nil {
			return err
		}
		args, err := permArgs(perm)
		if err != nil {
			return err
		}
		_, err = q.exec(ctx, `UPDATE perms SET name = ?, description = ?, breakBlocks = ?,
			breakBlocksWhitelist = ?, clanID = ?, memberID = ? WHERE permID = ?`,
			append(args[1:], perm.ID.String())...)
		if err != nil {
			return fmt.Errorf("update perm: %w", err)
		}
		return s.afterPermWrite(ctx, q, perm, previous)
	})
}

// Perms lists every perm, bypassing the cache
func (s *Store) Perms(ctx context.Context) ([]*domain.Perm, error) {
	var perms []*domain.Perm
	err := s.conn.Do(ctx, "list perms", func(ctx context.Context, q session) error {
		rows, err := q.query(ctx, `SELECT `+permColumns+` FROM perms ORDER BY permID`)
		if err != nil {
			return err
		}
		defer rows.Close()

		perms = []*domain.Perm{}
		for rows.Next() {
			var r permRow
			if err := rows.Scan(r.scanArgs()...); err != nil {
				return err
			}
			p, err := r.toDomain()
			if err != nil {
				return err
			}
			perms = append(perms, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func validatePerm(perm *domain.Perm) error {
	if perm == nil {
		return invalidf("perm is nil")
	}
	if err := perm.Validate(); err != nil {
		return invalidf("perm %s: %v", perm.ID, err)
	}
	return nil
}

func checkPermOwner(ctx context.Context, q session, perm *domain.Perm) error {
	table, column, owner := "clans", "clanID", perm.ClanID
	if owner == nil {
		table, column, owner = "members", "memberID", perm.MemberID
	}
	found, err := exists(ctx, q, table, column, *owner)
	if err != nil {
		return err
	}
	if !found {
		return invalidf("perm %s: owner %s does not exist", perm.ID, *owner)
	}
	return nil
}

// afterPermWrite repairs member links to the perm and queues the cache update
func (s *Store) afterPermWrite(ctx context.Context, q session, perm *domain.Perm, previous *domain.Perm) error {
	var inv invalidation
	inv.clanPtr(perm.ClanID)
	if previous != nil {
		inv.clanPtr(previous.ClanID)

		holders, err := selectIDs(ctx, q, "memberID", `SELECT memberID FROM members WHERE clanPermID = ?`, perm.ID.String())
		if err != nil {
			return err
		}
		if err := repairPermRefs(ctx, q, perm.ID); err != nil {
			return err
		}
		inv.member(holders...)
	}

	stored, err := loadPerm(ctx, q, perm.ID)
	if err != nil {
		return err
	}
	q.onSuccess(func() {
		inv.apply(s.cache)
		s.cache.Perms.Put(stored.ID, stored)
	})
	return nil
}

// loadPerm reads one perm; nil when absent
func loadPerm(ctx context.Context, q session, id uuid.UUID) (*domain.Perm, error) {
	var r permRow
	err := q.queryRow(ctx, `SELECT `+permColumns+` FROM perms WHERE permID = ?`, id.String()).Scan(r.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select perm: %w", err)
	}
	return r.toDomain()
}
