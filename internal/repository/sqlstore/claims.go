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
// Claim Operations
// ============================================================================

// ClaimExists reports whether a claim is stored
func (s *Store) ClaimExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache.Claims.Contains(id) {
		return true, nil
	}
	var found bool
	err := s.conn.Do(ctx, "claim exists", func(ctx context.Context, q session) error {
		var err error
		found, err = exists(ctx, q, "claims", "claimID", id)
		return err
	})
	return found, err
}

// GetClaim returns a claim with its chunk keys, or nil when absent
func (s *Store) GetClaim(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	if c, ok := s.cache.Claims.Get(id); ok {
		return c.Clone(), nil
	}
	var claim *domain.Claim
	err := s.conn.Do(ctx, "get claim", func(ctx context.Context, q session) error {
		var err error
		claim, err = s.claimLocked(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// CreateClaim stores a claim and its chunk index rows. The owning clan must
// exist. Creating an existing claim is a no-op.
func (s *Store) CreateClaim(ctx context.Context, claim *domain.Claim) error {
	if err := validateClaim(claim); err != nil {
		return err
	}
	if s.cache.Claims.Contains(claim.ID) {
		return nil
	}
	return s.conn.Tx(ctx, "create claim", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "claims", "claimID", claim.ID)
		if err != nil || found {
			return err
		}
		return s.writeClaim(ctx, q, claim)
	})
}

// UpdateClaim rewrites an existing claim and its chunk index rows. Updating
// an absent claim is a no-op.
func (s *Store) UpdateClaim(ctx context.Context, claim *domain.Claim) error {
	if err := validateClaim(claim); err != nil {
		return err
	}
	return s.conn.Tx(ctx, "update claim", func(ctx context.Context, q session) error {
		found, err := exists(ctx, q, "claims", "claimID", claim.ID)
		if err != nil || !found {
			return err
		}
		return s.writeClaim(ctx, q, claim)
	})
}

// DeleteClaim removes a claim and its chunk index rows
func (s *Store) DeleteClaim(ctx context.Context, id uuid.UUID) error {
	return s.conn.Tx(ctx, "delete claim", func(ctx context.Context, q session) error {
		owners, err := ownersOf(ctx, q, "claims", "claimID", []uuid.UUID{id})
		if err != nil {
			return err
		}
		if err := cascadeClaims(ctx, q, []uuid.UUID{id}); err != nil {
			return err
		}
		var inv invalidation
		inv.claim(id)
		inv.clan(owners...)
		q.onSuccess(func() { inv.apply(s.cache) })
		return nil
	})
}

// Claims lists every claim with chunk keys, bypassing the cache
func (s *Store) Claims(ctx context.Context) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := s.conn.Do(ctx, "list claims", func(ctx context.Context, q session) error {
		var err error
		claims, err = scanClaims(ctx, q, `SELECT `+claimColumns+` FROM claims ORDER BY claimID`)
		if err != nil {
			return err
		}

		keys, err := allChunkRows(ctx, q)
		if err != nil {
			return err
		}
		for _, c := range claims {
			c.ChunkKeys = domain.SortChunkKeys(keys[c.ID])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// writeClaim checks the owner and upserts the claim, invalidating the clans
// whose claim sets change
func (s *Store) writeClaim(ctx context.Context, q session, claim *domain.Claim) error {
	owner, err := exists(ctx, q, "clans", "clanID", claim.ClanID)
	if err != nil {
		return err
	}
	if !owner {
		return invalidf("claim %s: clan %s does not exist", claim.ID, claim.ClanID)
	}

	var inv invalidation
	previous, err := ownersOf(ctx, q, "claims", "claimID", []uuid.UUID{claim.ID})
	if err != nil {
		return err
	}
	inv.clan(previous...)
	inv.clan(claim.ClanID)

	if err := upsertClaim(ctx, q, claim); err != nil {
		return err
	}
	stored, err := loadClaim(ctx, q, claim.ID)
	if err != nil {
		return err
	}
	q.onSuccess(func() {
		inv.apply(s.cache)
		s.cache.Claims.Put(stored.ID, stored)
	})
	return nil
}

// claimLocked serves a claim from the cache or storage, caching a miss
func (s *Store) claimLocked(ctx context.Context, q session, id uuid.UUID) (*domain.Claim, error) {
	if c, ok := s.cache.Claims.Get(id); ok {
		return c.Clone(), nil
	}
	claim, err := loadClaim(ctx, q, id)
	if err != nil || claim == nil {
		return nil, err
	}
	cached := claim.Clone()
	q.onSuccess(func() { s.cache.Claims.Put(id, cached) })
	return claim, nil
}

func validateClaim(claim *domain.Claim) error {
	if claim == nil {
		return invalidf("claim is nil")
	}
	if err := claim.Validate(); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

// upsertClaim inserts or rewrites a claim row and replaces its chunk rows.
// A claim without chunk keys is indexed by the chunks its box overlaps.
func upsertClaim(ctx context.Context, q session, claim *domain.Claim) error {
	found, err := exists(ctx, q, "claims", "claimID", claim.ID)
	if err != nil {
		return err
	}
	if found {
		_, err = q.exec(ctx, `UPDATE claims SET worldName = ?, X1 = ?, X2 = ?, Y1 = ?, Y2 = ?, Z1 = ?, Z2 = ?, clanID = ?
			WHERE claimID = ?`, append(claimArgs(claim)[1:], claim.ID.String())...)
	} else {
		_, err = q.exec(ctx, `INSERT INTO claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, claimArgs(claim)...)
	}
	if err != nil {
		return fmt.Errorf("write claim: %w", err)
	}

	keys := claim.ChunkKeys
	if len(keys) == 0 {
		keys = claim.Box.ChunkKeys()
	}
	return replaceChunkRows(ctx, q, claim.ID, keys)
}

// loadClaim reads a claim and its chunk keys; nil when absent
func loadClaim(ctx context.Context, q session, id uuid.UUID) (*domain.Claim, error) {
	var r claimRow
	err := q.queryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE claimID = ?`, id.String()).Scan(r.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select claim: %w", err)
	}
	claim, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	claim.ChunkKeys, err = selectKeys(ctx, q, `SELECT DISTINCT chunkKey FROM claimedChunks WHERE claimID = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select claim chunks: %w", err)
	}
	return claim, nil
}

// scanClaims reads claim rows without chunk keys
func scanClaims(ctx context.Context, q session, query string, args ...any) ([]*domain.Claim, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []*domain.Claim{}
	for rows.Next() {
		var r claimRow
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, err
		}
		claim, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// allChunkRows groups every chunk index row by claim
func allChunkRows(ctx context.Context, q session) (map[uuid.UUID][]int64, error) {
	rows, err := q.query(ctx, `SELECT claimID, chunkKey FROM claimedChunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]int64)
	for rows.Next() {
		var (
			claimID string
			key     int64
		)
		if err := rows.Scan(&claimID, &key); err != nil {
			return nil, err
		}
		id, err := parseID("claimID", claimID)
		if err != nil {
			return nil, err
		}
		out[id] = append(out[id], key)
	}
	return out, rows.Err()
}
