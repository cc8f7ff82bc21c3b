package sqlstore

import (
	"context"

	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// ============================================================================
// Chunk Index
// ============================================================================

// ClaimsInChunk returns every claim indexed under chunkKey, sorted by id.
// The claim set always comes from storage.
func (s *Store) ClaimsInChunk(ctx context.Context, chunkKey int64) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := s.conn.Do(ctx, "claims in chunk", func(ctx context.Context, q session) error {
		ids, err := selectIDs(ctx, q, "claimID",
			`SELECT DISTINCT claimID FROM claimedChunks WHERE chunkKey = ?`, chunkKey)
		if err != nil {
			return err
		}
		claims, err = s.hydrateClaims(ctx, q, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ClaimsNear returns every claim indexed under any of chunkKeys, sorted by id
func (s *Store) ClaimsNear(ctx context.Context, chunkKeys []int64) ([]*domain.Claim, error) {
	if len(chunkKeys) == 0 {
		return []*domain.Claim{}, nil
	}
	var claims []*domain.Claim
	err := s.conn.Do(ctx, "claims near", func(ctx context.Context, q session) error {
		set, err := q.d.intSet(domain.SortChunkKeys(append([]int64(nil), chunkKeys...)))
		if err != nil {
			return err
		}
		ids, err := selectIDs(ctx, q, "claimID",
			`SELECT DISTINCT claimID FROM claimedChunks WHERE `+q.d.inSet("chunkKey"), set)
		if err != nil {
			return err
		}
		claims, err = s.hydrateClaims(ctx, q, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ChunkKeys returns every distinct claimed chunk key in ascending order
func (s *Store) ChunkKeys(ctx context.Context) ([]int64, error) {
	var keys []int64
	err := s.conn.Do(ctx, "chunk keys", func(ctx context.Context, q session) error {
		var err error
		keys, err = selectKeys(ctx, q, `SELECT DISTINCT chunkKey FROM claimedChunks`)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) hydrateClaims(ctx context.Context, q session, ids []uuid.UUID) ([]*domain.Claim, error) {
	claims := make([]*domain.Claim, 0, len(ids))
	for _, id := range ids {
		c, err := s.claimLocked(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			claims = append(claims, c)
		}
	}
	return claims, nil
}
