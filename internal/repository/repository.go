package repository

import (
	"context"

	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// ClanRepository persists clans. Relation sets are rebuilt from storage.
type ClanRepository interface {
	ClanExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetClan(ctx context.Context, id uuid.UUID) (*domain.Clan, error)
	// CreateClan stores a new clan together with the bodies of its claims.
	// It is a no-op when the clan already exists.
	CreateClan(ctx context.Context, clan *domain.Clan, claims []*domain.Claim) error
	// UpdateClan rewrites an existing clan and its relation sets. It is a
	// no-op when the clan is absent.
	UpdateClan(ctx context.Context, clan *domain.Clan, claims []*domain.Claim) error
	DeleteClan(ctx context.Context, id uuid.UUID) error
	Clans(ctx context.Context) ([]*domain.Clan, error)
}

// ClaimRepository persists claims and their chunk index rows
type ClaimRepository interface {
	ClaimExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetClaim(ctx context.Context, id uuid.UUID) (*domain.Claim, error)
	CreateClaim(ctx context.Context, claim *domain.Claim) error
	UpdateClaim(ctx context.Context, claim *domain.Claim) error
	DeleteClaim(ctx context.Context, id uuid.UUID) error
	Claims(ctx context.Context) ([]*domain.Claim, error)
}

// MemberRepository persists members
type MemberRepository interface {
	MemberExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	CreateMember(ctx context.Context, member *domain.Member) error
	UpdateMember(ctx context.Context, member *domain.Member) error
	Members(ctx context.Context) ([]*domain.Member, error)
}

// PermRepository persists permission sets
type PermRepository interface {
	PermExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetPerm(ctx context.Context, id uuid.UUID) (*domain.Perm, error)
	CreatePerm(ctx context.Context, perm *domain.Perm) error
	UpdatePerm(ctx context.Context, perm *domain.Perm) error
	Perms(ctx context.Context) ([]*domain.Perm, error)
}

// ChunkIndex answers spatial lookups. Results always come from storage.
type ChunkIndex interface {
	ClaimsInChunk(ctx context.Context, chunkKey int64) ([]*domain.Claim, error)
	ClaimsNear(ctx context.Context, chunkKeys []int64) ([]*domain.Claim, error)
	ChunkKeys(ctx context.Context) ([]int64, error)
}

// Store is the complete entity store
type Store interface {
	ClanRepository
	ClaimRepository
	MemberRepository
	PermRepository
	ChunkIndex

	// Init connects and creates the schema. It is idempotent.
	Init(ctx context.Context) error
	// Purge drops every table and recreates the schema
	Purge(ctx context.Context) error
	// Close releases the connection and empties the cache
	Close() error
}
