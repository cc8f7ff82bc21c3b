package cache

import (
	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// Entity kinds, used as cache names and metric labels
const (
	KindClan   = "clan"
	KindClaim  = "claim"
	KindMember = "member"
	KindPerm   = "perm"
)

// Capacities sets the size of each entity cache
type Capacities struct {
	Clans   int
	Claims  int
	Members int
	Perms   int
}

// Uniform returns capacities with n entries for every kind
func Uniform(n int) Capacities {
	return Capacities{Clans: n, Claims: n, Members: n, Perms: n}
}

// Set holds the four entity caches owned by one store
type Set struct {
	Clans   *Cache[uuid.UUID, *domain.Clan]
	Claims  *Cache[uuid.UUID, *domain.Claim]
	Members *Cache[uuid.UUID, *domain.Member]
	Perms   *Cache[uuid.UUID, *domain.Perm]
}

// NewSet creates the entity caches
func NewSet(caps Capacities, observer Observer) (*Set, error) {
	clans, err := New[uuid.UUID, *domain.Clan](KindClan, caps.Clans, observer)
	if err != nil {
		return nil, err
	}
	claims, err := New[uuid.UUID, *domain.Claim](KindClaim, caps.Claims, observer)
	if err != nil {
		return nil, err
	}
	members, err := New[uuid.UUID, *domain.Member](KindMember, caps.Members, observer)
	if err != nil {
		return nil, err
	}
	perms, err := New[uuid.UUID, *domain.Perm](KindPerm, caps.Perms, observer)
	if err != nil {
		return nil, err
	}
	return &Set{Clans: clans, Claims: claims, Members: members, Perms: perms}, nil
}

// Purge empties every cache
func (s *Set) Purge() {
	s.Clans.Purge()
	s.Claims.Purge()
	s.Members.Purge()
	s.Perms.Purge()
}
