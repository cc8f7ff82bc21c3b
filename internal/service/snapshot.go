package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"clanstore/internal/codec"
	"clanstore/internal/domain"
)

// ImportResult contains statistics about an import operation
type ImportResult struct {
	ClansCreated   int `json:"clans_created"`
	ClaimsCreated  int `json:"claims_created"`
	MembersCreated int `json:"members_created"`
	PermsCreated   int `json:"perms_created"`
	Skipped        int `json:"skipped"`
}

// Snapshot reads every stored entity. Each kind is read in its own call, so
// writes running concurrently may land between them.
func (s *ClanService) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snapshot := domain.NewSnapshot()
	var err error
	if snapshot.Clans, err = s.store.Clans(ctx); err != nil {
		return nil, fmt.Errorf("read clans: %w", err)
	}
	if snapshot.Claims, err = s.store.Claims(ctx); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	if snapshot.Members, err = s.store.Members(ctx); err != nil {
		return nil, fmt.Errorf("read members: %w", err)
	}
	if snapshot.Perms, err = s.store.Perms(ctx); err != nil {
		return nil, fmt.Errorf("read perms: %w", err)
	}
	return snapshot, nil
}

// Export writes a snapshot in the named format ("json" or "yaml")
func (s *ClanService) Export(ctx context.Context, w io.Writer, format string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	return c.Export(snapshot, w)
}

// Import parses a snapshot in the named format and loads it
func (s *ClanService) Import(ctx context.Context, r io.Reader, format string) (*ImportResult, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.Parse(r)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, snapshot)
}

// Load writes the entities of a snapshot that are not stored yet. Clans go
// first with their claims and members, then loose claims, members and perms.
// Clan perm links are applied last, and only to members this load created.
func (s *ClanService) Load(ctx context.Context, snapshot *domain.Snapshot) (*ImportResult, error) {
	result := &ImportResult{}

	fresh := make(map[*domain.Member]bool, len(snapshot.Members))
	for _, m := range snapshot.Members {
		ok, err := s.store.MemberExists(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		fresh[m] = !ok
	}

	loaded := make(map[uuid.UUID]bool, len(snapshot.Claims))
	for _, clan := range snapshot.Clans {
		ok, err := s.store.ClanExists(ctx, clan.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Skipped++
			continue
		}
		claims := snapshot.ClaimsOf(clan.ID)
		if err := s.store.CreateClan(ctx, clan, claims); err != nil {
			return nil, fmt.Errorf("import clan %s: %w", clan.ID, err)
		}
		result.ClansCreated++
		for _, c := range claims {
			loaded[c.ID] = true
			result.ClaimsCreated++
		}
	}

	for _, claim := range snapshot.Claims {
		if loaded[claim.ID] {
			continue
		}
		ok, err := s.store.ClaimExists(ctx, claim.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Skipped++
			continue
		}
		if err := s.store.CreateClaim(ctx, claim); err != nil {
			return nil, fmt.Errorf("import claim %s: %w", claim.ID, err)
		}
		result.ClaimsCreated++
	}

	for _, m := range snapshot.Members {
		if !fresh[m] {
			result.Skipped++
			continue
		}
		bare := m.Clone()
		bare.ClanPermID = nil
		if err := s.store.CreateMember(ctx, bare); err != nil {
			return nil, fmt.Errorf("import member %s: %w", m.ID, err)
		}
		result.MembersCreated++
	}

	for _, perm := range snapshot.Perms {
		ok, err := s.store.PermExists(ctx, perm.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Skipped++
			continue
		}
		if err := s.store.CreatePerm(ctx, perm); err != nil {
			return nil, fmt.Errorf("import perm %s: %w", perm.ID, err)
		}
		result.PermsCreated++
	}

	for _, m := range snapshot.Members {
		if !fresh[m] || m.ClanPermID == nil {
			continue
		}
		if err := s.store.UpdateMember(ctx, m); err != nil {
			return nil, fmt.Errorf("link member %s: %w", m.ID, err)
		}
	}

	s.eventBus.Publish(Event{Type: EventSnapshotLoaded, Payload: result})
	return result, nil
}
