package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"clanstore/internal/domain"
	"clanstore/internal/repository"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyInClan = errors.New("member already belongs to a clan")
	ErrNotInClan     = errors.New("member does not belong to a clan")
	ErrInvalid       = errors.New("invalid request")
)

// founderPermName names the perm created for a clan's founder
const founderPermName = "founder"

// ClanService provides the clan gameplay operations
type ClanService struct {
	store    repository.Store
	eventBus *EventBus

	// claimMu makes the overlap check and insert of ClaimArea one step
	claimMu sync.Mutex
}

// NewClanService creates a new clan service
func NewClanService(store repository.Store, eventBus *EventBus) *ClanService {
	if eventBus == nil {
		eventBus = NewEventBus()
	}
	return &ClanService{
		store:    store,
		eventBus: eventBus,
	}
}

// ============================================================================
// Members
// ============================================================================

// EnsureMember returns the member record of a player, creating it the first
// time the player is seen
func (s *ClanService) EnsureMember(ctx context.Context, playerID uuid.UUID) (*domain.Member, error) {
	member, err := s.store.GetMember(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return member, nil
	}

	member = domain.NewMember(playerID)
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventMemberSeen,
		Payload: map[string]string{"member_id": playerID.String()},
	})
	return member, nil
}

// AssignPerm sets or clears (permID nil) the clan perm of a member. Only a
// member of a clan holds a perm, and it must belong to the member or to the
// member's clan.
func (s *ClanService) AssignPerm(ctx context.Context, playerID uuid.UUID, permID *uuid.UUID) (*domain.Member, error) {
	member, err := s.Member(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if permID != nil {
		if !member.InClan() {
			return nil, ErrNotInClan
		}
		perm, err := s.Perm(ctx, *permID)
		if err != nil {
			return nil, err
		}
		if !perm.ScopedTo(clanOf(member), member.ID) {
			return nil, fmt.Errorf("%w: perm %s does not apply to member %s", ErrConflict, perm.ID, member.ID)
		}
	}

	member.ClanPermID = permID
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventMemberUpdated, Payload: member})
	return member, nil
}

// ============================================================================
// Clans
// ============================================================================

// FoundClan creates a clan led by founderID. The founder must not already be
// in a clan and the name must not be taken (case-insensitive). The founder is
// given a perm that allows breaking every block.
func (s *ClanService) FoundClan(ctx context.Context, founderID uuid.UUID, name, description string, outline domain.Material) (*domain.Clan, error) {
	name = strings.TrimSpace(name)
	founder, err := s.EnsureMember(ctx, founderID)
	if err != nil {
		return nil, err
	}
	if founder.InClan() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInClan, *founder.ClanID)
	}
	if taken, err := s.nameTaken(ctx, name); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: clan name %q is taken", ErrConflict, name)
	}

	clan := domain.NewClan(name, description, outline)
	clan.MemberIDs = []uuid.UUID{founderID}
	if err := s.store.CreateClan(ctx, clan, nil); err != nil {
		return nil, err
	}

	perm := domain.NewClanPerm(clan.ID, founderPermName, "Granted to the founder of "+name)
	perm.BreakBlocksWhitelist = false
	if err := s.store.CreatePerm(ctx, perm); err != nil {
		return nil, err
	}

	founder.ClanID = domain.IDPtr(clan.ID)
	founder.ClanPermID = domain.IDPtr(perm.ID)
	if err := s.store.UpdateMember(ctx, founder); err != nil {
		return nil, err
	}

	stored, err := s.Clan(ctx, clan.ID)
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventClanFounded, Payload: stored})
	return stored, nil
}

// JoinClan adds a player to a clan. A clan perm that does not apply in the
// new clan is dropped.
func (s *ClanService) JoinClan(ctx context.Context, playerID, clanID uuid.UUID) (*domain.Member, error) {
	if _, err := s.Clan(ctx, clanID); err != nil {
		return nil, err
	}
	member, err := s.EnsureMember(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if member.InClan() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInClan, *member.ClanID)
	}

	member.ClanID = domain.IDPtr(clanID)
	if err := s.scopePerm(ctx, member); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventClanJoined,
		Payload: map[string]string{"member_id": playerID.String(), "clan_id": clanID.String()},
	})
	return member, nil
}

// LeaveClan removes a player from their clan, dropping their clan perm. The
// clan itself is kept even when it has no members left.
func (s *ClanService) LeaveClan(ctx context.Context, playerID uuid.UUID) (*domain.Member, error) {
	member, err := s.store.GetMember(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.InClan() {
		return nil, ErrNotInClan
	}

	clanID := *member.ClanID
	member.ClanID = nil
	member.ClanPermID = nil
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventClanLeft,
		Payload: map[string]string{"member_id": playerID.String(), "clan_id": clanID.String()},
	})
	return member, nil
}

// DisbandClan deletes a clan with its claims and perms; its members are
// released
func (s *ClanService) DisbandClan(ctx context.Context, clanID uuid.UUID) error {
	ok, err := s.store.ClanExists(ctx, clanID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: clan %s", ErrNotFound, clanID)
	}
	if err := s.store.DeleteClan(ctx, clanID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventClanDisbanded,
		Payload: map[string]string{"clan_id": clanID.String()},
	})
	return nil
}

// UpdateClan rewrites a clan's name, description and outline. Relation sets
// are left as stored.
func (s *ClanService) UpdateClan(ctx context.Context, clanID uuid.UUID, name, description string, outline domain.Material) (*domain.Clan, error) {
	clan, err := s.Clan(ctx, clanID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if !strings.EqualFold(name, clan.Name) {
		if taken, err := s.nameTaken(ctx, name); err != nil {
			return nil, err
		} else if taken {
			return nil, fmt.Errorf("%w: clan name %q is taken", ErrConflict, name)
		}
	}

	clan.Name = name
	clan.Description = description
	if outline != "" {
		clan.Outline = outline
	}
	if err := s.store.UpdateClan(ctx, clan, nil); err != nil {
		return nil, err
	}
	return s.Clan(ctx, clanID)
}

// ============================================================================
// Claims
// ============================================================================

// ClaimArea claims box in world for a clan. The area must not overlap any
// existing claim in that world. Concurrent calls are serialized so two
// overlapping areas can never both be claimed.
func (s *ClanService) ClaimArea(ctx context.Context, clanID uuid.UUID, world string, box domain.BoundingBox) (*domain.Claim, error) {
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := s.Clan(ctx, clanID); err != nil {
		return nil, err
	}

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	claim := domain.NewClaim(clanID, world, box)
	near, err := s.store.ClaimsNear(ctx, claim.ChunkKeys)
	if err != nil {
		return nil, err
	}
	for _, other := range near {
		if claim.Overlaps(other) {
			return nil, fmt.Errorf("%w: area overlaps claim %s", ErrConflict, other.ID)
		}
	}

	if err := s.store.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventClaimCreated, Payload: claim})
	return claim, nil
}

// ReleaseClaim deletes a claim
func (s *ClanService) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error {
	claim, err := s.Claim(ctx, claimID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteClaim(ctx, claimID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventClaimReleased,
		Payload: map[string]string{"claim_id": claimID.String(), "clan_id": claim.ClanID.String()},
	})
	return nil
}

// ClaimAt returns the claim containing the block position, or nil in the
// wilderness
func (s *ClanService) ClaimAt(ctx context.Context, world string, x, y, z float64) (*domain.Claim, error) {
	claims, err := s.store.ClaimsInChunk(ctx, domain.ChunkKeyAt(x, z))
	if err != nil {
		return nil, err
	}
	for _, c := range claims {
		if c.World == world && c.Box.Contains(x, y, z) {
			return c, nil
		}
	}
	return nil, nil
}

// NearbyClaims returns the claims of world indexed within radius chunks of
// the block position
func (s *ClanService) NearbyClaims(ctx context.Context, world string, x, z float64, radius int32) ([]*domain.Claim, error) {
	claims, err := s.store.ClaimsNear(ctx, domain.ChunkKeysAround(x, z, radius))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Claim, 0, len(claims))
	for _, c := range claims {
		if c.World == world {
			out = append(out, c)
		}
	}
	return out, nil
}

// CanBreak reports whether a player may break a block of material at the
// position. Unclaimed land is open to everyone. Inside a claim the player
// must belong to the owning clan; a clan perm, when assigned, further
// restricts the materials.
func (s *ClanService) CanBreak(ctx context.Context, playerID uuid.UUID, world string, x, y, z float64, material domain.Material) (bool, error) {
	claim, err := s.ClaimAt(ctx, world, x, y, z)
	if err != nil {
		return false, err
	}
	if claim == nil {
		return true, nil
	}

	member, err := s.store.GetMember(ctx, playerID)
	if err != nil {
		return false, err
	}
	if member == nil || member.ClanID == nil || *member.ClanID != claim.ClanID {
		return false, nil
	}
	if member.ClanPermID == nil {
		return true, nil
	}

	perm, err := s.store.GetPerm(ctx, *member.ClanPermID)
	if err != nil {
		return false, err
	}
	if perm == nil {
		return true, nil
	}
	return perm.CanBreak(material), nil
}

// ============================================================================
// Perms
// ============================================================================

// CreatePerm stores a new perm
func (s *ClanService) CreatePerm(ctx context.Context, perm *domain.Perm) error {
	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	if err := s.store.CreatePerm(ctx, perm); err != nil {
		return err
	}

	s.eventBus.Publish(Event{Type: EventPermCreated, Payload: perm})
	return nil
}

// UpdatePerm rewrites an existing perm. Members it no longer applies to lose
// it as their clan perm.
func (s *ClanService) UpdatePerm(ctx context.Context, perm *domain.Perm) error {
	ok, err := s.store.PermExists(ctx, perm.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: perm %s", ErrNotFound, perm.ID)
	}
	if err := s.store.UpdatePerm(ctx, perm); err != nil {
		return err
	}

	s.eventBus.Publish(Event{Type: EventPermUpdated, Payload: perm})
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// Clan retrieves a single clan by ID
func (s *ClanService) Clan(ctx context.Context, id uuid.UUID) (*domain.Clan, error) {
	clan, err := s.store.GetClan(ctx, id)
	if err != nil {
		return nil, err
	}
	if clan == nil {
		return nil, fmt.Errorf("%w: clan %s", ErrNotFound, id)
	}
	return clan, nil
}

// Claim retrieves a single claim by ID
func (s *ClanService) Claim(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	claim, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	return claim, nil
}

// Member retrieves a single member by ID
func (s *ClanService) Member(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, id)
	}
	return member, nil
}

// Perm retrieves a single perm by ID
func (s *ClanService) Perm(ctx context.Context, id uuid.UUID) (*domain.Perm, error) {
	perm, err := s.store.GetPerm(ctx, id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, fmt.Errorf("%w: perm %s", ErrNotFound, id)
	}
	return perm, nil
}

// Clans returns every clan
func (s *ClanService) Clans(ctx context.Context) ([]*domain.Clan, error) {
	return s.store.Clans(ctx)
}

// Claims returns every claim
func (s *ClanService) Claims(ctx context.Context) ([]*domain.Claim, error) {
	return s.store.Claims(ctx)
}

// Members returns every member
func (s *ClanService) Members(ctx context.Context) ([]*domain.Member, error) {
	return s.store.Members(ctx)
}

// Perms returns every perm
func (s *ClanService) Perms(ctx context.Context) ([]*domain.Perm, error) {
	return s.store.Perms(ctx)
}

// ClaimsInChunk returns the claims indexed under a chunk key
func (s *ClanService) ClaimsInChunk(ctx context.Context, key int64) ([]*domain.Claim, error) {
	return s.store.ClaimsInChunk(ctx, key)
}

// ChunkKeys returns every claimed chunk key
func (s *ClanService) ChunkKeys(ctx context.Context) ([]int64, error) {
	return s.store.ChunkKeys(ctx)
}

// Purge deletes everything in the store
func (s *ClanService) Purge(ctx context.Context) error {
	if err := s.store.Purge(ctx); err != nil {
		return err
	}
	s.eventBus.Publish(Event{Type: EventStorePurged})
	return nil
}

func (s *ClanService) nameTaken(ctx context.Context, name string) (bool, error) {
	clans, err := s.store.Clans(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range clans {
		if strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// scopePerm clears a member's clan perm when it does not apply to the
// member's current clan
func (s *ClanService) scopePerm(ctx context.Context, member *domain.Member) error {
	if member.ClanPermID == nil {
		return nil
	}
	perm, err := s.store.GetPerm(ctx, *member.ClanPermID)
	if err != nil {
		return err
	}
	if perm == nil || !perm.ScopedTo(clanOf(member), member.ID) {
		member.ClanPermID = nil
	}
	return nil
}

func clanOf(m *domain.Member) uuid.UUID {
	if m.ClanID == nil {
		return uuid.Nil
	}
	return *m.ClanID
}
