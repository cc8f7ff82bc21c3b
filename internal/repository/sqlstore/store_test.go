package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clanstore/internal/cache"
	"clanstore/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestStore opens a store on a fresh database file. A file is used rather
// than :memory: so reconnects see the same data.
func newTestStore(t *testing.T, mutate ...func(*Options)) *Store {
	t.Helper()
	opts := Options{
		Path:       filepath.Join(t.TempDir(), "clans.db"),
		Registerer: prometheus.NewRegistry(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// flakyOpener opens a sqlite file and can be told to fail
type flakyOpener struct {
	path     string
	down     atomic.Bool
	failures atomic.Int32 // failures left before opens succeed again
	calls    atomic.Int32
}

func newFlakyOpener(t *testing.T) *flakyOpener {
	return &flakyOpener{path: filepath.Join(t.TempDir(), "flaky.db")}
}

func (f *flakyOpener) open(context.Context) (*sql.DB, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return nil, errors.New("database unreachable")
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, errors.New("transient open failure")
	}
	return sql.Open("sqlite", f.path)
}

func withOpener(f *flakyOpener) func(*Options) {
	return func(o *Options) { o.Opener = f.open }
}

// seedClan creates a clan with one claim over box in world "world"
func seedClan(t *testing.T, s *Store, name string, box domain.BoundingBox) (*domain.Clan, *domain.Claim) {
	t.Helper()
	clan := domain.NewClan(name, name+" clan", domain.MaterialRedWool)
	claim := domain.NewClaim(clan.ID, "world", box)
	clan.ClaimIDs = []uuid.UUID{claim.ID}
	require.NoError(t, s.CreateClan(context.Background(), clan, []*domain.Claim{claim}))
	return clan, claim
}

func claimIDs(claims []*domain.Claim) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	return ids
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, 1, s.Conn().Dials())
}

func TestCloseThenInitKeepsData(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 15, 15, 15))

	require.NoError(t, s.Close())
	assert.False(t, s.Conn().Connected())

	_, err := s.GetClan(ctx, clan.ID)
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	require.NoError(t, s.Init(ctx))
	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Reds", got.Name)
}

func TestOpenFailsFatallyWhenDatabaseUnreachable(t *testing.T) {
	f := newFlakyOpener(t)
	f.down.Store(true)

	_, err := Open(context.Background(), Options{
		Opener: f.open,
		Retry:  RetryPolicy{MaxAttempts: 2},
	})
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "connect", fe.Op)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRetryPolicyRidesOutTransientFailures(t *testing.T) {
	f := newFlakyOpener(t)
	f.failures.Store(2)

	s := newTestStore(t, withOpener(f), func(o *Options) {
		o.Retry = RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	})
	assert.Equal(t, int32(3), f.calls.Load())
	assert.True(t, s.Conn().Connected())
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Options{Driver: "oracle", Path: "x.db"})
	require.Error(t, err)

	_, err = New(Options{Driver: DriverPostgres})
	require.Error(t, err, "postgres without a dsn")

	_, err = New(Options{})
	require.Error(t, err, "sqlite without a path")
}

// ============================================================================
// Repository Contracts
// ============================================================================

func TestNeverCreatedEntitiesAreAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := uuid.New()

	ok, err := s.ClanExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	clan, err := s.GetClan(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, clan)

	ok, err = s.ClaimExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	claim, err := s.GetClaim(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, claim)

	ok, err = s.MemberExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	member, err := s.GetMember(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, member)

	ok, err = s.PermExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	perm, err := s.GetPerm(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, perm)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clans.db")
	s := newTestStore(t, func(o *Options) { o.Path = path })

	clan, claim := seedClan(t, s, "Blues", domain.NewBoundingBox(-8, 60, -8, 40, 80, 12))

	member := domain.NewMember(uuid.New())
	member.ClanID = domain.IDPtr(clan.ID)
	require.NoError(t, s.CreateMember(ctx, member))

	perm := domain.NewClanPerm(clan.ID, "builders", "may break soft blocks")
	perm.BreakBlocks = []domain.Material{domain.MaterialDirt, domain.MaterialSand}
	require.NoError(t, s.CreatePerm(ctx, perm))

	// Reopen on the same file so every read comes from storage
	require.NoError(t, s.Close())
	fresh := newTestStore(t, func(o *Options) { o.Path = path })

	gotClaim, err := fresh.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim, gotClaim)

	gotMember, err := fresh.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, member, gotMember)

	gotPerm, err := fresh.GetPerm(ctx, perm.ID)
	require.NoError(t, err)
	require.NotNil(t, gotPerm, "an existing perm must be returned")
	assert.Equal(t, perm, gotPerm)
	assert.True(t, gotPerm.CanBreak(domain.MaterialDirt))
	assert.False(t, gotPerm.CanBreak(domain.MaterialStone))

	gotClan, err := fresh.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	want := clan.Clone()
	want.MemberIDs = []uuid.UUID{member.ID}
	want.PermIDs = []uuid.UUID{perm.ID}
	assert.Equal(t, want, gotClan)
}

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))

	again := clan.Clone()
	again.Name = "Renamed"
	require.NoError(t, s.CreateClan(ctx, again, nil))

	moved := claim.Clone()
	moved.World = "nether"
	require.NoError(t, s.CreateClaim(ctx, moved))

	s.cache.Purge()
	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reds", got.Name)
	assert.Equal(t, []uuid.UUID{claim.ID}, got.ClaimIDs)

	gotClaim, err := s.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "world", gotClaim.World)
}

func TestUpdateOfAbsentEntityIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	clan := domain.NewClan("Ghosts", "", "")
	require.NoError(t, s.UpdateClan(ctx, clan, nil))
	require.NoError(t, s.UpdateMember(ctx, domain.NewMember(uuid.New())))

	ok, err := s.ClanExists(ctx, clan.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.Members(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestWritesAreServedFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFlakyOpener(t)
	s := newTestStore(t, withOpener(f))

	clan, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))
	member := domain.NewMember(uuid.New())
	require.NoError(t, s.CreateMember(ctx, member))

	// Break storage entirely: cached reads must still succeed
	s.Kill()
	f.down.Store(true)

	gotClan, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Equal(t, clan, gotClan)

	ok, err := s.MemberExists(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Claim bodies written through a clan are dropped from the cache, so
	// this read needs storage
	_, err = s.GetClaim(ctx, claim.ID)
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	_, err = s.ClaimsInChunk(ctx, domain.ChunkKey(0, 0))
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	f.down.Store(false)
	got, err := s.ClaimsInChunk(ctx, domain.ChunkKey(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{claim.ID}, claimIDs(got))

	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics().cacheHits.WithLabelValues(cache.KindClan)))
}

func TestCachedValuesAreNotShared(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))

	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.ClaimIDs[0] = uuid.New()

	again, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reds", again.Name)
	assert.Equal(t, clan.ClaimIDs, again.ClaimIDs)
}

// ============================================================================
// Clan Relations
// ============================================================================

func TestCreateClanLinksMembersAndClaims(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	existing := domain.NewMember(uuid.New())
	require.NoError(t, s.CreateMember(ctx, existing))
	newcomer := uuid.New()

	clan := domain.NewClan("Greens", "", domain.MaterialGreenWool)
	clan.MemberIDs = []uuid.UUID{existing.ID, newcomer}
	claim := domain.NewClaim(clan.ID, "world", domain.NewBoundingBox(100, 0, 100, 120, 10, 120))
	require.NoError(t, s.CreateClan(ctx, clan, []*domain.Claim{claim}))

	for _, id := range []uuid.UUID{existing.ID, newcomer} {
		m, err := s.GetMember(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, m)
		require.NotNil(t, m.ClanID)
		assert.Equal(t, clan.ID, *m.ClanID)
	}

	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SortIDs([]uuid.UUID{existing.ID, newcomer}), got.MemberIDs)
	assert.Equal(t, []uuid.UUID{claim.ID}, got.ClaimIDs)
}

func TestCreateClanRejectsForeignClaims(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	clan := domain.NewClan("Reds", "", "")
	claim := domain.NewClaim(uuid.New(), "world", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))
	err := s.CreateClan(ctx, clan, []*domain.Claim{claim})
	require.ErrorIs(t, err, ErrInvalid)

	err = s.CreateClan(ctx, domain.NewClan("  ", "", ""), nil)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestClaimBoxIsBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))

	huge := &domain.Claim{
		ID:     uuid.New(),
		ClanID: clan.ID,
		World:  "world",
		Box:    domain.NewBoundingBox(-3e7, 0, -3e7, 3e7, 255, 3e7),
	}
	err := s.CreateClaim(ctx, huge)
	require.ErrorIs(t, err, ErrInvalid)
	assert.False(t, IsFatal(err))

	tooManyKeys := domain.NewClaim(clan.ID, "world", domain.NewBoundingBox(100, 0, 100, 101, 1, 101))
	tooManyKeys.ChunkKeys = make([]int64, domain.MaxClaimChunks+1)
	require.ErrorIs(t, s.CreateClaim(ctx, tooManyKeys), ErrInvalid)

	nan := domain.NewClaim(clan.ID, "world", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))
	nan.Box.Z2 = math.NaN()
	require.ErrorIs(t, s.CreateClaim(ctx, nan), ErrInvalid)

	require.ErrorIs(t, s.UpdateClan(ctx, clan, []*domain.Claim{huge}), ErrInvalid)

	for _, id := range []uuid.UUID{huge.ID, tooManyKeys.ID, nan.ID} {
		ok, err := s.ClaimExists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, s.Conn().Dials(), "rejections never drop the connection")
}

func TestUpdateClanSyncsClaimsAndMembers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m1, m2 := uuid.New(), uuid.New()
	a := domain.NewClan("A", "", "")
	a.MemberIDs = []uuid.UUID{m1, m2}
	c1 := domain.NewClaim(a.ID, "world", domain.NewBoundingBox(0, 0, 0, 15, 15, 15))
	c2 := domain.NewClaim(a.ID, "world", domain.NewBoundingBox(64, 0, 64, 79, 15, 79))
	require.NoError(t, s.CreateClan(ctx, a, []*domain.Claim{c1, c2}))

	b, c3 := seedClan(t, s, "B", domain.NewBoundingBox(-64, 0, -64, -49, 15, -49))

	// Warm the cache for B so re-pointing its claim must invalidate it
	_, err := s.GetClan(ctx, b.ID)
	require.NoError(t, err)

	c4 := domain.NewClaim(a.ID, "world", domain.NewBoundingBox(200, 0, 200, 210, 5, 210))
	update, err := s.GetClan(ctx, a.ID)
	require.NoError(t, err)
	update.Description = "merged"
	update.ClaimIDs = []uuid.UUID{c1.ID, c3.ID}
	update.MemberIDs = []uuid.UUID{m1}
	require.NoError(t, s.UpdateClan(ctx, update, []*domain.Claim{c4}))

	gotA, err := s.GetClan(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "merged", gotA.Description)
	assert.Equal(t, domain.SortIDs([]uuid.UUID{c1.ID, c3.ID, c4.ID}), gotA.ClaimIDs)
	assert.Equal(t, []uuid.UUID{m1}, gotA.MemberIDs)

	// Claims dropped from the set are deleted with their chunk rows
	ok, err := s.ClaimExists(ctx, c2.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	inC2, err := s.ClaimsInChunk(ctx, domain.ChunkKeyAt(64, 64))
	require.NoError(t, err)
	assert.Empty(t, inC2)

	// Bare identifiers are re-pointed
	gotC3, err := s.GetClaim(ctx, c3.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, gotC3.ClanID)

	gotB, err := s.GetClan(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotB.ClaimIDs)

	// Members outside the set are detached
	gotM2, err := s.GetMember(ctx, m2)
	require.NoError(t, err)
	assert.False(t, gotM2.InClan())
}

func TestDeleteClanCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	clan, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))
	perm := domain.NewClanPerm(clan.ID, "default", "")
	require.NoError(t, s.CreatePerm(ctx, perm))

	member := domain.NewMember(uuid.New())
	member.ClanID = domain.IDPtr(clan.ID)
	member.ClanPermID = domain.IDPtr(perm.ID)
	require.NoError(t, s.CreateMember(ctx, member))

	require.NoError(t, s.DeleteClan(ctx, clan.ID))

	ok, err := s.ClanExists(ctx, clan.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.ClaimExists(ctx, claim.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.PermExists(ctx, perm.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetMember(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ClanID)
	assert.Nil(t, got.ClanPermID)

	for _, key := range claim.ChunkKeys {
		claims, err := s.ClaimsInChunk(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, claims)
	}
	keys, err := s.ChunkKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeleteClaimRemovesChunkRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))

	require.NoError(t, s.DeleteClaim(ctx, claim.ID))

	keys, err := s.ChunkKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ClaimIDs)
}

// ============================================================================
// Claims and the Chunk Index
// ============================================================================

func TestClaimRequiresExistingClan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	claim := domain.NewClaim(uuid.New(), "world", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))
	err := s.CreateClaim(ctx, claim)
	require.ErrorIs(t, err, ErrInvalid)
	assert.True(t, s.Conn().Connected(), "validation failures keep the connection")
}

func TestUpdateClaimMovesChunkRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 15, 15, 15))

	moved := domain.NewClaim(claim.ClanID, "world", domain.NewBoundingBox(32, 0, 32, 47, 15, 47))
	moved.ID = claim.ID
	require.NoError(t, s.UpdateClaim(ctx, moved))

	old, err := s.ClaimsInChunk(ctx, domain.ChunkKey(0, 0))
	require.NoError(t, err)
	assert.Empty(t, old)

	now, err := s.ClaimsInChunk(ctx, domain.ChunkKey(2, 2))
	require.NoError(t, err)
	require.Len(t, now, 1)
	assert.Equal(t, moved, now[0])
}

func TestSpatialIndexConsistency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	box := domain.NewBoundingBox(-20, 0, -20, 20, 10, 5)
	_, claim := seedClan(t, s, "Reds", box)
	require.Len(t, claim.ChunkKeys, 12)

	for _, key := range claim.ChunkKeys {
		got, err := s.ClaimsInChunk(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{claim.ID}, claimIDs(got), "chunk %d", key)
	}

	outside := []int64{
		domain.ChunkKey(2, 0),
		domain.ChunkKey(-3, 0),
		domain.ChunkKey(0, 1),
		domain.ChunkKey(0, -3),
	}
	for _, key := range outside {
		got, err := s.ClaimsInChunk(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, got, "chunk %d", key)
	}

	keys, err := s.ChunkKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, claim.ChunkKeys, keys)

	near, err := s.ClaimsNear(ctx, append(outside, claim.ChunkKeys...))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{claim.ID}, claimIDs(near))

	none, err := s.ClaimsNear(ctx, outside)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClaimsListing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, c1 := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))
	_, c2 := seedClan(t, s, "Blues", domain.NewBoundingBox(100, 0, 100, 101, 1, 101))

	claims, err := s.Claims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 2)

	byID := map[uuid.UUID]*domain.Claim{}
	for _, c := range claims {
		byID[c.ID] = c
	}
	assert.Equal(t, c1, byID[c1.ID])
	assert.Equal(t, c2, byID[c2.ID])

	clans, err := s.Clans(ctx)
	require.NoError(t, err)
	assert.Len(t, clans, 2)
}

// ============================================================================
// Perms and Members
// ============================================================================

func TestPermOwnerExclusivity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))
	member := domain.NewMember(uuid.New())
	require.NoError(t, s.CreateMember(ctx, member))

	both := domain.NewClanPerm(clan.ID, "both", "")
	both.MemberID = domain.IDPtr(member.ID)
	neither := domain.NewClanPerm(clan.ID, "neither", "")
	neither.ClanID = nil
	orphan := domain.NewClanPerm(uuid.New(), "orphan", "")

	tests := []struct {
		name string
		perm *domain.Perm
	}{
		{"clan and member owner", both},
		{"no owner", neither},
		{"missing owner", orphan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreatePerm(ctx, tt.perm)
			require.ErrorIs(t, err, ErrInvalid)
			assert.False(t, IsFatal(err))

			ok, err := s.PermExists(ctx, tt.perm.ID)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	valid := domain.NewMemberPerm(member.ID, "personal", "")
	require.NoError(t, s.CreatePerm(ctx, valid))
	valid.ClanID = domain.IDPtr(clan.ID)
	require.ErrorIs(t, s.UpdatePerm(ctx, valid), ErrInvalid)

	assert.Equal(t, 1, s.Conn().Dials(), "rejections never drop the connection")
}

func TestMemberClanPermMustBeInScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := uuid.New()
	a := domain.NewClan("A", "", "")
	a.MemberIDs = []uuid.UUID{m}
	require.NoError(t, s.CreateClan(ctx, a, nil))
	b, _ := seedClan(t, s, "B", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))

	permA := domain.NewClanPerm(a.ID, "a", "")
	permB := domain.NewClanPerm(b.ID, "b", "")
	permM := domain.NewMemberPerm(m, "mine", "")
	for _, p := range []*domain.Perm{permA, permB, permM} {
		require.NoError(t, s.CreatePerm(ctx, p))
	}

	member, err := s.GetMember(ctx, m)
	require.NoError(t, err)

	member.ClanPermID = domain.IDPtr(permB.ID)
	require.ErrorIs(t, s.UpdateMember(ctx, member), ErrInvalid)

	member.ClanPermID = domain.IDPtr(permA.ID)
	require.NoError(t, s.UpdateMember(ctx, member))

	// Leaving the clan drops the clan-scoped perm
	clan, err := s.GetClan(ctx, a.ID)
	require.NoError(t, err)
	clan.MemberIDs = nil
	require.NoError(t, s.UpdateClan(ctx, clan, nil))

	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, member.ClanID)
	assert.Nil(t, member.ClanPermID)

	// Outside a clan no perm may be held, not even the member's own
	member.ClanPermID = domain.IDPtr(permM.ID)
	require.ErrorIs(t, s.UpdateMember(ctx, member), ErrInvalid)
	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, member.ClanPermID)

	// Leaving through UpdateClan drops a member-scoped perm too
	clan.MemberIDs = []uuid.UUID{m}
	require.NoError(t, s.UpdateClan(ctx, clan, nil))
	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	member.ClanPermID = domain.IDPtr(permM.ID)
	require.NoError(t, s.UpdateMember(ctx, member))

	clan.MemberIDs = nil
	require.NoError(t, s.UpdateClan(ctx, clan, nil))
	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, member.ClanID)
	assert.Nil(t, member.ClanPermID)

	// So does clan deletion
	clan.MemberIDs = []uuid.UUID{m}
	require.NoError(t, s.UpdateClan(ctx, clan, nil))
	member.ClanID = domain.IDPtr(a.ID)
	member.ClanPermID = domain.IDPtr(permM.ID)
	require.NoError(t, s.UpdateMember(ctx, member))
	require.NoError(t, s.DeleteClan(ctx, a.ID))

	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, member.ClanID)
	assert.Nil(t, member.ClanPermID)

	ok, err := s.PermExists(ctx, permM.ID)
	require.NoError(t, err)
	assert.True(t, ok, "the member keeps owning the perm")
}

func TestClanPermRequiresClan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	member := domain.NewMember(uuid.New())
	require.NoError(t, s.CreateMember(ctx, member))
	perm := domain.NewMemberPerm(member.ID, "mine", "")
	require.NoError(t, s.CreatePerm(ctx, perm))

	member.ClanPermID = domain.IDPtr(perm.ID)
	err := s.UpdateMember(ctx, member)
	require.ErrorIs(t, err, ErrInvalid)
	assert.False(t, IsFatal(err))

	fresh := domain.NewMember(uuid.New())
	fresh.ClanPermID = domain.IDPtr(perm.ID)
	require.ErrorIs(t, s.CreateMember(ctx, fresh), ErrInvalid)

	got, err := s.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClanPermID)
}

func TestUpdatePermRepairsMemberLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := uuid.New()
	a := domain.NewClan("A", "", "")
	a.MemberIDs = []uuid.UUID{m}
	require.NoError(t, s.CreateClan(ctx, a, nil))
	b, _ := seedClan(t, s, "B", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))

	perm := domain.NewClanPerm(a.ID, "a", "")
	require.NoError(t, s.CreatePerm(ctx, perm))
	member, err := s.GetMember(ctx, m)
	require.NoError(t, err)
	member.ClanPermID = domain.IDPtr(perm.ID)
	require.NoError(t, s.UpdateMember(ctx, member))

	perm.ClanID = domain.IDPtr(b.ID)
	require.NoError(t, s.UpdatePerm(ctx, perm))

	member, err = s.GetMember(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, member.ClanPermID)

	gotB, err := s.GetClan(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{perm.ID}, gotB.PermIDs)
	gotA, err := s.GetClan(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gotA.PermIDs)
}

// ============================================================================
// Failure Handling
// ============================================================================

func TestDecodeFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := uuid.New()

	err := s.conn.Do(ctx, "seed", func(ctx context.Context, q session) error {
		_, err := q.exec(ctx, `INSERT INTO clans (`+clanColumns+`) VALUES (?, ?, ?, ?)`,
			id.String(), "Broken", "", "NOT_A_BLOCK")
		return err
	})
	require.NoError(t, err)

	_, err = s.GetClan(ctx, id)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFatal)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "get clan", fe.Op)
	assert.False(t, s.Conn().Connected(), "fatal errors kill the connection")

	// The next call starts clean
	ok, err := s.ClanExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Conn().Dials())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics().fatal.WithLabelValues("get clan")))
}

func TestFailedWriteLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	clan := domain.NewClan("Reds", "", "")
	claim := domain.NewClaim(clan.ID, "world", domain.NewBoundingBox(0, 0, 0, 1, 1, 1))

	// Drop the chunk index so the claim's index insert fails mid-transaction
	err := s.conn.Do(ctx, "sabotage", func(ctx context.Context, q session) error {
		_, err := q.exec(ctx, `DROP TABLE claimedChunks`)
		return err
	})
	require.NoError(t, err)

	err = s.CreateClan(ctx, clan, []*domain.Claim{claim})
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	ok, err := s.ClanExists(ctx, clan.ID)
	require.NoError(t, err)
	assert.False(t, ok, "the clan insert must have been rolled back")
	ok, err = s.ClaimExists(ctx, claim.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTwoReconnectCycles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))

	for cycle := 1; cycle <= 2; cycle++ {
		s.Kill()
		assert.False(t, s.Conn().Connected())

		// Clear the cache so the read has to reach storage
		s.cache.Purge()
		got, err := s.GetClan(ctx, clan.ID)
		require.NoError(t, err, "cycle %d", cycle)
		require.NotNil(t, got)
		assert.Equal(t, cycle+1, s.Conn().Dials())
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(s.Metrics().reconnects))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.Metrics().kills))
}

func TestConcurrentCallsShareOneConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := domain.NewMember(uuid.New())
			m.ClanID = domain.IDPtr(clan.ID)
			if err := s.CreateMember(ctx, m); err != nil {
				errs <- err
				return
			}
			if _, err := s.ClaimsInChunk(ctx, domain.ChunkKey(1, 1)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetClan(ctx, clan.ID)
	require.NoError(t, err)
	assert.Len(t, got.MemberIDs, 16)
	assert.Equal(t, 1, s.Conn().Dials())
}

// ============================================================================
// Scenario
// ============================================================================

func TestRedsClanLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := domain.NewClan("Reds", "", "")
	require.NoError(t, s.CreateClan(ctx, c, nil))

	x := domain.NewClaim(c.ID, "world", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))
	require.NoError(t, s.CreateClaim(ctx, x))

	origin := domain.ChunkKey(0, 0)
	got, err := s.ClaimsInChunk(ctx, origin)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{x.ID}, claimIDs(got))

	require.NoError(t, s.DeleteClan(ctx, c.ID))

	ok, err := s.ClaimExists(ctx, x.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.ClaimsInChunk(ctx, origin)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPurgeDropsEverything(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clan, _ := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))

	require.NoError(t, s.Purge(ctx))

	ok, err := s.ClanExists(ctx, clan.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	keys, err := s.ChunkKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Zero(t, s.cache.Clans.Len())
}

func TestFailedPurgeKeepsCacheAndData(t *testing.T) {
	s := newTestStore(t)
	clan, claim := seedClan(t, s, "Reds", domain.NewBoundingBox(0, 0, 0, 31, 31, 31))
	require.True(t, s.cache.Clans.Contains(clan.ID))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Purge(cancelled)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, s.cache.Clans.Contains(clan.ID), "cache is only purged after commit")

	ctx := context.Background()
	s.cache.Purge()
	got, err := s.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "a failed purge leaves the tables intact")
}
