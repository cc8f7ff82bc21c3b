package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clanstore/internal/domain"
)

func sampleSnapshot() *domain.Snapshot {
	clan := domain.NewClan("Reds", "red team", domain.MaterialRedWool)
	claim := domain.NewClaim(clan.ID, "world", domain.NewBoundingBox(0, 60, 0, 40, 80, 20))
	member := domain.NewMember(uuid.New())
	member.ClanID = domain.IDPtr(clan.ID)
	perm := domain.NewClanPerm(clan.ID, "builder", "may break dirt")
	perm.BreakBlocks = []domain.Material{domain.MaterialDirt, domain.MaterialStone}
	member.ClanPermID = domain.IDPtr(perm.ID)

	clan.ClaimIDs = []uuid.UUID{claim.ID}
	clan.MemberIDs = []uuid.UUID{member.ID}
	clan.PermIDs = []uuid.UUID{perm.ID}

	return &domain.Snapshot{
		Clans:   []*domain.Clan{clan},
		Claims:  []*domain.Claim{claim},
		Members: []*domain.Member{member},
		Perms:   []*domain.Perm{perm},
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
		ok     bool
	}{
		{"json", "json", true},
		{"", "json", true},
		{"YAML", "yaml", true},
		{" yml ", "yaml", true},
		{"ansible", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			c, err := ForFormat(tt.format)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Format())
		})
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	want := sampleSnapshot()
	c := NewJSONCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(want, &buf))
	assert.Contains(t, buf.String(), `"clans"`)
	assert.Contains(t, buf.String(), "RED_WOOL")

	got, err := c.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJSONCodecDerivesChunkKeys(t *testing.T) {
	clanID := uuid.New()
	doc := `{"clans":[],"members":[],"perms":[],"claims":[{"id":"` + uuid.NewString() +
		`","clan_id":"` + clanID.String() + `","world":"world","box":{"x1":0,"x2":17,"y1":0,"y2":0,"z1":0,"z2":0}}]}`

	got, err := NewJSONCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got.Claims, 1)
	assert.Equal(t, []int64{domain.ChunkKey(0, 0), domain.ChunkKey(1, 0)}, got.Claims[0].ChunkKeys)
}

func TestJSONCodecRejectsUnknownFields(t *testing.T) {
	_, err := NewJSONCodec().Parse(strings.NewReader(`{"nodes":[]}`))
	assert.Error(t, err)
}

func TestYAMLCodecRoundTrip(t *testing.T) {
	want := sampleSnapshot()
	c := NewYAMLCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(want, &buf))
	out := buf.String()
	assert.Contains(t, out, "name: Reds")
	assert.Contains(t, out, "break_blocks: [DIRT, STONE]")

	got, err := c.Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestYAMLCodecParse(t *testing.T) {
	clanID := uuid.New()
	memberID := uuid.New()

	t.Run("relation sets rebuilt from entries", func(t *testing.T) {
		doc := `
clans:
  - id: ` + clanID.String() + `
    name: Blues
members:
  - id: ` + memberID.String() + `
    clan: ` + clanID.String() + `
claims: []
perms: []
`
		got, err := NewYAMLCodec().Parse(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, got.Clans, 1)
		assert.Equal(t, domain.DefaultOutline, got.Clans[0].Outline)
		assert.Equal(t, []uuid.UUID{memberID}, got.Clans[0].MemberIDs)
		assert.Empty(t, got.Clans[0].ClaimIDs)
	})

	t.Run("empty document", func(t *testing.T) {
		got, err := NewYAMLCodec().Parse(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, got.Clans)
	})

	t.Run("bad identifier", func(t *testing.T) {
		_, err := NewYAMLCodec().Parse(strings.NewReader("clans:\n  - id: nope\n    name: x\n"))
		assert.ErrorContains(t, err, "invalid clan id")
	})

	t.Run("unknown material", func(t *testing.T) {
		doc := "perms:\n  - id: " + uuid.NewString() + "\n    name: p\n    member: " + memberID.String() +
			"\n    break_blocks: [UNOBTAINIUM]\n"
		_, err := NewYAMLCodec().Parse(strings.NewReader(doc))
		assert.ErrorContains(t, err, "unknown material")
	})
}
