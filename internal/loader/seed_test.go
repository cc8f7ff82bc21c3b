package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clanstore/internal/domain"
	"clanstore/internal/service"
)

type recordingTarget struct {
	got *domain.Snapshot
}

func (r *recordingTarget) Load(_ context.Context, s *domain.Snapshot) (*service.ImportResult, error) {
	r.got = s
	return &service.ImportResult{ClansCreated: len(s.Clans)}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"seed.json", "json", true},
		{"seed.YAML", "yaml", true},
		{"/etc/clanstore/seed.yml", "yaml", true},
		{"seed.toml", "", false},
		{"seed", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFor(tt.path)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeed(t *testing.T) {
	clanID := uuid.New()
	path := writeFile(t, "seed.yaml", "clans:\n  - id: "+clanID.String()+"\n    name: Reds\n")

	target := &recordingTarget{}
	result, err := Seed(context.Background(), path, target)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClansCreated)
	require.Len(t, target.got.Clans, 1)
	assert.Equal(t, clanID, target.got.Clans[0].ID)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "open seed")

	_, err = LoadFile(writeFile(t, "broken.json", "{"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "seed.txt", "{}"))
	assert.ErrorContains(t, err, "cannot infer")
}
