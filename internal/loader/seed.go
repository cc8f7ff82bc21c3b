// Package loader reads snapshot seed files and loads them into the store.
package loader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"clanstore/internal/codec"
	"clanstore/internal/domain"
	"clanstore/internal/service"
)

// Target receives parsed snapshots
type Target interface {
	Load(ctx context.Context, snapshot *domain.Snapshot) (*service.ImportResult, error)
}

// FormatFor picks the snapshot format from a file extension
func FormatFor(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("cannot infer snapshot format from extension %q", ext)
	}
}

// LoadFile parses the snapshot stored at path
func LoadFile(path string) (*domain.Snapshot, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	snapshot, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return snapshot, nil
}

// Seed loads the snapshot at path into target. Entities already stored are
// left untouched.
func Seed(ctx context.Context, path string, target Target) (*service.ImportResult, error) {
	snapshot, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	result, err := target.Load(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	log.Printf("Seeded from %s: %d clans, %d claims, %d members, %d perms created, %d skipped",
		path, result.ClansCreated, result.ClaimsCreated, result.MembersCreated, result.PermsCreated, result.Skipped)
	return result, nil
}
