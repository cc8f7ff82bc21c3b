package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"clanstore/internal/domain"
)

// ============================================================================
// Identifier Conversion Helpers
// ============================================================================

// parseID decodes a canonical identifier column
func parseID(column, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode %s %q: %w", column, s, err)
	}
	return id, nil
}

// nullToID decodes a nullable identifier column
func nullToID(column string, ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := parseID(column, ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// idToNull encodes an optional identifier for a nullable column
func idToNull(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// ============================================================================
// Rule Set Helpers
// ============================================================================

// marshalMaterials encodes a break rule list as a JSON array of tokens
func marshalMaterials(ms []domain.Material) (string, error) {
	if ms == nil {
		ms = []domain.Material{}
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalMaterials decodes a break rule list, rejecting unknown tokens
func unmarshalMaterials(s string) ([]domain.Material, error) {
	out := []domain.Material{}
	if s == "" {
		return out, nil
	}
	var tokens []string
	if err := json.Unmarshal([]byte(s), &tokens); err != nil {
		return nil, fmt.Errorf("decode breakBlocks: %w", err)
	}
	for _, tok := range tokens {
		m, err := domain.ParseMaterial(tok)
		if err != nil {
			return nil, fmt.Errorf("decode breakBlocks: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Query Helpers
// ============================================================================

// exists runs an existence query that selects only the key column
func exists(ctx context.Context, q session, table, column string, id uuid.UUID) (bool, error) {
	var got string
	err := q.queryRow(ctx, "SELECT "+column+" FROM "+table+" WHERE "+column+" = ?", id.String()).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return true, nil
}

// selectIDs reads a single identifier column and returns the sorted set
func selectIDs(ctx context.Context, q session, column, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := parseID(column, s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.SortIDs(ids), nil
}

// selectKeys reads a single chunk key column and returns the sorted distinct set
func selectKeys(ctx context.Context, q session, query string, args ...any) ([]int64, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []int64{}
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.SortChunkKeys(keys), nil
}

// sortedUnion merges identifier sets
func sortedUnion(sets ...[]uuid.UUID) []uuid.UUID {
	var all []uuid.UUID
	for _, s := range sets {
		all = append(all, s...)
	}
	return domain.SortIDs(all)
}

// difference returns the members of a that are not in b
func difference(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
