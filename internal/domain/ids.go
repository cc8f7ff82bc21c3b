package domain

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// SortIDs sorts ids in place, drops duplicates and the nil UUID, and returns the result
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	out := ids[:0]
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ContainsID reports whether id is in ids
func ContainsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDPtr returns a pointer to a copy of id
func IDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

// SameIDPtr reports whether two optional identifiers are equal
func SameIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
