// Package domain defines the entity types stored by clanstore.
//
// # Entities
//
// Clan is a named group. Its claim, member and perm identifier sets are
// relations rebuilt from the clanID foreign key of the other tables, not
// embedded copies.
//
// Claim is an axis-aligned volume in one world owned by exactly one clan. Its
// ChunkKeys are the world chunks the box overlaps and drive the spatial index.
//
// Member is the record of one player, created lazily the first time the player
// is seen, optionally linked to a clan and to a clan-scoped Perm.
//
// Perm is a named block-interaction rule set owned by exactly one clan or one
// member.
//
// # Chunk keys
//
// ChunkKey packs chunk x into the low 32 bits and chunk z into the high 32 bits
// of an int64. ChunkCoord maps a block coordinate to its chunk (16 blocks wide).
// BoundingBox.ChunkKeys lists every chunk a box overlaps.
//
// All entity values are plain data and safe to copy. Clone returns deep copies
// for the types holding slices or pointers.
package domain
