// Package service implements the clan gameplay operations on top of the
// entity store.
//
// The store only guarantees referential integrity. Rules that involve more
// than one entity live here: a player belongs to at most one clan, clan names
// are unique, claims never overlap within a world and breaking a block inside
// a claim requires membership of the owning clan plus a perm that allows the
// material.
//
// # Events
//
// Every successful mutation is published on the EventBus. Publishing never
// blocks; slow subscribers miss events.
//
// # Snapshots
//
// Snapshot collects every stored entity. Export writes it through a codec
// and Import replays a snapshot into the store, skipping entities that
// already exist.
package service
