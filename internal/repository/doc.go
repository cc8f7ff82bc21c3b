// Package repository defines the data access interfaces for clanstore.
//
// The interfaces cover the four persisted entity kinds (clans, claims,
// members and perms) and the chunk index used for spatial lookups. The
// implementation lives in the sqlstore subpackage.
//
// # Semantics
//
// Get returns nil without an error when the entity is absent. Create is a
// no-op for an existing entity and Update is a no-op for an absent one. Any
// storage failure is reported as a fatal error after the connection has been
// dropped; the next call reconnects.
//
// # Relations
//
// A clan's claim, member and perm sets are not stored on the clan row. They
// are derived from the clanID column of the related tables, so the store
// keeps them consistent with every write inside the same transaction.
package repository
