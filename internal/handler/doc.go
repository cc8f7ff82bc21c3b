// Package handler implements the clanstore admin HTTP API.
//
// ClanHandler exposes clans, claims, members and perms as JSON resources,
// plus chunk index lookups and whole-store snapshot export and import.
// Register adds its routes to a ServeMux using method patterns.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201,
// 204). Error responses return JSON with {error, details} structure. Missing
// entities map to 404, rule violations (name taken, overlapping claim,
// already in a clan) to 409, rejected entities to 400 and fatal storage
// errors to 503.
//
// # Middleware
//
// Chain composes Logger, Recover and CORS around the mux.
package handler
