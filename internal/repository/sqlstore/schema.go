package sqlstore

import "fmt"

// tablesInDropOrder lists tables children first so drops never trip a foreign key
var tablesInDropOrder = []string{"claimedChunks", "perms", "claims", "members", "clans"}

// schemaStatements returns the DDL for every table and index. floatType,
// bigIntType and tableSuffix carry the per-engine differences.
func schemaStatements(floatType, bigIntType, tableSuffix string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS clans (
		clanID TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		renderingOutline TEXT NOT NULL
	)` + tableSuffix,

		`CREATE TABLE IF NOT EXISTS members (
		memberID TEXT NOT NULL PRIMARY KEY,
		clanPermID TEXT,
		clanID TEXT,
		FOREIGN KEY (clanID) REFERENCES clans (clanID) ON DELETE SET NULL
	)` + tableSuffix,

		`CREATE TABLE IF NOT EXISTS perms (
		permID TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		breakBlocks TEXT NOT NULL DEFAULT '[]',
		breakBlocksWhitelist INTEGER NOT NULL DEFAULT 1,
		clanID TEXT,
		memberID TEXT,
		FOREIGN KEY (clanID) REFERENCES clans (clanID) ON DELETE CASCADE,
		FOREIGN KEY (memberID) REFERENCES members (memberID) ON DELETE CASCADE,
		CHECK ((clanID IS NULL) <> (memberID IS NULL))
	)` + tableSuffix,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS claims (
		claimID TEXT NOT NULL PRIMARY KEY,
		worldName TEXT NOT NULL,
		X1 %[1]s NOT NULL,
		X2 %[1]s NOT NULL,
		Y1 %[1]s NOT NULL,
		Y2 %[1]s NOT NULL,
		Z1 %[1]s NOT NULL,
		Z2 %[1]s NOT NULL,
		clanID TEXT NOT NULL,
		FOREIGN KEY (clanID) REFERENCES clans (clanID) ON DELETE CASCADE
	)`, floatType) + tableSuffix,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS claimedChunks (
		claimID TEXT NOT NULL,
		chunkKey %s NOT NULL,
		FOREIGN KEY (claimID) REFERENCES claims (claimID) ON DELETE CASCADE
	)`, bigIntType),

		`CREATE INDEX IF NOT EXISTS idx_members_clan ON members (clanID)`,
		`CREATE INDEX IF NOT EXISTS idx_perms_clan ON perms (clanID)`,
		`CREATE INDEX IF NOT EXISTS idx_perms_member ON perms (memberID)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_clan ON claims (clanID)`,
		`CREATE INDEX IF NOT EXISTS idx_claimed_chunks_claim ON claimedChunks (claimID)`,
		`CREATE INDEX IF NOT EXISTS idx_claimed_chunks_key ON claimedChunks (chunkKey)`,
	}
}

func dropStatements() []string {
	stmts := make([]string, 0, len(tablesInDropOrder))
	for _, table := range tablesInDropOrder {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+table)
	}
	return stmts
}
