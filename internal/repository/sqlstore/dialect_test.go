package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"", DriverSQLite},
		{"sqlite", DriverSQLite},
		{"SQLite3", DriverSQLite},
		{"postgres", DriverPostgres},
		{" pgx ", DriverPostgres},
		{"postgresql", DriverPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := dialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.name())
		})
	}

	_, err := dialectFor("mysql")
	assert.Error(t, err)
}

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}
	got := d.rebind(`UPDATE claims SET clanID = ? WHERE ` + d.inSet("claimID"))
	assert.Equal(t, `UPDATE claims SET clanID = $1 WHERE claimID = ANY($2)`, got)

	assert.Equal(t, `SELECT 1`, d.rebind(`SELECT 1`))
	assert.Equal(t, `NOT (memberID = ANY(?))`, d.notInSet("memberID"))
}

func TestSQLiteSetsBindAsJSON(t *testing.T) {
	d := sqliteDialect{}
	assert.Equal(t, `a = ?`, d.rebind(`a = ?`))
	assert.Equal(t, `claimID IN (SELECT value FROM json_each(?))`, d.inSet("claimID"))

	set, err := d.stringSet([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, set)

	empty, err := d.intSet(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, empty)

	keys, err := d.intSet([]int64{-1, 4294967296})
	require.NoError(t, err)
	assert.Equal(t, `[-1,4294967296]`, keys)
}

func TestSchemaDiffersPerEngine(t *testing.T) {
	lite := sqliteDialect{}.schema()
	pg := postgresDialect{}.schema()
	require.Equal(t, len(lite), len(pg))

	assert.Contains(t, lite[0], "WITHOUT ROWID")
	assert.NotContains(t, pg[0], "WITHOUT ROWID")
	assert.Contains(t, pg[3], "DOUBLE PRECISION")
	assert.Contains(t, pg[4], "BIGINT")
	assert.NotContains(t, lite[4], "WITHOUT ROWID", "the chunk index has no primary key")
}
