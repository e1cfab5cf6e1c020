package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		require.False(t, byVersion[version][direction], "duplicate %s migration for version %s", direction, version)
		byVersion[version][direction] = true
	}

	require.NotEmpty(t, byVersion, "no migrations discovered")
	for version, dirs := range byVersion {
		require.True(t, dirs["up"] && dirs["down"], "version %s must include both up and down files", version)
	}
}

func TestSchemaCoversEveryAllowedTable(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/0001_journal_schema.up.sql")
	require.NoError(t, err)

	for table := range allowedTables {
		require.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestMigrateURLUsesPgxScheme(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/journal", migrateURL("postgres://u:p@db:5432/journal"))
	require.Equal(t, "pgx5://db/journal", migrateURL("postgresql://db/journal"))
	require.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}
