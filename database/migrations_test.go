package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersions(t *testing.T) {
	versions, err := MigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_init", versions[0])
	assert.IsNonDecreasing(t, versions)
}

func TestInitMigration_Constraints(t *testing.T) {
	content, err := migrationFiles.ReadFile("migrations/0001_init.up.sql")
	require.NoError(t, err)
	sql := string(content)

	assert.Contains(t, sql, "matches_active_seeker")
	assert.True(t, strings.Contains(sql, "reserved_by IS NULL"), "status/reservedBy coupling check missing")
	assert.Contains(t, sql, "ON DELETE CASCADE")
}
