package postgres

import (
	"io/fs"
	"testing"

	"github.com/coss1333/Qr-market/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStatementTimeoutMS(t *testing.T) {
	require.NoError(t, validateStatementTimeoutMS(0))
	require.NoError(t, validateStatementTimeoutMS(45000))

	err := validateStatementTimeoutMS(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of allowed range")

	require.Error(t, validateStatementTimeoutMS(dbStatementTimeoutMaxMS+1))
}

func TestAppendStatementTimeout(t *testing.T) {
	assert.Equal(t,
		"postgres://u@h/db?options=-c%20statement_timeout%3D5000",
		appendStatementTimeout("postgres://u@h/db", 5000))
	assert.Equal(t,
		"postgres://u@h/db?sslmode=disable&options=-c%20statement_timeout%3D5000",
		appendStatementTimeout("postgres://u@h/db?sslmode=disable", 5000))
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(embeddedMigrations, "migrations/*.up.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "migrations/0001_lots.up.sql", files[0])
}

func TestBuildCheckInsert(t *testing.T) {
	query, args := buildCheckInsert(make([]store.CheckRecord, 2))
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")
	assert.Len(t, args, 16)
}
