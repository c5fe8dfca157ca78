package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtube-rag/internal/config"
)

// newOfflineArchive builds an archive whose queries can be rendered without a server.
func newOfflineArchive(t *testing.T) *Archive {
	t.Helper()
	sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: "postgres://rag@localhost:5432/rag?sslmode=disable"})
	require.NoError(t, err)
	a := NewArchive(NewDB(sqldb, false))
	t.Cleanup(func() { a.Close() })
	return a
}

func TestConnectDB_EmptyDSN(t *testing.T) {
	_, err := ConnectDB(&config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestArchive_InsertQuery(t *testing.T) {
	a := newOfflineArchive(t)

	query := a.insertQuery("s-1", "ejGEddhynE0", "what's up?", "not much").String()
	assert.Contains(t, query, `INSERT INTO "exchanges"`)
	assert.Contains(t, query, `'s-1'`)
	assert.Contains(t, query, `'what''s up?'`)
	assert.Contains(t, query, "DEFAULT")
}

func TestArchive_ListQuery(t *testing.T) {
	a := newOfflineArchive(t)
	var records []ExchangeRecord

	query := a.listQuery(&records, "s-1", 10).String()
	assert.Contains(t, query, `FROM "exchanges" AS "e"`)
	assert.Contains(t, query, `e.session_id = 's-1'`)
	assert.Contains(t, query, "ORDER BY e.id DESC LIMIT 10")

	query = a.listQuery(&records, "", 50).String()
	assert.Contains(t, query, `FROM "exchanges" AS "e" ORDER BY e.id DESC LIMIT 50`)

	query = a.listQuery(&records, "", 0).String()
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
}

func TestCreateTableQuery(t *testing.T) {
	a := newOfflineArchive(t)
	query := a.db.NewCreateTable().Model((*ExchangeRecord)(nil)).IfNotExists().String()
	assert.Contains(t, query, `CREATE TABLE IF NOT EXISTS "exchanges"`)
	assert.Contains(t, query, `"session_id"`)
	assert.Contains(t, query, `DEFAULT current_timestamp`)
}
