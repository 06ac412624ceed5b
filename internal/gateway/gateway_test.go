package gateway

import (
	"errors"
	"sync"
	"testing"

	"go-inventory-offline/internal/apperr"
	pkgdb "go-inventory-offline/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := pkgdb.ConnectDB(pkgdb.Options{Path: "file:" + uuid.NewString() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })
	require.NoError(t, db.Exec(`CREATE TABLE parent (id INTEGER PRIMARY KEY, name TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id))`).Error)
	return New(db)
}

func TestIsRead(t *testing.T) {
	cases := map[string]bool{
		"SELECT * FROM parent":                  true,
		"  select 1":                            true,
		"-- comment\nSELECT 1":                  true,
		"/* x */ WITH a AS (SELECT 1) SELECT *": true,
		"(SELECT 1)":                            true,
		"PRAGMA table_info(parent)":             true,
		"INSERT INTO parent VALUES (1, 'a')":    false,
		"UPDATE parent SET name = 'b'":          false,
		"DELETE FROM parent":                    false,
		"CREATE TABLE x (id INTEGER)":           false,
		"":                                      false,
	}
	for q, want := range cases {
		assert.Equal(t, want, IsRead(q), q)
	}
}

func TestExecuteBeforeReady(t *testing.T) {
	g := setupGateway(t)

	_, err := g.Execute("SELECT * FROM parent")
	var notReady *apperr.NotReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, "SELECT * FROM parent", notReady.Statement)

	res, err := g.Execute("SELECT name FROM sqlite_master WHERE type = 'table'")
	require.NoError(t, err)
	assert.True(t, res.IsRead)
	assert.NotEmpty(t, res.Rows)

	_, err = g.Execute("PRAGMA foreign_keys = OFF")
	assert.True(t, errors.As(err, &notReady))

	_, err = g.Begin()
	assert.True(t, errors.As(err, &notReady))
	err = g.Transaction(func(tx *gorm.DB) error { return nil })
	assert.True(t, errors.As(err, &notReady))
}

func TestExecuteReadAndWrite(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()

	res, err := g.Execute("INSERT INTO parent (id, name) VALUES (?, ?), (?, ?)", 1, "a", 2, "b")
	require.NoError(t, err)
	assert.False(t, res.IsRead)
	assert.Equal(t, int64(2), res.RowsAffected)

	res, err = g.Execute("SELECT id, name FROM parent ORDER BY id")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a", res.Rows[0]["name"])
	assert.EqualValues(t, 2, res.Rows[1]["id"])

	res, err = g.Execute("SELECT id FROM parent WHERE id = ?", 99)
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestExecuteForeignKeyViolation(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()

	_, err := g.Execute("INSERT INTO child (id, parent_id) VALUES (1, 42)")
	var cv *apperr.ConstraintViolationError
	require.True(t, errors.As(err, &cv))
	assert.True(t, cv.ForeignKey())
}

func TestBeginCommitRollback(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()

	tx, err := g.Begin()
	require.NoError(t, err)
	_, err = tx.Execute("INSERT INTO parent (id, name) VALUES (1, 'kept')")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
	_, err = tx.Execute("SELECT 1")
	assert.ErrorIs(t, err, ErrTxDone)

	tx, err = g.Begin()
	require.NoError(t, err)
	_, err = tx.Execute("INSERT INTO parent (id, name) VALUES (2, 'dropped')")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	res, err := g.Execute("SELECT COUNT(*) AS n FROM parent")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Rows[0]["n"])
}

func TestTransactionRollsBackOnError(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()

	err := g.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO parent (id, name) VALUES (1, 'a')").Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO child (id, parent_id) VALUES (1, 99)").Error
	})
	require.Error(t, err)

	res, err := g.Execute("SELECT COUNT(*) AS n FROM parent")
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Rows[0]["n"])
}

func TestLogicalOperationsDoNotInterleave(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()
	_, err := g.Execute("INSERT INTO parent (id, name) VALUES (1, '0')")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Transaction(func(tx *gorm.DB) error {
				var n int
				if err := tx.Raw("SELECT CAST(name AS INTEGER) FROM parent WHERE id = 1").Scan(&n).Error; err != nil {
					return err
				}
				return tx.Exec("UPDATE parent SET name = ? WHERE id = 1", n+1).Error
			})
		}()
	}
	wg.Wait()

	res, err := g.Execute("SELECT CAST(name AS INTEGER) AS n FROM parent WHERE id = 1")
	require.NoError(t, err)
	assert.EqualValues(t, 20, res.Rows[0]["n"])
}

func TestExecuteReturnsPlainValues(t *testing.T) {
	g := setupGateway(t)
	g.MarkReady()
	_, err := g.Execute("INSERT INTO parent (id, name) VALUES (1, 'kept')")
	require.NoError(t, err)

	res, err := g.Execute("SELECT id, name, COUNT(*) AS n, 1.5 * id AS half, NULL AS nothing FROM parent")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "kept", row["name"])
	assert.Equal(t, int64(1), row["n"])
	assert.Equal(t, 1.5, row["half"])
	assert.Nil(t, row["nothing"])
	assert.Contains(t, row, "nothing")
}

func TestReadinessGateOnlyPassesIntrospection(t *testing.T) {
	g := setupGateway(t)

	cases := map[string]bool{
		"SELECT name FROM sqlite_master":                 true,
		"-- check\nselect sql from SQLITE_MASTER":        true,
		"PRAGMA table_info(sqlite_master)":               true,
		"PRAGMA table_info(parent)":                      false,
		"DELETE FROM parent -- sqlite_master":            false,
		"INSERT INTO parent (name) SELECT sqlite_master": false,
		"SELECT * FROM parent":                           false,
	}
	for q, allowed := range cases {
		_, err := g.Execute(q)
		var notReady *apperr.NotReadyError
		assert.Equal(t, !allowed, errors.As(err, &notReady), q)
	}
}
