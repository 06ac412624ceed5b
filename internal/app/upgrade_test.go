package app

import (
	"path/filepath"
	"testing"
	"time"

	"go-inventory-offline/internal/repository"
	pkgdb "go-inventory-offline/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clientSchema is the layout written by the previous desktop client: TEXT dates
// and no quantity CHECKs.
var clientSchema = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT UNIQUE, password TEXT, role TEXT)`,
	`CREATE TABLE students (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, class TEXT NOT NULL, previous_school TEXT, UNIQUE(name, class))`,
	`CREATE TABLE categories (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT UNIQUE NOT NULL)`,
	`CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, category_id INTEGER NOT NULL, name TEXT NOT NULL,
		UNIQUE(category_id, name), FOREIGN KEY(category_id) REFERENCES categories(id))`,
	`CREATE TABLE stock (id INTEGER PRIMARY KEY AUTOINCREMENT, product_id INTEGER NOT NULL, size TEXT, quantity INTEGER DEFAULT 0,
		FOREIGN KEY(product_id) REFERENCES products(id))`,
	`CREATE TABLE transactions (id INTEGER PRIMARY KEY AUTOINCREMENT, student_id INTEGER NOT NULL, stock_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL, date TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(student_id) REFERENCES students(id), FOREIGN KEY(stock_id) REFERENCES stock(id))`,
	`CREATE TABLE stock_logs (id INTEGER PRIMARY KEY AUTOINCREMENT, category_name TEXT, item_name TEXT, size TEXT,
		quantity INTEGER, action TEXT, date TEXT DEFAULT CURRENT_TIMESTAMP)`,
	`INSERT INTO categories (id, name) VALUES (1, 'Uniform'), (2, 'Kit')`,
	`INSERT INTO products (id, category_id, name) VALUES (1, 1, 'T-Shirt')`,
	`INSERT INTO stock (id, product_id, size, quantity) VALUES (1, 1, 'M', 20)`,
	`INSERT INTO students (id, name, class) VALUES (1, 'Asha', '5')`,
	`INSERT INTO transactions (id, student_id, stock_id, quantity, date) VALUES
		(1, 1, 1, 5, '2025-01-15T10:00:00.000Z'),
		(2, 1, 1, 0, '2025-01-15T10:00:00.000Z'),
		(3, 1, 1, 2, '2025-01-20 08:30:00')`,
	`INSERT INTO stock_logs (category_name, item_name, size, quantity, action, date) VALUES
		('Uniform', 'T-Shirt', 'M', 20, 'NEW', '2025-01-14T09:00:00.000Z')`,
}

func TestInitializeUpgradesClientDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	seed, err := pkgdb.ConnectDB(pkgdb.Options{Path: path})
	require.NoError(t, err)
	for _, stmt := range clientSchema {
		require.NoError(t, seed.Exec(stmt).Error, stmt)
	}
	require.NoError(t, pkgdb.Close(seed))

	cfg := testConfig(t)
	cfg.Database.Path = path
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Initialize())

	doc, err := a.Backup.Export()
	require.NoError(t, err)
	require.Len(t, doc.Transactions, 2)
	assert.Equal(t, uint(1), doc.Transactions[0].ID)
	assert.True(t, doc.Transactions[0].Date.Equal(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, uint(3), doc.Transactions[1].ID)
	assert.True(t, doc.Transactions[1].Date.Equal(time.Date(2025, 1, 20, 8, 30, 0, 0, time.UTC)))
	require.Len(t, doc.StockLogs, 1)
	assert.True(t, doc.StockLogs[0].Date.Equal(time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)))

	ranged, err := a.Dashboard.Orders(repository.OrderFilter{
		From: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 5, ranged[0].Items[0].Quantity)

	updated, err := a.Distribution.EditTransaction(1, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Quantity)
	assert.Equal(t, int64(17), stockQuantity(t, a, 1))

	deleted, err := a.Distribution.DeleteTransaction(1)
	require.NoError(t, err)
	assert.Equal(t, 8, deleted.Quantity)
	assert.Equal(t, int64(25), stockQuantity(t, a, 1))

	_, err = a.Gateway.Execute("UPDATE stock SET quantity = -1 WHERE id = 1")
	assert.Error(t, err)
	_, err = a.Gateway.Execute("INSERT INTO stock (product_id, size, quantity) VALUES (1, 'L', -3)")
	assert.Error(t, err)
	assert.Equal(t, int64(25), stockQuantity(t, a, 1))
}

func stockQuantity(t *testing.T, a *App, id uint) int64 {
	t.Helper()
	res, err := a.Gateway.Execute("SELECT quantity FROM stock WHERE id = ?", id)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	q, ok := res.Rows[0]["quantity"].(int64)
	require.True(t, ok)
	return q
}
