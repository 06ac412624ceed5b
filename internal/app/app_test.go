package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/backup"
	"go-inventory-offline/internal/config"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Path = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Seed.AdminUsername = "sunshine"
	cfg.Seed.AdminPassword = "sunshine@123"
	cfg.Backup.Dir = t.TempDir()
	return cfg
}

func TestNewRejectsBadPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = " "

	_, err := New(cfg)
	var ie *apperr.InitializationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "connect", ie.Stage)
}

func TestInitializeOnce(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Gateway.Execute("SELECT * FROM categories")
	var nr *apperr.NotReadyError
	assert.True(t, errors.As(err, &nr))

	require.NoError(t, a.Initialize())
	assert.True(t, a.Gateway.Ready())
	assert.ErrorIs(t, a.Initialize(), apperr.ErrAlreadyInitialized)

	categories, err := a.Dashboard.Categories()
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	user, err := a.Auth.Authenticate("sunshine", "sunshine@123")
	require.NoError(t, err)
	assert.Equal(t, "sunshine", user.Username)
}

func TestBackupStoreDefaultsToFiles(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Initialize())

	store, err := a.BackupStore(context.Background())
	require.NoError(t, err)
	_, ok := store.(*backup.FileStore)
	require.True(t, ok)

	name, err := a.Backup.ExportTo(context.Background(), store)
	require.NoError(t, err)
	require.NoError(t, a.Backup.ImportFrom(context.Background(), store, name, true))
}

func TestBackupStoreS3NeedsBucket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.S3.Enabled = true
	cfg.Backup.S3.Region = "auto"
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.BackupStore(context.Background())
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Initialize())

	categories, err := a.Dashboard.Categories()
	require.NoError(t, err)
	require.Equal(t, model.CategoryUniform, categories[0].Name)
	_, err = a.Stock.ReceiveStock(&service.ReceiveRequest{CategoryID: categories[0].ID, Name: "Tie", Quantity: 25})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteMetrics(&buf))
	out := buf.String()
	assert.Contains(t, out, "# TYPE inventory_units_on_hand gauge")
	assert.Contains(t, out, "inventory_units_on_hand 25")
	assert.Contains(t, out, `inventory_stock_received_units_total{category="Uniform"} 25`)
	assert.Equal(t, float64(25), testutil.ToFloat64(a.Metrics.UnitsOnHand))

	count, err := testutil.GatherAndCount(a.Registry, "inventory_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	path := filepath.Join(t.TempDir(), "inventory.prom")
	require.NoError(t, a.WriteMetricsFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "inventory_units_on_hand 25")
}
