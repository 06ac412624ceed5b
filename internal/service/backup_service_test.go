package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/backup"
	"go-inventory-offline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populate builds a small but complete data set touching every table.
func populate(t *testing.T, f *fixture) {
	t.Helper()
	shirt := f.receive(t, f.uniformID, "T-Shirt", "M", 25)
	bottle := f.receive(t, f.kitID, "Water Bottle", "", 40)
	_, err := f.distribution.Distribute(&DistributeRequest{
		StudentName: "Asha", StudentClass: "5", PreviousSchool: "Hillside",
		Items: []CartItem{{StockID: shirt.StockID, Quantity: 2}, {StockID: bottle.StockID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.auth.SetSecurityQuestion("sunshine", "First pet?", "Rex"))
}

func exportJSON(t *testing.T, f *fixture) []byte {
	t.Helper()
	doc, err := f.backup.Export()
	require.NoError(t, err)
	data, err := backup.Encode(doc)
	require.NoError(t, err)
	return data
}

func TestExportImportRoundTrip(t *testing.T) {
	f := setup(t)
	populate(t, f)
	before := exportJSON(t, f)

	// Changes after the backup are discarded by the restore.
	f.receive(t, f.kitID, "Crayons", "", 5)

	require.NoError(t, f.backup.ImportData(before, true))
	assert.JSONEq(t, string(before), string(exportJSON(t, f)))
	assert.Equal(t, 1, f.notifier.restored)

	// Restored ids keep working with the live services.
	_, err := f.auth.Authenticate("sunshine", "sunshine@123")
	require.NoError(t, err)
	res := f.receive(t, f.uniformID, "T-Shirt", "m", 1)
	assert.Equal(t, model.ActionUpdate, res.Action)
	assert.Equal(t, 24, res.Total)
}

func TestImportMissingTableLeavesDataUnchanged(t *testing.T) {
	f := setup(t)
	populate(t, f)
	before := exportJSON(t, f)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(before, &raw))
	delete(raw, backup.TableStock)
	broken, err := json.Marshal(raw)
	require.NoError(t, err)

	err = f.backup.ImportData(broken, true)
	var ive *apperr.ImportValidationError
	require.True(t, errors.As(err, &ive), "got %v", err)
	assert.Equal(t, []string{backup.TableStock}, ive.Missing)

	assert.JSONEq(t, string(before), string(exportJSON(t, f)))
	assert.Zero(t, f.notifier.restored)
}

func TestImportRequiresConfirmation(t *testing.T) {
	f := setup(t)
	populate(t, f)
	before := exportJSON(t, f)

	empty := &backup.Document{Users: []model.User{}, Stock: []model.Stock{}, Transactions: []model.Transaction{}}
	assert.ErrorIs(t, f.backup.Import(empty, false), ErrImportNotConfirmed)
	assert.JSONEq(t, string(before), string(exportJSON(t, f)))

	var ive *apperr.ImportValidationError
	assert.True(t, errors.As(f.backup.Import(&backup.Document{}, true), &ive))
}

func TestImportBrokenReferencesRollsBack(t *testing.T) {
	f := setup(t)
	populate(t, f)
	before := exportJSON(t, f)

	doc := &backup.Document{
		Users:        []model.User{},
		Stock:        []model.Stock{{ID: 1, ProductID: 77, Quantity: 3}},
		Transactions: []model.Transaction{},
	}
	err := f.backup.Import(doc, true)
	var cv *apperr.ConstraintViolationError
	require.True(t, errors.As(err, &cv), "got %v", err)

	assert.JSONEq(t, string(before), string(exportJSON(t, f)))
}

func TestExportToFileStore(t *testing.T) {
	f := setup(t)
	populate(t, f)
	ctx := context.Background()
	store := backup.NewFileStore(t.TempDir())

	name, err := f.backup.ExportTo(ctx, store)
	require.NoError(t, err)
	assert.Regexp(t, `^sunshine_backup_\d{4}-\d{2}-\d{2}\.json$`, name)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	require.NoError(t, f.backup.ImportFrom(ctx, store, name, true))
	assert.ErrorIs(t, f.backup.ImportFrom(ctx, store, "missing.json", true), backup.ErrNotExist)
}
