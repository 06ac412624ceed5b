package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/backup"
	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/metrics"

	"gorm.io/gorm"
)

var ErrImportNotConfirmed = errors.New("import replaces all data and must be confirmed")

type BackupService interface {
	Export() (*backup.Document, error)
	// ExportTo saves today's document to store and returns its name.
	ExportTo(ctx context.Context, store backup.Store) (string, error)
	Import(doc *backup.Document, confirmed bool) error
	ImportData(data []byte, confirmed bool) error
	ImportFrom(ctx context.Context, store backup.Store, name string, confirmed bool) error
}

// deleteOrder lists tables children first. Inserts run in the reverse order.
var deleteOrder = []string{
	backup.TableStockLogs,
	backup.TableTransactions,
	backup.TableStock,
	backup.TableProducts,
	backup.TableCategories,
	backup.TableStudents,
	backup.TableUsers,
}

const insertBatchSize = 200

type backupService struct {
	gw       *gateway.Gateway
	notifier RestoreNotifier
	metrics  *metrics.Metrics
}

func NewBackupService(gw *gateway.Gateway, notifier RestoreNotifier, m *metrics.Metrics) BackupService {
	return &backupService{
		gw:       gw,
		notifier: notifier,
		metrics:  m,
	}
}

func (s *backupService) Export() (*backup.Document, error) {
	doc := &backup.Document{}
	err := s.gw.Read(func(db *gorm.DB) error {
		reads := []struct {
			table string
			dest  interface{}
		}{
			{backup.TableUsers, &doc.Users},
			{backup.TableStudents, &doc.Students},
			{backup.TableCategories, &doc.Categories},
			{backup.TableProducts, &doc.Products},
			{backup.TableStock, &doc.Stock},
			{backup.TableTransactions, &doc.Transactions},
			{backup.TableStockLogs, &doc.StockLogs},
		}
		for _, r := range reads {
			if err := db.Order("id ASC").Find(r.dest).Error; err != nil {
				return fmt.Errorf("export %s: %w", r.table, err)
			}
		}
		return nil
	})
	s.metrics.ObserveOperation("export", err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *backupService) ExportTo(ctx context.Context, store backup.Store) (string, error) {
	doc, err := s.Export()
	if err != nil {
		return "", err
	}
	data, err := backup.Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	name := backup.FileName(now())
	if err := store.Save(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

func (s *backupService) ImportData(data []byte, confirmed bool) error {
	doc, err := backup.Decode(data)
	if err != nil {
		s.metrics.ObserveImport(err)
		return err
	}
	return s.Import(doc, confirmed)
}

func (s *backupService) ImportFrom(ctx context.Context, store backup.Store, name string, confirmed bool) error {
	data, err := store.Load(ctx, name)
	if err != nil {
		return err
	}
	return s.ImportData(data, confirmed)
}

// Import replaces every table with the document's rows inside one transaction,
// keeping the original primary keys. Any failure leaves the database untouched.
func (s *backupService) Import(doc *backup.Document, confirmed bool) error {
	if doc == nil {
		return &apperr.ImportValidationError{Reason: "empty document"}
	}
	if doc.Users == nil || doc.Stock == nil || doc.Transactions == nil {
		var missing []string
		if doc.Users == nil {
			missing = append(missing, backup.TableUsers)
		}
		if doc.Stock == nil {
			missing = append(missing, backup.TableStock)
		}
		if doc.Transactions == nil {
			missing = append(missing, backup.TableTransactions)
		}
		return &apperr.ImportValidationError{Missing: missing}
	}
	if !confirmed {
		return ErrImportNotConfirmed
	}

	err := s.gw.Transaction(func(tx *gorm.DB) error {
		// 1. Clear, children first
		for _, table := range deleteOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		// 2. Reload, parents first, ids preserved
		inserts := []struct {
			table string
			rows  interface{}
			n     int
		}{
			{backup.TableUsers, &doc.Users, len(doc.Users)},
			{backup.TableStudents, &doc.Students, len(doc.Students)},
			{backup.TableCategories, &doc.Categories, len(doc.Categories)},
			{backup.TableProducts, &doc.Products, len(doc.Products)},
			{backup.TableStock, &doc.Stock, len(doc.Stock)},
			{backup.TableTransactions, &doc.Transactions, len(doc.Transactions)},
			{backup.TableStockLogs, &doc.StockLogs, len(doc.StockLogs)},
		}
		for _, ins := range inserts {
			if ins.n == 0 {
				continue
			}
			if err := tx.CreateInBatches(ins.rows, insertBatchSize).Error; err != nil {
				return apperr.Constraint("restore "+ins.table, err)
			}
		}
		return nil
	})
	s.metrics.ObserveImport(err)
	if err != nil {
		log.Printf("[Backup] Import failed, rolled back: %v", err)
		return err
	}

	log.Printf("[Backup] Import complete: %v", doc.Counts())
	if s.notifier != nil {
		s.notifier.NotifyDataRestored()
	}
	return nil
}
