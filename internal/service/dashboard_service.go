package service

import (
	"errors"

	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/metrics"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/repository"

	"gorm.io/gorm"
)

// DashboardService serves the read-only views. None of these calls write.
type DashboardService interface {
	Inventory(category string) ([]model.InventoryRow, error)
	LowStock() ([]model.InventoryRow, error)
	Orders(filter repository.OrderFilter) ([]model.Order, error)
	History(limit int, category string) ([]model.StockLog, error)
	SizeSuggestions(categoryID uint, productName string) ([]model.SizeCount, error)
	Categories() ([]model.Category, error)
	Products(categoryID uint) ([]model.Product, error)
	Students() ([]model.Student, error)
	AvailableVariants(categoryID uint) ([]model.StockVariant, error)
	Stats() (*repository.DashboardStats, error)
}

type dashboardService struct {
	gw      *gateway.Gateway
	metrics *metrics.Metrics
}

func NewDashboardService(gw *gateway.Gateway, m *metrics.Metrics) DashboardService {
	return &dashboardService{gw: gw, metrics: m}
}

func (s *dashboardService) Inventory(category string) ([]model.InventoryRow, error) {
	var rows []model.InventoryRow
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		rows, err = repository.NewReportRepo(db).InventorySummary(category)
		return err
	})
	return rows, err
}

func (s *dashboardService) LowStock() ([]model.InventoryRow, error) {
	var rows []model.InventoryRow
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		rows, err = repository.NewReportRepo(db).LowStock(model.LowStockThreshold)
		return err
	})
	return rows, err
}

// Orders rebuilds orders from transactions sharing (student_id, date), newest first.
func (s *dashboardService) Orders(filter repository.OrderFilter) ([]model.Order, error) {
	var lines []repository.OrderLineRow
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		lines, err = repository.NewTransactionRepo(db).FindOrderLines(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return groupOrders(lines), nil
}

func groupOrders(lines []repository.OrderLineRow) []model.Order {
	orders := make([]model.Order, 0)
	index := make(map[string]int)
	for _, l := range lines {
		key := model.OrderKey(l.StudentID, l.Date)
		i, ok := index[key]
		if !ok {
			orders = append(orders, model.Order{
				StudentID:    l.StudentID,
				StudentName:  l.StudentName,
				StudentClass: l.StudentClass,
				Date:         l.Date,
			})
			i = len(orders) - 1
			index[key] = i
		}
		orders[i].Items = append(orders[i].Items, model.OrderLine{
			TransactionID: l.TransactionID,
			StockID:       l.StockID,
			Category:      l.Category,
			ItemName:      l.ItemName,
			Size:          l.Size,
			Quantity:      l.Quantity,
		})
	}
	return orders
}

func (s *dashboardService) History(limit int, category string) ([]model.StockLog, error) {
	var logs []model.StockLog
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		logs, err = repository.NewStockLogRepo(db).Recent(limit, category)
		return err
	})
	return logs, err
}

// SizeSuggestions lists the sizes already stocked for a product, with totals.
// An unknown product yields an empty list.
func (s *dashboardService) SizeSuggestions(categoryID uint, productName string) ([]model.SizeCount, error) {
	rows := make([]model.SizeCount, 0)
	err := s.gw.Read(func(db *gorm.DB) error {
		product, err := repository.NewProductRepo(db).FindByName(categoryID, productName)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		rows, err = repository.NewReportRepo(db).SizeCounts(product.ID)
		return err
	})
	return rows, err
}

func (s *dashboardService) Categories() ([]model.Category, error) {
	var categories []model.Category
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		categories, err = repository.NewCategoryRepo(db).FindAll()
		return err
	})
	return categories, err
}

func (s *dashboardService) Products(categoryID uint) ([]model.Product, error) {
	var products []model.Product
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		products, err = repository.NewProductRepo(db).FindByCategory(categoryID)
		return err
	})
	return products, err
}

func (s *dashboardService) Students() ([]model.Student, error) {
	var students []model.Student
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		students, err = repository.NewStudentRepo(db).FindAll()
		return err
	})
	return students, err
}

func (s *dashboardService) AvailableVariants(categoryID uint) ([]model.StockVariant, error) {
	var variants []model.StockVariant
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		variants, err = repository.NewReportRepo(db).AvailableVariants(categoryID)
		return err
	})
	return variants, err
}

func (s *dashboardService) Stats() (*repository.DashboardStats, error) {
	var stats *repository.DashboardStats
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		stats, err = repository.NewReportRepo(db).Counts()
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SetUnitsOnHand(stats.TotalUnits)
	return stats, nil
}
