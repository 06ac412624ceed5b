package repository

import (
	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

// ReportRepository holds the read-only aggregate queries behind the dashboard.
type ReportRepository interface {
	InventorySummary(category string) ([]model.InventoryRow, error)
	LowStock(threshold int) ([]model.InventoryRow, error)
	SizeCounts(productID uint) ([]model.SizeCount, error)
	AvailableVariants(categoryID uint) ([]model.StockVariant, error)
	Counts() (*DashboardStats, error)
}

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalProducts     int64 `json:"total_products"`
	TotalUnits        int64 `json:"total_units"`
	LowStockCount     int64 `json:"low_stock_count"`
	TotalStudents     int64 `json:"total_students"`
	TotalTransactions int64 `json:"total_transactions"`
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) summaryQuery() *gorm.DB {
	return r.db.Table("stock s").
		Select("c.name AS category, p.name AS name, s.size AS size, COALESCE(SUM(s.quantity), 0) AS total").
		Joins("JOIN products p ON p.id = s.product_id").
		Joins("JOIN categories c ON c.id = p.category_id").
		Group("c.name, p.name, s.size")
}

func (r *reportRepo) InventorySummary(category string) ([]model.InventoryRow, error) {
	q := r.summaryQuery()
	if category != "" {
		q = q.Where("LOWER(c.name) = LOWER(?)", category)
	}
	var rows []model.InventoryRow
	err := q.Order("c.name ASC, p.name ASC, s.size ASC").Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) LowStock(threshold int) ([]model.InventoryRow, error) {
	var rows []model.InventoryRow
	err := r.summaryQuery().
		Having("COALESCE(SUM(s.quantity), 0) <= ?", threshold).
		Order("p.name ASC, s.size ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) SizeCounts(productID uint) ([]model.SizeCount, error) {
	var rows []model.SizeCount
	err := r.db.Model(&model.Stock{}).
		Select("size AS size, SUM(quantity) AS count").
		Where("product_id = ? AND size IS NOT NULL", productID).
		Group("size").
		Order("size ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) AvailableVariants(categoryID uint) ([]model.StockVariant, error) {
	var rows []model.StockVariant
	err := r.db.Table("stock s").
		Select("s.id AS stock_id, p.id AS product_id, p.name AS product_name, s.size AS size, s.quantity AS quantity").
		Joins("JOIN products p ON p.id = s.product_id").
		Where("p.category_id = ? AND s.quantity > 0", categoryID).
		Order("p.name ASC, s.size ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) Counts() (*DashboardStats, error) {
	var stats DashboardStats

	if err := r.db.Model(&model.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Stock{}).Select("COALESCE(SUM(quantity), 0)").Scan(&stats.TotalUnits).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Student{}).Count(&stats.TotalStudents).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).Count(&stats.TotalTransactions).Error; err != nil {
		return nil, err
	}
	low, err := r.LowStock(model.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	stats.LowStockCount = int64(len(low))

	return &stats, nil
}
