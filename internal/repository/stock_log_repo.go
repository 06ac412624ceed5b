package repository

import (
	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

// StockLogRepository is append-only: there is no update or delete.
type StockLogRepository interface {
	Create(entry *model.StockLog) error
	Recent(limit int, category string) ([]model.StockLog, error)
}

type stockLogRepo struct {
	db *gorm.DB
}

func NewStockLogRepo(db *gorm.DB) StockLogRepository {
	return &stockLogRepo{db}
}

func (r *stockLogRepo) Create(entry *model.StockLog) error {
	return r.db.Create(entry).Error
}

func (r *stockLogRepo) Recent(limit int, category string) ([]model.StockLog, error) {
	var logs []model.StockLog
	q := r.db.Order("date DESC, id DESC")
	if category != "" {
		q = q.Where("LOWER(category_name) = LOWER(?)", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}
