package repository

import (
	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

type StockRepository interface {
	Create(stock *model.Stock) error
	FindByID(id uint) (*model.Stock, error)
	// FindVariant looks up (product_id, size). A nil size matches with IS NULL;
	// a non-nil size matches case-insensitively.
	FindVariant(productID uint, size *string) (*model.Stock, error)
	FindByProduct(productID uint) ([]model.Stock, error)
	SetQuantity(id uint, quantity int) error
	// Decrement subtracts amount only when enough is on hand and reports whether it did.
	Decrement(id uint, amount int) (bool, error)
	Increment(id uint, amount int) error
	Repoint(id, productID uint, size *string) error
	Delete(id uint) error
}

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepo(db *gorm.DB) StockRepository {
	return &stockRepo{db}
}

func (r *stockRepo) Create(stock *model.Stock) error {
	return r.db.Create(stock).Error
}

func (r *stockRepo) FindByID(id uint) (*model.Stock, error) {
	var stock model.Stock
	if err := r.db.First(&stock, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepo) FindVariant(productID uint, size *string) (*model.Stock, error) {
	var stock model.Stock
	q := r.db.Where("product_id = ?", productID)
	if size == nil {
		q = q.Where("size IS NULL")
	} else {
		q = q.Where("LOWER(size) = LOWER(?)", *size)
	}
	if err := q.Order("id ASC").First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepo) FindByProduct(productID uint) ([]model.Stock, error) {
	var stocks []model.Stock
	err := r.db.Where("product_id = ?", productID).Order("id ASC").Find(&stocks).Error
	return stocks, err
}

func (r *stockRepo) SetQuantity(id uint, quantity int) error {
	return r.db.Model(&model.Stock{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *stockRepo) Decrement(id uint, amount int) (bool, error) {
	res := r.db.Model(&model.Stock{}).
		Where("id = ? AND quantity >= ?", id, amount).
		Update("quantity", gorm.Expr("quantity - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockRepo) Increment(id uint, amount int) error {
	return r.db.Model(&model.Stock{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", amount)).Error
}

func (r *stockRepo) Repoint(id, productID uint, size *string) error {
	return r.db.Model(&model.Stock{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"product_id": productID,
			"size":       size,
		}).Error
}

func (r *stockRepo) Delete(id uint) error {
	return r.db.Delete(&model.Stock{}, "id = ?", id).Error
}
