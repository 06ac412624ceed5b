package repository

import (
	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository interface {
	FindAll() ([]model.Category, error)
	FindByID(id uint) (*model.Category, error)
	FindByName(name string) (*model.Category, error)
}

type categoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db}
}

func (r *categoryRepo) FindAll() ([]model.Category, error) {
	var categories []model.Category
	err := r.db.Order("id ASC").Find(&categories).Error
	return categories, err
}

func (r *categoryRepo) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) FindByName(name string) (*model.Category, error) {
	var category model.Category
	if err := r.db.Where("LOWER(name) = LOWER(?)", name).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

type ProductRepository interface {
	Create(product *model.Product) error
	FindByID(id uint) (*model.Product, error)
	// FindByName matches case-insensitively within one category.
	FindByName(categoryID uint, name string) (*model.Product, error)
	FindByCategory(categoryID uint) ([]model.Product, error)
	Delete(id uint) error
	CountStock(productID uint) (int64, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *productRepo) FindByID(id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByName(categoryID uint, name string) (*model.Product, error) {
	var product model.Product
	err := r.db.Where("category_id = ? AND LOWER(name) = LOWER(?)", categoryID, name).
		Order("id ASC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByCategory(categoryID uint) ([]model.Product, error) {
	var products []model.Product
	err := r.db.Where("category_id = ?", categoryID).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) Delete(id uint) error {
	return r.db.Delete(&model.Product{}, "id = ?", id).Error
}

func (r *productRepo) CountStock(productID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Stock{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}
