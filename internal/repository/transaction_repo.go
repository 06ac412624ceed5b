package repository

import (
	"strings"
	"time"

	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(transaction *model.Transaction) error
	FindByID(id uint) (*model.Transaction, error)
	FindAll() ([]model.Transaction, error)
	UpdateQuantity(id uint, quantity int) error
	Delete(id uint) (int64, error)
	// Repoint moves every transaction of the given stock rows onto target.
	Repoint(from []uint, target uint) error
	CountByStock(stockID uint) (int64, error)
	FindOrderLines(filter OrderFilter) ([]OrderLineRow, error)
}

// OrderFilter narrows the order history. Zero values mean "no filter".
type OrderFilter struct {
	From     time.Time
	To       time.Time
	Search   string
	Category string
}

// OrderLineRow is one transaction joined with its student, product and category.
type OrderLineRow struct {
	TransactionID uint      `gorm:"column:transaction_id"`
	StudentID     uint      `gorm:"column:student_id"`
	StudentName   string    `gorm:"column:student_name"`
	StudentClass  string    `gorm:"column:student_class"`
	StockID       uint      `gorm:"column:stock_id"`
	Category      string    `gorm:"column:category"`
	ItemName      string    `gorm:"column:item_name"`
	Size          *string   `gorm:"column:size"`
	Quantity      int       `gorm:"column:quantity"`
	Date          time.Time `gorm:"column:date"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(transaction *model.Transaction) error {
	return r.db.Create(transaction).Error
}

func (r *transactionRepo) FindByID(id uint) (*model.Transaction, error) {
	var transaction model.Transaction
	if err := r.db.First(&transaction, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepo) FindAll() ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.Order("date DESC, id ASC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) UpdateQuantity(id uint, quantity int) error {
	return r.db.Model(&model.Transaction{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *transactionRepo) Delete(id uint) (int64, error) {
	res := r.db.Delete(&model.Transaction{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *transactionRepo) Repoint(from []uint, target uint) error {
	if len(from) == 0 {
		return nil
	}
	return r.db.Model(&model.Transaction{}).Where("stock_id IN ?", from).Update("stock_id", target).Error
}

func (r *transactionRepo) CountByStock(stockID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Transaction{}).Where("stock_id = ?", stockID).Count(&count).Error
	return count, err
}

func (r *transactionRepo) FindOrderLines(filter OrderFilter) ([]OrderLineRow, error) {
	q := r.db.Table("transactions t").
		Select(`t.id AS transaction_id, stu.id AS student_id, stu.name AS student_name, stu.class AS student_class,
			s.id AS stock_id, c.name AS category, p.name AS item_name, s.size AS size, t.quantity AS quantity, t.date AS date`).
		Joins("JOIN students stu ON stu.id = t.student_id").
		Joins("JOIN stock s ON s.id = t.stock_id").
		Joins("JOIN products p ON p.id = s.product_id").
		Joins("JOIN categories c ON c.id = p.category_id")

	if !filter.From.IsZero() {
		q = q.Where("t.date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("t.date <= ?", filter.To.UTC())
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(stu.name) LIKE ? OR LOWER(stu.class) LIKE ?)", like, like)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Where("LOWER(c.name) = LOWER(?)", c)
	}

	var rows []OrderLineRow
	err := q.Order("t.date DESC, t.student_id ASC, t.id ASC").Scan(&rows).Error
	return rows, err
}
