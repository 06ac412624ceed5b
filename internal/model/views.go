package model

import (
	"fmt"
	"time"
)

// InventoryRow is the aggregate of every stock row sharing (category, product name, size).
type InventoryRow struct {
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Size     *string `json:"size"`
	Total    int     `json:"total"`
}

func (r InventoryRow) IsLow() bool { return IsLowStock(r.Total) }

// OrderLine is one transaction inside an Order.
type OrderLine struct {
	TransactionID uint    `json:"transaction_id"`
	StockID       uint    `json:"stock_id"`
	Category      string  `json:"category"`
	ItemName      string  `json:"item_name"`
	Size          *string `json:"size"`
	Quantity      int     `json:"quantity"`
}

// Order groups the transactions of one distribution: same student, same timestamp.
type Order struct {
	StudentID    uint        `json:"student_id"`
	StudentName  string      `json:"student_name"`
	StudentClass string      `json:"student_class"`
	Date         time.Time   `json:"date"`
	Items        []OrderLine `json:"items"`
}

// Key is the composite identity "<student_id>_<date>" used to address an order.
func (o Order) Key() string {
	return OrderKey(o.StudentID, o.Date)
}

// SizeCount is a size suggestion with its total quantity.
type SizeCount struct {
	Size  string `json:"size"`
	Count int    `json:"count"`
}

// StockVariant is a distributable variant with its product name.
type StockVariant struct {
	StockID     uint    `json:"stock_id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Size        *string `json:"size"`
	Quantity    int     `json:"quantity"`
}

func OrderKey(studentID uint, date time.Time) string {
	return fmt.Sprintf("%d_%s", studentID, date.UTC().Format(time.RFC3339Nano))
}
