package model

import "time"

// Transaction records a student receiving Quantity units of one stock variant.
// Rows sharing (StudentID, Date) form one order.
type Transaction struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	StudentID uint      `gorm:"column:student_id" json:"student_id"`
	StockID   uint      `gorm:"column:stock_id" json:"stock_id"`
	Quantity  int       `gorm:"column:quantity" json:"quantity"`
	Date      time.Time `gorm:"column:date" json:"date"`
}

func (Transaction) TableName() string { return "transactions" }
