package model

import "time"

type StockAction string

const (
	ActionCreate StockAction = "CREATE"
	ActionUpdate StockAction = "UPDATE"
	ActionDelete StockAction = "DELETE"
)

// StockLog is an append-only audit row. Quantity is the signed delta.
type StockLog struct {
	ID           uint        `gorm:"primaryKey;column:id" json:"id"`
	CategoryName string      `gorm:"column:category_name" json:"category_name"`
	ItemName     string      `gorm:"column:item_name" json:"item_name"`
	Size         string      `gorm:"column:size" json:"size"`
	Quantity     int         `gorm:"column:quantity" json:"quantity"`
	Action       StockAction `gorm:"column:action" json:"action"`
	Date         time.Time   `gorm:"column:date" json:"date"`
}

func (StockLog) TableName() string { return "stock_logs" }
