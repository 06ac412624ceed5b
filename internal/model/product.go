package model

// Category groups products. The seed set is Uniform and Kit.
type Category struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;uniqueIndex" json:"name"`
}

func (Category) TableName() string { return "categories" }

const (
	CategoryUniform = "Uniform"
	CategoryKit     = "Kit"
)

var DefaultCategories = []Category{
	{Name: CategoryUniform},
	{Name: CategoryKit},
}

// Product is an item type independent of size, unique on (category_id, name).
type Product struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	CategoryID uint   `gorm:"column:category_id" json:"category_id"`
	Name       string `gorm:"column:name" json:"name"`
}

func (Product) TableName() string { return "products" }

// Stock is one (product, size) variant and its quantity on hand.
// A nil Size is the "no size" variant; an empty string is never stored.
type Stock struct {
	ID        uint    `gorm:"primaryKey;column:id" json:"id"`
	ProductID uint    `gorm:"column:product_id" json:"product_id"`
	Size      *string `gorm:"column:size" json:"size"`
	Quantity  int     `gorm:"column:quantity" json:"quantity"`
}

func (Stock) TableName() string { return "stock" }

// SizeLabel returns the size or "-" for the no-size variant.
func (s Stock) SizeLabel() string { return SizeLabel(s.Size) }

// LowStockThreshold is inclusive: a quantity at or below it is low.
const LowStockThreshold = 15

func IsLowStock(quantity int) bool { return quantity <= LowStockThreshold }

// NoSize is the sentinel written to stock_logs and shown in aggregate rows for the no-size variant.
const NoSize = "-"

func SizeLabel(size *string) string {
	if size == nil || *size == "" {
		return NoSize
	}
	return *size
}

// DisplayName renders "Name (Size)" or just "Name" for the no-size variant.
func DisplayName(name string, size *string) string {
	if size == nil || *size == "" {
		return name
	}
	return name + " (" + *size + ")"
}
