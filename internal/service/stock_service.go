package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/metrics"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/repository"
	"go-inventory-offline/pkg/validator"

	"gorm.io/gorm"
)

type StockService interface {
	ReceiveStock(req *ReceiveRequest) (*ReceiveResult, error)
	EditItem(req *EditItemRequest) (*EditItemResult, error)
	DeleteItem(ref *ItemRef) (*DeleteItemResult, error)
	ZeroItem(ref *ItemRef) error
}

type ReceiveRequest struct {
	CategoryID uint   `json:"category_id" validate:"required"`
	Name       string `json:"name" validate:"notblank"`
	Size       string `json:"size"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

type ReceiveResult struct {
	StockID     uint              `json:"stock_id"`
	Total       int               `json:"total"`
	Action      model.StockAction `json:"action"`
	DisplayName string            `json:"display_name"`
	LowStock    bool              `json:"low_stock"`
}

// ItemRef names one aggregate row: category name, product name and size as displayed.
type ItemRef struct {
	Category string `json:"category" validate:"notblank"`
	Name     string `json:"name" validate:"notblank"`
	Size     string `json:"size"`
}

// EditItemRequest rewrites the aggregate row Old into (NewName, NewSize) with Quantity on hand.
type EditItemRequest struct {
	Old      ItemRef `json:"old"`
	NewName  string  `json:"new_name" validate:"notblank"`
	NewSize  string  `json:"new_size"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

type EditItemResult struct {
	StockID  uint `json:"stock_id"`
	Total    int  `json:"total"`
	Merged   bool `json:"merged"`
	LowStock bool `json:"low_stock"`
}

type DeleteItemResult struct {
	Removed        int  `json:"removed"`
	ProductRemoved bool `json:"product_removed"`
}

type stockService struct {
	gw       *gateway.Gateway
	notifier LowStockNotifier
	metrics  *metrics.Metrics
}

func NewStockService(gw *gateway.Gateway, notifier LowStockNotifier, m *metrics.Metrics) StockService {
	return &stockService{
		gw:       gw,
		notifier: notifier,
		metrics:  m,
	}
}

func (s *stockService) ReceiveStock(req *ReceiveRequest) (*ReceiveResult, error) {
	// 1. Validate before touching the database
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	name := normalizeName(req.Name)
	size := normalizeSize(req.Size)

	var result ReceiveResult
	var categoryName string
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		// 2. Category name for the log comes from the table
		category, err := repository.NewCategoryRepo(tx).FindByID(req.CategoryID)
		if err != nil {
			return apperr.NotFound("category", err)
		}
		categoryName = category.Name

		// 3. Find or create the product
		product, err := findOrCreateProduct(tx, category.ID, name)
		if err != nil {
			return err
		}

		// 4. Find or create the variant
		stocks := repository.NewStockRepo(tx)
		existing, err := stocks.FindVariant(product.ID, size)
		switch {
		case err == nil:
			result.Total = existing.Quantity + req.Quantity
			if err := stocks.SetQuantity(existing.ID, result.Total); err != nil {
				return err
			}
			result.StockID = existing.ID
			result.Action = model.ActionUpdate
			size = existing.Size
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := &model.Stock{ProductID: product.ID, Size: size, Quantity: req.Quantity}
			if err := stocks.Create(row); err != nil {
				return err
			}
			result.StockID = row.ID
			result.Total = req.Quantity
			result.Action = model.ActionCreate
		default:
			return err
		}

		// 5. Audit
		result.DisplayName = model.DisplayName(product.Name, size)
		return appendStockLog(tx, categoryName, product.Name, size, req.Quantity, result.Action)
	})
	s.metrics.ObserveOperation("receive_stock", err)
	if err != nil {
		return nil, apperr.Constraint("receive stock", err)
	}

	log.Printf("[Stock] %s %s: +%d, total %d", result.Action, result.DisplayName, req.Quantity, result.Total)
	s.metrics.AddReceived(categoryName, req.Quantity)

	// 6. Best-effort, after commit
	result.LowStock = model.IsLowStock(result.Total)
	if notifyLowStock(s.notifier, result.DisplayName, result.Total) {
		s.metrics.IncLowStock()
	}
	return &result, nil
}

func (s *stockService) EditItem(req *EditItemRequest) (*EditItemResult, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validator.Validate(&req.Old); err != nil {
		return nil, err
	}
	newName := normalizeName(req.NewName)
	newSize := normalizeSize(req.NewSize)

	var result EditItemResult
	var displayName string
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		products := repository.NewProductRepo(tx)
		stocks := repository.NewStockRepo(tx)

		// 1. Resolve the aggregate row through its old identity
		category, oldProduct, oldStock, err := resolveItem(tx, &req.Old)
		if err != nil {
			return err
		}

		// 2. Target product: same product, an existing one, or a new one
		target := oldProduct
		if !strings.EqualFold(newName, oldProduct.Name) {
			target, err = findOrCreateProduct(tx, category.ID, newName)
			if err != nil {
				return err
			}
		}

		// 3. Merge on collision with another variant
		before := oldStock.Quantity
		survivor := oldStock.ID
		total := req.Quantity
		collision, err := stocks.FindVariant(target.ID, newSize)
		switch {
		case err == nil && collision.ID != oldStock.ID:
			newSize = collision.Size
			before += collision.Quantity
			total += collision.Quantity
			loser := collision.ID
			if collision.ID < oldStock.ID {
				survivor, loser = collision.ID, oldStock.ID
			}
			if err := repository.NewTransactionRepo(tx).Repoint([]uint{loser}, survivor); err != nil {
				return err
			}
			if err := stocks.Delete(loser); err != nil {
				return err
			}
			result.Merged = true
			log.Printf("[Stock] Merged stock %d into %d", loser, survivor)
		case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		if err := stocks.Repoint(survivor, target.ID, newSize); err != nil {
			return err
		}
		if err := stocks.SetQuantity(survivor, total); err != nil {
			return err
		}

		// 4. Drop the old product when nothing references it any more
		if oldProduct.ID != target.ID {
			if _, err := removeProductIfEmpty(products, oldProduct.ID); err != nil {
				return err
			}
		}

		result.StockID = survivor
		result.Total = total
		displayName = model.DisplayName(target.Name, newSize)
		return appendStockLog(tx, category.Name, target.Name, newSize, total-before, model.ActionUpdate)
	})
	s.metrics.ObserveOperation("edit_item", err)
	if err != nil {
		return nil, apperr.Constraint("edit item", err)
	}

	result.LowStock = model.IsLowStock(result.Total)
	if notifyLowStock(s.notifier, displayName, result.Total) {
		s.metrics.IncLowStock()
	}
	return &result, nil
}

// DeleteItem removes the variant, logging the removal first. When transactions still
// reference it the whole operation is rolled back and a ConstraintViolationError is
// returned; ZeroItem is the compensating action.
func (s *stockService) DeleteItem(ref *ItemRef) (*DeleteItemResult, error) {
	if err := validator.Validate(ref); err != nil {
		return nil, err
	}

	var result DeleteItemResult
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		category, product, stock, err := resolveItem(tx, ref)
		if err != nil {
			return err
		}

		if err := appendStockLog(tx, category.Name, product.Name, stock.Size, -stock.Quantity, model.ActionDelete); err != nil {
			return err
		}
		if err := repository.NewStockRepo(tx).Delete(stock.ID); err != nil {
			return apperr.Constraint("delete item", err)
		}
		result.Removed = stock.Quantity

		result.ProductRemoved, err = removeProductIfEmpty(repository.NewProductRepo(tx), product.ID)
		return err
	})
	s.metrics.ObserveOperation("delete_item", err)
	if err != nil {
		return nil, apperr.Constraint("delete item", err)
	}
	return &result, nil
}

// ZeroItem sets the variant's quantity to zero and logs the removed units.
func (s *stockService) ZeroItem(ref *ItemRef) error {
	if err := validator.Validate(ref); err != nil {
		return err
	}

	err := s.gw.Transaction(func(tx *gorm.DB) error {
		category, product, stock, err := resolveItem(tx, ref)
		if err != nil {
			return err
		}
		if stock.Quantity == 0 {
			return nil
		}
		if err := repository.NewStockRepo(tx).SetQuantity(stock.ID, 0); err != nil {
			return err
		}
		return appendStockLog(tx, category.Name, product.Name, stock.Size, -stock.Quantity, model.ActionUpdate)
	})
	s.metrics.ObserveOperation("zero_item", err)
	return err
}

// findOrCreateProduct inserts a missing product and then reads it back by name,
// so the id never depends on the driver reporting the last insert id.
func findOrCreateProduct(tx *gorm.DB, categoryID uint, name string) (*model.Product, error) {
	products := repository.NewProductRepo(tx)
	product, err := products.FindByName(categoryID, name)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := products.Create(&model.Product{CategoryID: categoryID, Name: name}); err != nil {
		return nil, err
	}
	product, err = products.FindByName(categoryID, name)
	if err != nil {
		return nil, fmt.Errorf("re-read product %q: %w", name, err)
	}
	return product, nil
}

func resolveItem(tx *gorm.DB, ref *ItemRef) (*model.Category, *model.Product, *model.Stock, error) {
	category, err := repository.NewCategoryRepo(tx).FindByName(strings.TrimSpace(ref.Category))
	if err != nil {
		return nil, nil, nil, apperr.NotFound("category "+ref.Category, err)
	}
	product, err := repository.NewProductRepo(tx).FindByName(category.ID, strings.TrimSpace(ref.Name))
	if err != nil {
		return nil, nil, nil, apperr.NotFound("product "+ref.Name, err)
	}
	stock, err := repository.NewStockRepo(tx).FindVariant(product.ID, normalizeSize(ref.Size))
	if err != nil {
		return nil, nil, nil, apperr.NotFound("stock "+model.DisplayName(ref.Name, normalizeSize(ref.Size)), err)
	}
	return category, product, stock, nil
}

func removeProductIfEmpty(products repository.ProductRepository, productID uint) (bool, error) {
	remaining, err := products.CountStock(productID)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	if err := products.Delete(productID); err != nil {
		return false, err
	}
	return true, nil
}

func appendStockLog(tx *gorm.DB, category, item string, size *string, quantity int, action model.StockAction) error {
	return repository.NewStockLogRepo(tx).Create(&model.StockLog{
		CategoryName: category,
		ItemName:     item,
		Size:         model.SizeLabel(size),
		Quantity:     quantity,
		Action:       action,
		Date:         now(),
	})
}
