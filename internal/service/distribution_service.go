package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/metrics"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/repository"
	"go-inventory-offline/pkg/validator"

	"gorm.io/gorm"
)

type DistributionService interface {
	Distribute(req *DistributeRequest) (*DistributeResult, error)
	EditTransaction(id uint, quantity int) (*model.Transaction, error)
	DeleteTransaction(id uint) (*model.Transaction, error)
	DeleteOrder(studentID uint, date time.Time) (int, error)
}

type CartItem struct {
	StockID  uint `json:"stock_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"gt=0"`
}

type DistributeRequest struct {
	StudentName    string     `json:"student_name" validate:"notblank"`
	StudentClass   string     `json:"student_class" validate:"notblank"`
	PreviousSchool string     `json:"previous_school"`
	Items          []CartItem `json:"items" validate:"required,min=1,dive"`
}

type DistributeResult struct {
	Student        model.Student       `json:"student"`
	StudentCreated bool                `json:"student_created"`
	Date           time.Time           `json:"date"`
	OrderKey       string              `json:"order_key"`
	Transactions   []model.Transaction `json:"transactions"`
	// Remaining maps stock id to the quantity left after the cart was applied.
	Remaining map[uint]int `json:"remaining"`
}

// lineEffect is collected inside the transaction and acted on after commit.
type lineEffect struct {
	category    string
	displayName string
	quantity    int
	remaining   int
}

type distributionService struct {
	gw       *gateway.Gateway
	notifier LowStockNotifier
	metrics  *metrics.Metrics
}

func NewDistributionService(gw *gateway.Gateway, notifier LowStockNotifier, m *metrics.Metrics) DistributionService {
	return &distributionService{
		gw:       gw,
		notifier: notifier,
		metrics:  m,
	}
}

// Distribute records a whole cart for one student under a single timestamp.
// Every line is checked against a fresh read of its stock row; one short line
// rolls back the entire cart.
func (s *distributionService) Distribute(req *DistributeRequest) (*DistributeResult, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	result := DistributeResult{
		Date:      now(),
		Remaining: make(map[uint]int, len(req.Items)),
	}
	var effects []lineEffect

	err := s.gw.Transaction(func(tx *gorm.DB) error {
		// 1. Find or create the student
		student, created, err := findOrCreateStudent(tx, req)
		if err != nil {
			return err
		}
		result.Student = *student
		result.StudentCreated = created

		stocks := repository.NewStockRepo(tx)
		transactions := repository.NewTransactionRepo(tx)
		for _, item := range req.Items {
			// 2. Fresh read, never the cart's snapshot
			stock, err := stocks.FindByID(item.StockID)
			if err != nil {
				return apperr.NotFound(fmt.Sprintf("stock %d", item.StockID), err)
			}
			if stock.Quantity < item.Quantity {
				return &apperr.InsufficientStockError{StockID: stock.ID, Requested: item.Quantity, Available: stock.Quantity}
			}

			// 3. Guarded decrement, then the transaction row
			ok, err := stocks.Decrement(stock.ID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &apperr.InsufficientStockError{StockID: stock.ID, Requested: item.Quantity, Available: stock.Quantity}
			}
			row := model.Transaction{
				StudentID: student.ID,
				StockID:   stock.ID,
				Quantity:  item.Quantity,
				Date:      result.Date,
			}
			if err := transactions.Create(&row); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, row)

			remaining := stock.Quantity - item.Quantity
			result.Remaining[stock.ID] = remaining

			effect, err := describeStock(tx, stock)
			if err != nil {
				return err
			}
			effect.quantity = item.Quantity
			effect.remaining = remaining
			effects = append(effects, effect)
		}
		return nil
	})
	s.metrics.ObserveOperation("distribute", err)
	if err != nil {
		return nil, apperr.Constraint("distribute", err)
	}

	result.OrderKey = model.OrderKey(result.Student.ID, result.Date)
	log.Printf("[Stock] Distributed %d line(s) to %s (%s)", len(result.Transactions), result.Student.Name, result.Student.Class)

	// 4. Notifications per line, after commit
	for _, e := range effects {
		s.metrics.AddDistributed(e.category, e.quantity)
		if notifyLowStock(s.notifier, e.displayName, e.remaining) {
			s.metrics.IncLowStock()
		}
	}
	return &result, nil
}

// EditTransaction changes the distributed quantity and applies the inverse delta to stock.
func (s *distributionService) EditTransaction(id uint, quantity int) (*model.Transaction, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("Quantity", "must be greater than 0")
	}

	var updated model.Transaction
	var effect *lineEffect
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		transactions := repository.NewTransactionRepo(tx)
		stocks := repository.NewStockRepo(tx)

		existing, err := transactions.FindByID(id)
		if err != nil {
			return apperr.NotFound(fmt.Sprintf("transaction %d", id), err)
		}

		delta := quantity - existing.Quantity
		switch {
		case delta > 0:
			ok, err := stocks.Decrement(existing.StockID, delta)
			if err != nil {
				return err
			}
			if !ok {
				available := 0
				if stock, err := stocks.FindByID(existing.StockID); err == nil {
					available = stock.Quantity
				}
				return &apperr.InsufficientStockError{StockID: existing.StockID, Requested: delta, Available: available}
			}
		case delta < 0:
			if err := stocks.Increment(existing.StockID, -delta); err != nil {
				return err
			}
		}

		if err := transactions.UpdateQuantity(existing.ID, quantity); err != nil {
			return err
		}
		existing.Quantity = quantity
		updated = *existing

		if delta > 0 {
			stock, err := stocks.FindByID(existing.StockID)
			if err != nil {
				return err
			}
			e, err := describeStock(tx, stock)
			if err != nil {
				return err
			}
			e.quantity = delta
			e.remaining = stock.Quantity
			effect = &e
		}
		return nil
	})
	s.metrics.ObserveOperation("edit_transaction", err)
	if err != nil {
		return nil, apperr.Constraint("edit transaction", err)
	}

	if effect != nil {
		s.metrics.AddDistributed(effect.category, effect.quantity)
		if notifyLowStock(s.notifier, effect.displayName, effect.remaining) {
			s.metrics.IncLowStock()
		}
	}
	return &updated, nil
}

// DeleteTransaction returns the full quantity to stock and removes the row.
// A second call for the same id fails with ErrNotFound and credits nothing.
func (s *distributionService) DeleteTransaction(id uint) (*model.Transaction, error) {
	var deleted model.Transaction
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		transactions := repository.NewTransactionRepo(tx)

		existing, err := transactions.FindByID(id)
		if err != nil {
			return apperr.NotFound(fmt.Sprintf("transaction %d", id), err)
		}
		if err := repository.NewStockRepo(tx).Increment(existing.StockID, existing.Quantity); err != nil {
			return err
		}
		n, err := transactions.Delete(existing.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("transaction %d: %w", id, apperr.ErrNotFound)
		}
		deleted = *existing
		return nil
	})
	s.metrics.ObserveOperation("delete_transaction", err)
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// DeleteOrder reverses every transaction of one order and returns how many were removed.
func (s *distributionService) DeleteOrder(studentID uint, date time.Time) (int, error) {
	removed := 0
	err := s.gw.Transaction(func(tx *gorm.DB) error {
		var rows []model.Transaction
		if err := tx.Where("student_id = ? AND date = ?", studentID, date.UTC()).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("order %s: %w", model.OrderKey(studentID, date), apperr.ErrNotFound)
		}
		stocks := repository.NewStockRepo(tx)
		transactions := repository.NewTransactionRepo(tx)
		for _, row := range rows {
			if err := stocks.Increment(row.StockID, row.Quantity); err != nil {
				return err
			}
			if _, err := transactions.Delete(row.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	s.metrics.ObserveOperation("delete_order", err)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func findOrCreateStudent(tx *gorm.DB, req *DistributeRequest) (*model.Student, bool, error) {
	students := repository.NewStudentRepo(tx)
	name := strings.TrimSpace(req.StudentName)
	class := strings.TrimSpace(req.StudentClass)

	var school *string
	if v := strings.TrimSpace(req.PreviousSchool); v != "" {
		school = &v
	}

	student, err := students.FindByNameClass(name, class)
	if err == nil {
		if school != nil && student.PreviousSchool == nil {
			if err := students.UpdatePreviousSchool(student.ID, school); err != nil {
				return nil, false, err
			}
			student.PreviousSchool = school
		}
		return student, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if err := students.Create(&model.Student{Name: name, Class: class, PreviousSchool: school}); err != nil {
		return nil, false, err
	}
	student, err = students.FindByNameClass(name, class)
	if err != nil {
		return nil, false, fmt.Errorf("re-read student %q: %w", name, err)
	}
	return student, true, nil
}

func describeStock(tx *gorm.DB, stock *model.Stock) (lineEffect, error) {
	product, err := repository.NewProductRepo(tx).FindByID(stock.ProductID)
	if err != nil {
		return lineEffect{}, err
	}
	category, err := repository.NewCategoryRepo(tx).FindByID(product.CategoryID)
	if err != nil {
		return lineEffect{}, err
	}
	return lineEffect{
		category:    category.Name,
		displayName: model.DisplayName(product.Name, stock.Size),
	}, nil
}
