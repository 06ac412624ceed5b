package service

import (
	"log"
	"strings"
	"time"

	"go-inventory-offline/internal/model"
)

// LowStockNotifier receives the low-stock warning after a committed change.
type LowStockNotifier interface {
	NotifyLowStock(displayName string, remaining int)
}

// RestoreNotifier is told when a restore has replaced every table.
type RestoreNotifier interface {
	NotifyDataRestored()
}

// SizeCatalog holds the canonical spelling of the common garment sizes.
var SizeCatalog = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL"}

// ProductCatalog holds the default item names offered per category.
var ProductCatalog = map[string][]string{
	model.CategoryUniform: {"T-Shirt", "Skirt", "Half Pant"},
	model.CategoryKit:     {"Abacus Kit", "K-Math Kit"},
}

// now is replaced in tests that need a fixed clock.
var now = func() time.Time { return time.Now().UTC() }

// normalizeSize trims s and maps the empty string and "-" to the no-size variant.
// A size that matches the catalog ignoring case takes the catalog's spelling.
func normalizeSize(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == model.NoSize {
		return nil
	}
	for _, c := range SizeCatalog {
		if strings.EqualFold(c, s) {
			s = c
			break
		}
	}
	return &s
}

// normalizeName trims name. A name that matches a catalog default ignoring case
// takes the catalog's spelling, whichever category lists it.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	for _, defaults := range ProductCatalog {
		for _, c := range defaults {
			if strings.EqualFold(c, name) {
				return c
			}
		}
	}
	return name
}

// notifyLowStock delivers the warning when remaining is at or below the threshold.
// It never fails the caller.
func notifyLowStock(n LowStockNotifier, displayName string, remaining int) bool {
	if n == nil || !model.IsLowStock(remaining) {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Stock] Low stock notification for %s failed: %v", displayName, r)
		}
	}()
	n.NotifyLowStock(displayName, remaining)
	return true
}
