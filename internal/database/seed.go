package database

import (
	"errors"
	"fmt"
	"log"

	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

// SeedOptions names the administrative account created on first start.
type SeedOptions struct {
	AdminUsername string
	AdminPassword string
	AdminRole     string
}

// Seed inserts the default categories and the administrative user when absent.
// Existing rows are never touched, so a changed admin password survives restarts.
func Seed(db *gorm.DB, opts SeedOptions) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, c := range model.DefaultCategories {
			var existing model.Category
			err := tx.Where("name = ?", c.Name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lookup category %s: %w", c.Name, err)
			}
			category := model.Category{Name: c.Name}
			if err := tx.Create(&category).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
			log.Printf("[Migrate] Seeded category %s", c.Name)
		}

		if opts.AdminUsername == "" {
			return nil
		}

		var count int64
		if err := tx.Model(&model.User{}).Where("username = ?", opts.AdminUsername).Count(&count).Error; err != nil {
			return fmt.Errorf("lookup admin user: %w", err)
		}
		if count > 0 {
			return nil
		}

		role := opts.AdminRole
		if role == "" {
			role = model.RoleAdmin
		}
		if !model.ValidRole(role) {
			return fmt.Errorf("seed admin user: unknown role %q", role)
		}
		admin := model.User{Username: opts.AdminUsername, Role: role}
		if err := admin.SetPassword(opts.AdminPassword); err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
		log.Printf("[Migrate] Seeded admin user %s", admin.Username)
		return nil
	})
}
