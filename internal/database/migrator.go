package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"go-inventory-offline/internal/model"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Step is one forward-only schema change. Apply must be safe to run against
// a database that already has the change, since legacy files carry no version record.
type Step struct {
	Name  string
	Apply func(tx *gorm.DB) error
}

// Migrator applies Steps in order and records each one in schema_migrations.
type Migrator struct {
	db    *gorm.DB
	steps []Step
}

// NewMigrator creates a migration runner with the canonical step list.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, steps: Steps()}
}

// NewMigratorWithSteps is used by tests and tools that need a custom list.
func NewMigratorWithSteps(db *gorm.DB, steps []Step) *Migrator {
	return &Migrator{db: db, steps: steps}
}

// Steps returns the linear migration list. Order matters: legacy cleanup runs
// before the canonical tables are created, and duplicates are merged before the
// unique variant index exists.
func Steps() []Step {
	return []Step{
		{Name: "0001_drop_legacy_inventory", Apply: dropLegacyInventory},
		{Name: "0002_drop_outdated_transactions", Apply: dropOutdatedTransactions},
		{Name: "0003_create_core_tables", Apply: createCoreTables},
		{Name: "0004_students_previous_school", Apply: addColumnIfMissing("students", "previous_school", "TEXT")},
		{Name: "0005_users_security_question", Apply: addColumnIfMissing("users", "security_question", "TEXT")},
		{Name: "0006_users_security_answer", Apply: addColumnIfMissing("users", "security_answer", "TEXT")},
		{Name: "0007_merge_duplicate_stock", Apply: mergeDuplicateStock},
		{Name: "0008_stock_variant_unique_index", Apply: createVariantIndex},
		{Name: "0009_transactions_datetime", Apply: rebuildTransactions},
		{Name: "0010_stock_logs_datetime", Apply: rebuildStockLogs},
		{Name: "0011_stock_quantity_guard", Apply: guardStockQuantity},
	}
}

// RunMigrations executes all pending steps.
//
// Each step runs in its own transaction together with its schema_migrations row,
// so a failed step leaves no record and is retried on the next start.
func (m *Migrator) RunMigrations() error {
	log.Println("[Migrate] Starting database migrations...")

	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrationsRun := 0
	for _, step := range m.steps {
		if applied[step.Name] {
			continue
		}

		log.Printf("[Migrate]   -> Running: %s", step.Name)
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := step.Apply(tx); err != nil {
				return err
			}
			return tx.Create(&model.SchemaMigration{Name: step.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", step.Name, err)
		}
		migrationsRun++
	}

	if migrationsRun > 0 {
		log.Printf("[Migrate] Successfully ran %d new migration(s)", migrationsRun)
	} else {
		log.Println("[Migrate] All migrations already applied - database is up to date")
	}
	return nil
}

// Applied lists the recorded step names in application order.
func (m *Migrator) Applied() ([]string, error) {
	var rows []model.SchemaMigration
	if err := m.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}

func (m *Migrator) createMigrationsTable() error {
	return m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`).Error
}

func (m *Migrator) appliedMigrations() (map[string]bool, error) {
	var rows []model.SchemaMigration
	if err := m.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(rows))
	for _, r := range rows {
		applied[r.Name] = true
	}
	return applied, nil
}

// dropLegacyInventory removes the unnormalized inventory table and the
// transactions table that referenced it. Child first.
func dropLegacyInventory(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("inventory") {
		return nil
	}
	log.Println("[Migrate] Legacy inventory table detected, dropping transactions and inventory")
	if err := tx.Exec("DROP TABLE IF EXISTS transactions").Error; err != nil {
		return err
	}
	return tx.Exec("DROP TABLE IF EXISTS inventory").Error
}

// dropOutdatedTransactions drops a transactions table that predates student_id.
func dropOutdatedTransactions(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("transactions") {
		return nil
	}
	has, err := columnExists(tx, "transactions", "student_id")
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	log.Println("[Migrate] Outdated transactions table (missing student_id), dropping")
	return tx.Exec("DROP TABLE IF EXISTS transactions").Error
}

const transactionsDDL = `CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		stock_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(student_id) REFERENCES students(id),
		FOREIGN KEY(stock_id) REFERENCES stock(id)
	)`

const stockLogsDDL = `CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_name TEXT,
		item_name TEXT,
		size TEXT,
		quantity INTEGER,
		action TEXT,
		date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

var coreTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE,
		password TEXT,
		role TEXT,
		security_question TEXT,
		security_answer TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		class TEXT NOT NULL,
		previous_school TEXT,
		UNIQUE(name, class)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		UNIQUE(category_id, name),
		FOREIGN KEY(category_id) REFERENCES categories(id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		size TEXT,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		FOREIGN KEY(product_id) REFERENCES products(id)
	)`,
	fmt.Sprintf(transactionsDDL, "transactions"),
	fmt.Sprintf(stockLogsDDL, "stock_logs"),
	transactionIndexes[0],
	transactionIndexes[1],
	stockLogIndexes[0],
}

var transactionIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_transactions_student_date ON transactions(student_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_stock ON transactions(stock_id)`,
}

var stockLogIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_stock_logs_date ON stock_logs(date)`,
}

func createCoreTables(tx *gorm.DB) error {
	for _, ddl := range coreTables {
		if err := tx.Exec(ddl).Error; err != nil {
			return err
		}
	}
	return nil
}

func addColumnIfMissing(table, column, sqlType string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		has, err := columnExists(tx, table, column)
		if err != nil {
			return err
		}
		if has {
			return nil
		}
		log.Printf("[Migrate] Adding %s.%s", table, column)
		return tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, sqlType)).Error
	}
}

// mergeDuplicateStock normalizes blank sizes to NULL and folds rows sharing
// (product_id, size) into the lowest id. Transactions follow the surviving row.
func mergeDuplicateStock(tx *gorm.DB) error {
	if err := tx.Exec("UPDATE stock SET size = TRIM(size) WHERE size IS NOT NULL AND size <> TRIM(size)").Error; err != nil {
		return err
	}
	if err := tx.Exec("UPDATE stock SET size = NULL WHERE size = ''").Error; err != nil {
		return err
	}

	var rows []model.Stock
	if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}

	groups := make(map[string][]model.Stock)
	var order []string
	for _, row := range rows {
		key := fmt.Sprintf("%d|%s", row.ProductID, strings.ToLower(model.SizeLabel(row.Size)))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	for _, key := range order {
		items := groups[key]
		if len(items) < 2 {
			continue
		}
		prime := items[0]
		total := 0
		var losers []uint
		for _, item := range items {
			total += item.Quantity
			if item.ID != prime.ID {
				losers = append(losers, item.ID)
			}
		}
		log.Printf("[Migrate] Merging %d duplicate stock rows into id %d (total %d)", len(losers), prime.ID, total)
		if err := tx.Exec("UPDATE transactions SET stock_id = ? WHERE stock_id IN ?", prime.ID, losers).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM stock WHERE id IN ?", losers).Error; err != nil {
			return err
		}
		if err := tx.Exec("UPDATE stock SET quantity = ? WHERE id = ?", total, prime.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// createVariantIndex enforces one row per (product_id, size), treating NULL as a value.
func createVariantIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_variant ON stock(product_id, IFNULL(size, ''))").Error
}

// rebuildTransactions replaces a transactions table whose date column is
// TEXT, or which lacks the quantity CHECK, with the canonical one. Rows with a
// non-positive quantity or a dangling student/stock reference cannot satisfy
// the new constraints and are dropped.
func rebuildTransactions(tx *gorm.DB) error {
	return rebuildTable(tx, rebuildPlan{
		table:   "transactions",
		ddl:     transactionsDDL,
		columns: "id, student_id, stock_id, quantity",
		where: `quantity > 0
			AND student_id IN (SELECT id FROM students)
			AND stock_id IN (SELECT id FROM stock)`,
		needsCheck: true,
		indexes:    transactionIndexes,
	})
}

func rebuildStockLogs(tx *gorm.DB) error {
	return rebuildTable(tx, rebuildPlan{
		table:   "stock_logs",
		ddl:     stockLogsDDL,
		columns: "id, category_name, item_name, size, quantity, action",
		where:   "1 = 1",
		indexes: stockLogIndexes,
	})
}

type rebuildPlan struct {
	table      string
	ddl        string
	columns    string
	where      string
	needsCheck bool
	indexes    []string
}

// rebuildTable copies table into a fresh canonical table and renames it into
// place. Dates are parsed in Go and rewritten in the driver's own layout so
// that range filters and exact-date lookups compare like new rows do.
func rebuildTable(tx *gorm.DB, plan rebuildPlan) error {
	if !tx.Migrator().HasTable(plan.table) {
		return nil
	}
	dateType, err := columnType(tx, plan.table, "date")
	if err != nil {
		return err
	}
	ddl, err := tableSQL(tx, plan.table)
	if err != nil {
		return err
	}
	if strings.EqualFold(dateType, "DATETIME") && (!plan.needsCheck || strings.Contains(strings.ToUpper(ddl), "CHECK")) {
		return nil
	}
	log.Printf("[Migrate] Rebuilding %s (date column %q)", plan.table, dateType)

	var legacy []legacyDate
	if err := tx.Raw(fmt.Sprintf("SELECT id, CAST(date AS TEXT) AS date FROM %s", plan.table)).Scan(&legacy).Error; err != nil {
		return err
	}

	rebuilt := plan.table + "_rebuild"
	steps := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", rebuilt),
		fmt.Sprintf(plan.ddl, rebuilt),
		fmt.Sprintf("INSERT INTO %s (%s, date) SELECT %s, CURRENT_TIMESTAMP FROM %s WHERE %s",
			rebuilt, plan.columns, plan.columns, plan.table, plan.where),
	}
	for _, stmt := range steps {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}

	fallback := time.Now().UTC()
	for _, row := range legacy {
		date, ok := parseLegacyDate(row.Date)
		if !ok {
			log.Printf("[Migrate] %s id %d has unreadable date %q, using migration time", plan.table, row.ID, row.Date.String)
			date = fallback
		}
		if err := tx.Exec(fmt.Sprintf("UPDATE %s SET date = ? WHERE id = ?", rebuilt), date, row.ID).Error; err != nil {
			return err
		}
	}

	var kept int64
	if err := tx.Table(rebuilt).Count(&kept).Error; err != nil {
		return err
	}
	if dropped := int64(len(legacy)) - kept; dropped > 0 {
		log.Printf("[Migrate] Dropped %d %s row(s) that violate the current constraints", dropped, plan.table)
	}

	steps = []string{
		fmt.Sprintf("DROP TABLE %s", plan.table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", rebuilt, plan.table),
	}
	steps = append(steps, plan.indexes...)
	for _, stmt := range steps {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

type legacyDate struct {
	ID   uint
	Date sql.NullString
}

// parseLegacyDate accepts the layouts the driver reads back from DATETIME
// columns, plus ISO strings with a trailing Z.
func parseLegacyDate(raw sql.NullString) (time.Time, bool) {
	if !raw.Valid {
		return time.Time{}, false
	}
	s := strings.TrimSpace(raw.String)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// guardStockQuantity adds triggers enforcing quantity >= 0 on a stock table
// created without the CHECK. The table itself is referenced by transactions and
// cannot be swapped while foreign keys are on.
func guardStockQuantity(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("stock") {
		return nil
	}
	ddl, err := tableSQL(tx, "stock")
	if err != nil {
		return err
	}
	if strings.Contains(strings.ToUpper(ddl), "CHECK") {
		return nil
	}
	log.Println("[Migrate] stock table has no quantity CHECK, adding guard triggers")
	stmts := []string{
		"UPDATE stock SET quantity = 0 WHERE quantity IS NULL OR quantity < 0",
		`CREATE TRIGGER IF NOT EXISTS stock_quantity_insert_guard
			BEFORE INSERT ON stock
			WHEN NEW.quantity IS NULL OR NEW.quantity < 0
			BEGIN SELECT RAISE(ABORT, 'CHECK constraint failed: quantity >= 0'); END`,
		`CREATE TRIGGER IF NOT EXISTS stock_quantity_update_guard
			BEFORE UPDATE OF quantity ON stock
			WHEN NEW.quantity IS NULL OR NEW.quantity < 0
			BEGIN SELECT RAISE(ABORT, 'CHECK constraint failed: quantity >= 0'); END`,
	}
	for _, stmt := range stmts {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

type tableColumn struct {
	Name string
	Type string
}

func tableColumns(tx *gorm.DB, table string) ([]tableColumn, error) {
	var cols []tableColumn
	if err := tx.Raw(fmt.Sprintf("PRAGMA table_info(%s)", table)).Scan(&cols).Error; err != nil {
		return nil, err
	}
	return cols, nil
}

func columnExists(tx *gorm.DB, table, column string) (bool, error) {
	cols, err := tableColumns(tx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.Name == column {
			return true, nil
		}
	}
	return false, nil
}

// columnType returns the declared type, or "" when the column is missing.
func columnType(tx *gorm.DB, table, column string) (string, error) {
	cols, err := tableColumns(tx, table)
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		if c.Name == column {
			return c.Type, nil
		}
	}
	return "", nil
}

func tableSQL(tx *gorm.DB, table string) (string, error) {
	var ddl sql.NullString
	err := tx.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Row().Scan(&ddl)
	if err != nil {
		return "", err
	}
	return ddl.String, nil
}
