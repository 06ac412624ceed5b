// Package gateway is the single execution path for every statement issued
// against the embedded database. It classifies statements as reads or writes,
// refuses work before initialization, and serializes logical operations.
package gateway

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go-inventory-offline/internal/apperr"

	"gorm.io/gorm"
)

// Row is one result row keyed by column name.
type Row = map[string]interface{}

// Result is the uniform shape returned by Execute. Reads fill Rows; writes fill RowsAffected.
type Result struct {
	IsRead       bool
	Rows         []Row
	RowsAffected int64
}

// ErrTxDone is returned when a Tx is used after Commit or Rollback.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// Gateway owns the connection and the logical-operation lock.
//
// Only one logical operation (a Transaction, a Begin..Commit span, or a single
// Execute) holds the lock at a time. Code running inside a Transaction must use
// the *gorm.DB it was handed; calling back into the Gateway from there deadlocks.
type Gateway struct {
	db    *gorm.DB
	mu    sync.Mutex
	ready atomic.Bool
}

func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// MarkReady opens the gateway to general traffic. Called once the schema is in place.
func (g *Gateway) MarkReady() { g.ready.Store(true) }

func (g *Gateway) Ready() bool { return g.ready.Load() }

// Execute runs one statement in autocommit mode.
func (g *Gateway) Execute(query string, args ...interface{}) (*Result, error) {
	if err := g.checkReady(query); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return execute(g.db, query, args...)
}

// Transaction runs fn as one serialized, all-or-nothing logical operation.
// Returning an error from fn, or panicking, rolls everything back.
func (g *Gateway) Transaction(fn func(tx *gorm.DB) error) error {
	if err := g.checkReady(""); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Transaction(fn)
}

// Read runs fn with the connection under the lock. fn must not write.
func (g *Gateway) Read(fn func(db *gorm.DB) error) error {
	if err := g.checkReady(""); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.db)
}

// Begin starts an explicit transaction. The returned Tx holds the logical-operation
// lock until Commit or Rollback; callers must always end it.
func (g *Gateway) Begin() (*Tx, error) {
	if err := g.checkReady(""); err != nil {
		return nil, err
	}
	g.mu.Lock()
	tx := g.db.Begin()
	if tx.Error != nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &Tx{gw: g, tx: tx}, nil
}

func (g *Gateway) checkReady(query string) error {
	if g.ready.Load() || allowedBeforeReady(query) {
		return nil
	}
	return &apperr.NotReadyError{Statement: query}
}

// Tx is an explicit transaction started with Gateway.Begin.
type Tx struct {
	gw   *Gateway
	tx   *gorm.DB
	once sync.Once
	done atomic.Bool
}

func (t *Tx) Execute(query string, args ...interface{}) (*Result, error) {
	if t.done.Load() {
		return nil, ErrTxDone
	}
	return execute(t.tx, query, args...)
}

// DB exposes the transaction handle for repository calls.
func (t *Tx) DB() *gorm.DB { return t.tx }

func (t *Tx) Commit() error {
	if t.done.Load() {
		return ErrTxDone
	}
	var err error
	t.finish(func() { err = t.tx.Commit().Error })
	return err
}

func (t *Tx) Rollback() error {
	if t.done.Load() {
		return ErrTxDone
	}
	var err error
	t.finish(func() { err = t.tx.Rollback().Error })
	return err
}

func (t *Tx) finish(end func()) {
	t.once.Do(func() {
		end()
		t.done.Store(true)
		t.gw.mu.Unlock()
	})
}

func execute(db *gorm.DB, query string, args ...interface{}) (*Result, error) {
	if IsRead(query) {
		rows, err := readRows(db, query, args...)
		if err != nil {
			return nil, apperr.Constraint("query", err)
		}
		return &Result{IsRead: true, Rows: rows}, nil
	}

	res := db.Exec(query, args...)
	if res.Error != nil {
		return nil, apperr.Constraint("exec", res.Error)
	}
	return &Result{RowsAffected: res.RowsAffected}, nil
}

// readRows scans every column into a plain value, so untyped expressions such as
// COUNT(*) come back as int64 like declared INTEGER columns do.
func readRows(db *gorm.DB, query string, args ...interface{}) ([]Row, error) {
	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

var readKeywords = map[string]bool{
	"SELECT":  true,
	"PRAGMA":  true,
	"WITH":    true,
	"EXPLAIN": true,
	"VALUES":  true,
}

// IsRead classifies a statement by its leading keyword only.
func IsRead(query string) bool {
	return readKeywords[leadingKeyword(query)]
}

// allowedBeforeReady lets schema introspection through the readiness gate: a
// SELECT or PRAGMA that reads sqlite_master.
func allowedBeforeReady(query string) bool {
	switch leadingKeyword(query) {
	case "SELECT", "PRAGMA":
		return strings.Contains(strings.ToLower(query), "sqlite_master")
	default:
		return false
	}
}

func leadingKeyword(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "--") || strings.HasPrefix(q, "/*") || strings.HasPrefix(q, "(") {
		switch {
		case strings.HasPrefix(q, "--"):
			if i := strings.IndexByte(q, '\n'); i >= 0 {
				q = strings.TrimSpace(q[i+1:])
			} else {
				return ""
			}
		case strings.HasPrefix(q, "/*"):
			if i := strings.Index(q, "*/"); i >= 0 {
				q = strings.TrimSpace(q[i+2:])
			} else {
				return ""
			}
		default:
			q = strings.TrimSpace(q[1:])
		}
	}
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	return strings.ToUpper(q)
}
