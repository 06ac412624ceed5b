// Package backup defines the portable backup document and where it is kept.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/model"
)

const (
	TableUsers        = "users"
	TableStudents     = "students"
	TableCategories   = "categories"
	TableProducts     = "products"
	TableStock        = "stock"
	TableTransactions = "transactions"
	TableStockLogs    = "stock_logs"
)

// RequiredTables must be present in a document before a restore is attempted.
var RequiredTables = []string{TableUsers, TableStock, TableTransactions}

// Document holds every table in full, one field per table. Row fields mirror the columns.
type Document struct {
	Users        []model.User        `json:"users"`
	Students     []model.Student     `json:"students"`
	Categories   []model.Category    `json:"categories"`
	Products     []model.Product     `json:"products"`
	Stock        []model.Stock       `json:"stock"`
	Transactions []model.Transaction `json:"transactions"`
	StockLogs    []model.StockLog    `json:"stock_logs"`
}

// Counts returns the row count per table.
func (d *Document) Counts() map[string]int {
	return map[string]int{
		TableUsers:        len(d.Users),
		TableStudents:     len(d.Students),
		TableCategories:   len(d.Categories),
		TableProducts:     len(d.Products),
		TableStock:        len(d.Stock),
		TableTransactions: len(d.Transactions),
		TableStockLogs:    len(d.StockLogs),
	}
}

// FileName is the conventional name for a backup taken on day t.
func FileName(t time.Time) string {
	return fmt.Sprintf("sunshine_backup_%s.json", t.Format("2006-01-02"))
}

// Encode renders the document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses and structurally checks a backup document. It fails with an
// *apperr.ImportValidationError when a required table is missing, a table is
// unknown, or a row carries a field that is not a column.
func Decode(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &apperr.ImportValidationError{Reason: "not a JSON object: " + err.Error()}
	}

	var missing []string
	for _, table := range RequiredTables {
		if v, ok := raw[table]; !ok || isNull(v) {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return nil, &apperr.ImportValidationError{Missing: missing}
	}

	doc := &Document{}
	targets := map[string]interface{}{
		TableUsers:        &doc.Users,
		TableStudents:     &doc.Students,
		TableCategories:   &doc.Categories,
		TableProducts:     &doc.Products,
		TableStock:        &doc.Stock,
		TableTransactions: &doc.Transactions,
		TableStockLogs:    &doc.StockLogs,
	}

	var unknown []string
	for table := range raw {
		if _, ok := targets[table]; !ok {
			unknown = append(unknown, table)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &apperr.ImportValidationError{Reason: fmt.Sprintf("unknown tables %v", unknown)}
	}

	for table, target := range targets {
		v, ok := raw[table]
		if !ok || isNull(v) {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return nil, &apperr.ImportValidationError{Reason: fmt.Sprintf("table %s: %v", table, err)}
		}
	}
	return doc, nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}
