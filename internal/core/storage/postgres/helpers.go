package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/xtal-lab/xtal/internal/document"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDocumentRow scans a database row into a Document.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanDocumentRow(row scanner) (*document.Document, error) {
	var d document.Document
	err := row.Scan(
		&d.ID,
		&d.Seq,
		&d.Name,
		&d.Content,
		&d.Active,
		&d.Result,
		&d.Errors,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document row: %w", err)
	}
	return &d, nil
}

// requireAffected maps an update that touched no row to document.ErrNotFound.
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", op, err)
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}
