package postgres

// SQL queries for document storage operations

const (
	// queryCreateDocument inserts a document. RETURNING seq yields the creation
	// order; ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	queryCreateDocument = `
		INSERT INTO documents (
			id, name, content, active, result, errors, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq
	`

	queryGetDocument = `
		SELECT
			id, seq, name, content, active, result, errors, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	queryListDocuments = `
		SELECT
			id, seq, name, content, active, result, errors, created_at, updated_at
		FROM documents
		ORDER BY seq ASC
	`

	queryUpdateDocument = `
		UPDATE documents
		SET name = $2, content = $3, updated_at = $4
		WHERE id = $1
	`

	// querySetActiveDocument flips every row in one statement. The EXISTS guard
	// leaves all rows untouched when the id is unknown.
	querySetActiveDocument = `
		UPDATE documents
		SET active = (id = $1)
		WHERE EXISTS (SELECT 1 FROM documents WHERE id = $1)
	`

	queryDeleteDocument = `
		DELETE FROM documents
		WHERE id = $1
	`

	// queryWriteOutcome overwrites the latest evaluation outcome.
	queryWriteOutcome = `
		UPDATE documents
		SET result = $2, errors = $3
		WHERE id = $1
	`
)
