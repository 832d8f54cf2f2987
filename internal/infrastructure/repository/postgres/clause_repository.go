package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// ClauseRepository keeps the clauses of the latest analysis per document.
// Tables are created by DocumentRepository.EnsureSchema.
type ClauseRepository struct {
	db *sql.DB
}

func NewClauseRepository(db *sql.DB) *ClauseRepository {
	return &ClauseRepository{db: db}
}

func (r *ClauseRepository) SaveClauses(ctx context.Context, documentID string, clauses []domain.Clause) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clauses tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_clauses WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete clauses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_clauses (document_id, position, clause_id, text)
VALUES ($1,$2,$3,$4)
`)
	if err != nil {
		return fmt.Errorf("prepare clause insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range clauses {
		if _, err := stmt.ExecContext(ctx, documentID, i, c.ID, c.Text); err != nil {
			return fmt.Errorf("insert clause %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clauses tx: %w", err)
	}
	return nil
}

func (r *ClauseRepository) ListClauses(ctx context.Context, documentID string) ([]domain.Clause, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT clause_id, text
FROM document_clauses
WHERE document_id = $1
ORDER BY position ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Clause, 0)
	for rows.Next() {
		c := domain.Clause{DocumentID: documentID}
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clauses: %w", err)
	}
	return out, nil
}
