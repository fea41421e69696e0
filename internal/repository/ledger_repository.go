package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

type ledgerRepository struct {
	conn *db.Connection
}

// NewLedgerRepository wires the error ledger read side.
func NewLedgerRepository(conn *db.Connection) LedgerRepository {
	return &ledgerRepository{conn: conn}
}

func (r *ledgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	var errorRow any
	if entry.ErrorRow != nil {
		errorRow = *entry.ErrorRow
	}
	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO error_ledger
		   (submission_id, category_id, organization_id, parent_organization_id,
		    error_row, header_name, error_description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.SubmissionID, entry.CategoryID, entry.OrganizationID,
		entry.ParentOrganizationID, errorRow, entry.HeaderName, entry.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to append error ledger entry: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, submission_id, category_id, organization_id, parent_organization_id,
		        error_row, header_name, error_description, created_at
		 FROM error_ledger
		 WHERE submission_id = $1
		 ORDER BY id`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list error ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var (
			entry    domain.LedgerEntry
			errorRow pgtype.Int4
		)
		if err := rows.Scan(
			&entry.ID, &entry.SubmissionID, &entry.CategoryID,
			&entry.OrganizationID, &entry.ParentOrganizationID,
			&errorRow, &entry.HeaderName, &entry.Description, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan error ledger entry: %w", err)
		}
		if errorRow.Valid {
			row := int(errorRow.Int32)
			entry.ErrorRow = &row
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error ledger entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) HasEntries(ctx context.Context, submissionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM error_ledger WHERE submission_id = $1)`,
		submissionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check error ledger: %w", err)
	}
	return exists, nil
}
