package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// ErrStaleStatus reports that a guarded status transition found a different
// persisted status than expected, which means another invocation settled the
// submission first.
var ErrStaleStatus = errors.New("submission status changed concurrently")

// ErrSubmissionNotFound reports an unknown submission id.
var ErrSubmissionNotFound = errors.New("submission not found")

type submissionRepository struct {
	conn *db.Connection
}

// NewSubmissionRepository wires a repository backed by the shared connection.
func NewSubmissionRepository(conn *db.Connection) SubmissionRepository {
	return &submissionRepository{conn: conn}
}

func (r *submissionRepository) Create(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = domain.StatusProcessing
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO submissions
		   (id, category_id, organization_id, parent_organization_id,
		    reporting_year, reporting_quarter, status, tier, comments, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.CategoryID, sub.OrganizationID, sub.ParentOrganizationID,
		sub.ReportingYear, quarterParam(sub.ReportingQuarter), sub.Status, sub.Tier,
		sub.Comments, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}
	return sub, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Submission, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT id, category_id, organization_id, parent_organization_id,
		        reporting_year, reporting_quarter, status, tier, comments, created_at, updated_at
		 FROM submissions WHERE id = $1`, id)

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Submission{}, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
		}
		return domain.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

func (r *submissionRepository) ApplyOutcome(ctx context.Context, id uuid.UUID, from, to domain.Status, entries []domain.LedgerEntry) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE submissions SET status = $2, updated_at = now()
			 WHERE id = $1 AND status = $3`,
			id, to, from,
		)
		if err != nil {
			return fmt.Errorf("failed to update submission status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: submission %s expected %s", ErrStaleStatus, id, from)
		}

		for _, e := range entries {
			var errorRow any
			if e.ErrorRow != nil {
				errorRow = *e.ErrorRow
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO error_ledger
				   (submission_id, category_id, organization_id, parent_organization_id,
				    error_row, header_name, error_description)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.SubmissionID, e.CategoryID, e.OrganizationID, e.ParentOrganizationID,
				errorRow, e.HeaderName, e.Description,
			)
			if err != nil {
				return fmt.Errorf("failed to append error ledger entry: %w", err)
			}
		}
		return nil
	})
}

func (r *submissionRepository) ListStuck(ctx context.Context, cutoff time.Time) ([]domain.Submission, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, category_id, organization_id, parent_organization_id,
		        reporting_year, reporting_quarter, status, tier, comments, created_at, updated_at
		 FROM submissions
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at`,
		domain.StatusProcessing, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var (
		sub     domain.Submission
		quarter pgtype.Int4
	)
	err := row.Scan(
		&sub.ID, &sub.CategoryID, &sub.OrganizationID, &sub.ParentOrganizationID,
		&sub.ReportingYear, &quarter, &sub.Status, &sub.Tier, &sub.Comments,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return domain.Submission{}, err
	}
	if quarter.Valid {
		q := int(quarter.Int32)
		sub.ReportingQuarter = &q
	}
	return sub, nil
}

func quarterParam(quarter *int) any {
	if quarter == nil {
		return nil
	}
	return *quarter
}
