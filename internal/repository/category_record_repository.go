package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/uniqueness"
)

// ErrDuplicateKey reports that the storage-level uniqueness guard rejected a
// key tuple: a concurrent submission persisted the same key between this
// submission's duplicate check and its persist step.
var ErrDuplicateKey = errors.New("record key already persisted for this reporting window")

const uniqueKeyConstraint = "uq_category_records_key"

type categoryRecordRepository struct {
	conn *db.Connection
}

// NewCategoryRecordRepository wires the durable category record store.
func NewCategoryRecordRepository(conn *db.Connection) CategoryRecordRepository {
	return &categoryRecordRepository{conn: conn}
}

func (r *categoryRecordRepository) Persist(ctx context.Context, sub domain.Submission, schema domain.CategorySchema, rs domain.RecordSet) error {
	quarter := 0
	if sub.ReportingQuarter != nil {
		quarter = *sub.ReportingQuarter
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, rec := range rs.Records {
			key, ok := uniqueness.RecordKey(schema, rec)
			if !ok {
				key = fmt.Sprintf("\x00row:%d", rec.Row)
			}
			fields, err := json.Marshal(rec.Values)
			if err != nil {
				return fmt.Errorf("failed to encode record fields: %w", err)
			}

			// ON CONFLICT on (submission_id, row_ordinal) keeps redelivered
			// persist steps idempotent.
			_, err = tx.Exec(ctx,
				`INSERT INTO category_records
				   (submission_id, row_ordinal, category_id, organization_id,
				    parent_organization_id, reporting_year, reporting_quarter, record_key, fields)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 ON CONFLICT (submission_id, row_ordinal) DO NOTHING`,
				sub.ID, rec.Row, sub.CategoryID, sub.OrganizationID,
				sub.ParentOrganizationID, sub.ReportingYear, quarter, key, fields,
			)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.ConstraintName == uniqueKeyConstraint {
					return fmt.Errorf("%w: row %d", ErrDuplicateKey, rec.Row)
				}
				return fmt.Errorf("failed to persist record: %w", err)
			}
		}
		return nil
	})
}

func (r *categoryRecordRepository) GetBySubmission(ctx context.Context, submissionID uuid.UUID) (domain.RecordSet, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT row_ordinal, fields FROM category_records
		 WHERE submission_id = $1 ORDER BY row_ordinal`,
		submissionID,
	)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("failed to load submission records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			ordinal int
			fields  []byte
		)
		if err := rows.Scan(&ordinal, &fields); err != nil {
			return domain.RecordSet{}, fmt.Errorf("failed to scan record: %w", err)
		}
		values := map[string]string{}
		if err := json.Unmarshal(fields, &values); err != nil {
			return domain.RecordSet{}, fmt.Errorf("failed to decode record fields: %w", err)
		}
		for name := range values {
			columns[name] = struct{}{}
		}
		records = append(records, domain.Record{Row: ordinal, Values: values})
	}
	if err := rows.Err(); err != nil {
		return domain.RecordSet{}, fmt.Errorf("failed to iterate records: %w", err)
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	return domain.RecordSet{Columns: names, Records: records}, nil
}

func (r *categoryRecordRepository) DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error {
	_, err := r.conn.Pool.Exec(ctx,
		`DELETE FROM category_records WHERE submission_id = $1`, submissionID)
	if err != nil {
		return fmt.Errorf("failed to delete submission records: %w", err)
	}
	return nil
}

func (r *categoryRecordRepository) FindKeyCollisions(ctx context.Context, scope uniqueness.Scope, keys []string) ([]uniqueness.Collision, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := `SELECT cr.record_key, cr.submission_id
		 FROM category_records cr
		 JOIN submissions s ON s.id = cr.submission_id
		 WHERE cr.category_id = $1
		   AND cr.parent_organization_id = $2
		   AND cr.record_key = ANY($3)
		   AND cr.submission_id <> $4
		   AND s.status NOT IN ($5, $6)`
	args := []any{
		scope.CategoryID, scope.ParentOrganizationID, keys,
		scope.ExcludeSubmissionID, domain.StatusRejected, domain.StatusError,
	}
	if scope.Periodic {
		query += ` AND cr.reporting_year = $7 AND cr.reporting_quarter = $8`
		args = append(args, scope.ReportingYear, scope.ReportingQuarter)
	}

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uniqueness index: %w", err)
	}
	defer rows.Close()

	var collisions []uniqueness.Collision
	for rows.Next() {
		var c uniqueness.Collision
		if err := rows.Scan(&c.RecordKey, &c.SubmissionID); err != nil {
			return nil, fmt.Errorf("failed to scan collision: %w", err)
		}
		collisions = append(collisions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collisions: %w", err)
	}
	return collisions, nil
}
