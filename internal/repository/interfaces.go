package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/uniqueness"
)

// SubmissionRepository tracks submissions through the status state machine.
type SubmissionRepository interface {
	Create(ctx context.Context, sub domain.Submission) (domain.Submission, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Submission, error)
	// ApplyOutcome writes the status transition and any ledger entries in
	// one transaction, guarded on the expected current status. It returns
	// ErrStaleStatus when the persisted status no longer matches from.
	ApplyOutcome(ctx context.Context, id uuid.UUID, from, to domain.Status, entries []domain.LedgerEntry) error
	// ListStuck returns submissions still in PROCESSING since before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]domain.Submission, error)
}

// LedgerRepository accesses the persisted validation conditions of
// submissions. Stage outcomes write their entries through
// SubmissionRepository.ApplyOutcome; Append exists for the lone case of a
// generic internal-error entry written without a status change.
type LedgerRepository interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]domain.LedgerEntry, error)
	HasEntries(ctx context.Context, submissionID uuid.UUID) (bool, error)
}

// CategoryRecordRepository stores accepted category records and backs the
// per-organization uniqueness index.
type CategoryRecordRepository interface {
	uniqueness.CollisionStore

	// Persist writes the cleaned records of a validated submission. It is
	// idempotent per (submission, row) and returns ErrDuplicateKey when the
	// storage-level uniqueness guard rejects a key tuple already persisted
	// by a concurrent submission.
	Persist(ctx context.Context, sub domain.Submission, schema domain.CategorySchema, rs domain.RecordSet) error
	GetBySubmission(ctx context.Context, submissionID uuid.UUID) (domain.RecordSet, error)
	// DeleteBySubmission removes a rejected submission's records so they no
	// longer occupy the uniqueness index.
	DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error
}

// OrganizationRepository is the read side of the organization directory.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Organization, error)
	ResolveName(ctx context.Context, id uuid.UUID) (string, error)
}

// StationRepository resolves human-entered station identifiers to internal
// station keys.
type StationRepository interface {
	LookupIdentity(ctx context.Context, humanKey string, organizationID uuid.UUID) (uuid.UUID, bool, error)
}
