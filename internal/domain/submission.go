package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusDraft      Status = "DRAFT"
	StatusPending    Status = "PENDING"
	StatusSubmitted  Status = "SUBMITTED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusError      Status = "ERROR"
)

// statusRank orders statuses for idempotency checks: a transition whose
// target rank is at or below the current rank is a redelivered signal and
// must be a no-op. Error absorbs everything.
var statusRank = map[Status]int{
	StatusProcessing: 0,
	StatusDraft:      1,
	StatusPending:    2,
	StatusSubmitted:  2,
	StatusApproved:   3,
	StatusRejected:   3,
	StatusError:      9,
}

// Rank returns the monotonic position of s in the status ordering.
func (s Status) Rank() int {
	return statusRank[s]
}

// Terminal reports whether no further pipeline stage may advance s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusRejected, StatusError:
		return true
	}
	return false
}

// statusEdges lists the legal forward transitions. Error is reachable from
// everywhere and handled separately.
var statusEdges = map[Status][]Status{
	StatusProcessing: {StatusDraft, StatusPending},
	StatusDraft:      {StatusSubmitted, StatusPending},
	StatusPending:    {StatusApproved, StatusRejected},
}

// CanTransition reports whether from -> to is a legal forward step.
func CanTransition(from, to Status) bool {
	if to == StatusError {
		return from != StatusError
	}
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RecipientTier distinguishes organizations that submit directly from those
// whose submissions need approval by their direct recipient.
type RecipientTier string

const (
	TierDirect      RecipientTier = "DIRECT"
	TierSubordinate RecipientTier = "SUBORDINATE"
)

// Organization is the directory entry for a submitting or accepting party.
type Organization struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
	Tier     RecipientTier
}

// Submission tracks one organization's bulk data transfer for one category
// and reporting period.
type Submission struct {
	ID                   uuid.UUID
	CategoryID           string
	OrganizationID       uuid.UUID
	ParentOrganizationID uuid.UUID
	ReportingYear        int
	// ReportingQuarter is set only for quarterly-cadence categories.
	ReportingQuarter *int
	Status           Status
	Tier             RecipientTier
	Comments         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PeriodLabel renders the reporting window for messages and logs.
func (s Submission) PeriodLabel() string {
	if s.ReportingQuarter != nil {
		return fmt.Sprintf("%d-Q%d", s.ReportingYear, *s.ReportingQuarter)
	}
	return fmt.Sprintf("%d", s.ReportingYear)
}

// LedgerEntry is one persisted validation condition tied to a submission.
type LedgerEntry struct {
	ID                   int64
	SubmissionID         uuid.UUID
	CategoryID           string
	OrganizationID       uuid.UUID
	ParentOrganizationID uuid.UUID
	ErrorRow             *int
	HeaderName           string
	Description          string
	CreatedAt            time.Time
}

// LedgerEntriesFrom materializes conditions as ledger rows for a submission.
func LedgerEntriesFrom(sub Submission, conditions []ValidationCondition) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(conditions))
	for _, c := range conditions {
		entries = append(entries, LedgerEntry{
			SubmissionID:         sub.ID,
			CategoryID:           sub.CategoryID,
			OrganizationID:       sub.OrganizationID,
			ParentOrganizationID: sub.ParentOrganizationID,
			ErrorRow:             c.ErrorRow,
			HeaderName:           c.HeaderName,
			Description:          c.Description,
		})
	}
	return entries
}
