package domain

import "github.com/google/uuid"

// Stage names the pipeline steps that exchange signals.
type Stage string

const (
	StageIntegrity  Stage = "integrity-check"
	StageValidation Stage = "validation"
	StageSubmit     Stage = "submit"
	StageApproval   Stage = "approval"
)

// StageSignal is the completion event a stage emits for downstream consumers
// and notification collaborators.
type StageSignal struct {
	Stage                Stage     `json:"stage"`
	Passed               bool      `json:"passed"`
	SubmissionID         uuid.UUID `json:"submission_id"`
	CategoryID           string    `json:"category_id"`
	OrganizationID       uuid.UUID `json:"organization_id"`
	ParentOrganizationID uuid.UUID `json:"parent_organization_id"`
}

// NewStageSignal builds a completion signal for a submission.
func NewStageSignal(stage Stage, passed bool, sub Submission) StageSignal {
	return StageSignal{
		Stage:                stage,
		Passed:               passed,
		SubmissionID:         sub.ID,
		CategoryID:           sub.CategoryID,
		OrganizationID:       sub.OrganizationID,
		ParentOrganizationID: sub.ParentOrganizationID,
	}
}
