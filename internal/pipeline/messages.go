package pipeline

import (
	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// IntegrityMessage is the inbound result of the checksum stage. It carries
// the parsed record set so the validation stage can be triggered without
// re-reading the upload.
type IntegrityMessage struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	Passed       bool             `json:"passed"`
	Records      domain.RecordSet `json:"records"`
}

// ValidationMessage triggers the validation stage for a submission.
type ValidationMessage struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	Records      domain.RecordSet `json:"records"`
}

// ActionType names the externally triggered status-advance requests.
type ActionType string

const (
	ActionSubmit  ActionType = "submit"
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
)

// ActionMessage is an externally triggered request against a submission.
type ActionMessage struct {
	Type                ActionType `json:"type"`
	SubmissionID        uuid.UUID  `json:"submission_id"`
	ActorOrganizationID uuid.UUID  `json:"actor_organization_id"`
}
