// Package pipeline drives submissions through the asynchronous stage
// machine. Each handler is one stateless stage invocation: it loads the
// submission, applies the idempotency check against the persisted status
// before any side effect, and settles the stage with a single transactional
// ledger-and-status write.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/repository"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/rules"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/schema"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/uniqueness"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/validation"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/kafka"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/logger"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/metrics"
)

// EventPublisher publishes one event to a topic. Satisfied by kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Orchestrator owns the submission status state machine.
type Orchestrator struct {
	subs     repository.SubmissionRepository
	ledger   repository.LedgerRepository
	records  repository.CategoryRecordRepository
	stations repository.StationRepository
	registry *schema.Registry
	rules    *rules.Registry
	detector *uniqueness.Detector

	validationTopic EventPublisher
	notifications   EventPublisher

	features     map[string]bool
	stageTimeout time.Duration
	clock        func() time.Time
	metrics      *metrics.Metrics
	log          *slog.Logger
}

// Options carries the optional orchestrator knobs.
type Options struct {
	Features     map[string]bool
	StageTimeout time.Duration
	Clock        func() time.Time
	Metrics      *metrics.Metrics
}

// NewOrchestrator wires the pipeline stages.
func NewOrchestrator(
	subs repository.SubmissionRepository,
	ledger repository.LedgerRepository,
	records repository.CategoryRecordRepository,
	stations repository.StationRepository,
	registry *schema.Registry,
	ruleRegistry *rules.Registry,
	detector *uniqueness.Detector,
	validationTopic EventPublisher,
	notifications EventPublisher,
	opts Options,
) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{
		subs:            subs,
		ledger:          ledger,
		records:         records,
		stations:        stations,
		registry:        registry,
		rules:           ruleRegistry,
		detector:        detector,
		validationTopic: validationTopic,
		notifications:   notifications,
		features:        opts.Features,
		stageTimeout:    opts.StageTimeout,
		clock:           opts.Clock,
		metrics:         opts.Metrics,
		log:             logger.WithComponent("orchestrator"),
	}
}

// HandleIntegrity settles the checksum stage: a mismatch moves the
// submission to Error with a single ledger entry and no validator runs; a
// match hands the record set to the validation stage.
func (o *Orchestrator) HandleIntegrity(ctx context.Context, msg IntegrityMessage) error {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	started := o.clock()

	sub, err := o.subs.GetByID(ctx, msg.SubmissionID)
	if err != nil {
		return o.loadFailure(msg.SubmissionID, err)
	}
	log := logger.WithSubmission(o.log, sub.ID)

	if sub.Status != domain.StatusProcessing {
		log.Info("integrity signal redelivered after settlement", "status", sub.Status)
		o.observe(domain.StageIntegrity, "noop", started)
		return nil
	}

	if !msg.Passed {
		cond := domain.NewColumnCondition("", domain.CodeChecksumMismatch,
			"uploaded file failed its integrity check; please upload the file again")
		if _, err := o.settleError(ctx, sub, []domain.ValidationCondition{cond}); err != nil {
			return err
		}
		o.publishSignal(ctx, domain.NewStageSignal(domain.StageIntegrity, false, sub))
		o.observe(domain.StageIntegrity, "halted", started)
		return nil
	}

	event := kafka.Event{
		Key:   sub.ID.String(),
		Value: ValidationMessage{SubmissionID: sub.ID, Records: msg.Records},
	}
	if err := o.validationTopic.Publish(ctx, event); err != nil {
		return faults.Infrastructure("validation topic", err)
	}
	o.observe(domain.StageIntegrity, "advanced", started)
	return nil
}

// HandleValidation runs the record validator, identity resolution, business
// rules, and the duplicate detector, then either persists the records and
// advances the submission or writes the accumulated conditions and halts it.
func (o *Orchestrator) HandleValidation(ctx context.Context, msg ValidationMessage) error {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	started := o.clock()

	sub, err := o.subs.GetByID(ctx, msg.SubmissionID)
	if err != nil {
		return o.loadFailure(msg.SubmissionID, err)
	}
	log := logger.WithSubmission(o.log, sub.ID)

	if sub.Status != domain.StatusProcessing {
		log.Info("validation signal redelivered after settlement", "status", sub.Status)
		o.observe(domain.StageValidation, "noop", started)
		return nil
	}

	categorySchema, err := o.registry.CategorySchema(sub.CategoryID)
	if err != nil {
		if errors.Is(err, faults.ErrSchemaNotFound) {
			cond := domain.NewColumnCondition("", domain.CodeInternalError,
				"reporting category %s is not recognized", sub.CategoryID)
			if _, err := o.settleError(ctx, sub, []domain.ValidationCondition{cond}); err != nil {
				return err
			}
			o.publishSignal(ctx, domain.NewStageSignal(domain.StageValidation, false, sub))
			o.observe(domain.StageValidation, "halted", started)
			return nil
		}
		return err
	}

	result := validation.ValidateRecordSet(categorySchema, msg.Records)
	conditions := result.Conditions

	cleaned, identityConds, err := validation.ResolveStationKeys(ctx, o.stations, sub.OrganizationID, result.Cleaned)
	if err != nil {
		return err
	}
	conditions = append(conditions, identityConds...)

	conditions = append(conditions, o.rules.Validate(sub.CategoryID, rules.Context{
		Records:       cleaned,
		Features:      o.features,
		ReferenceDate: o.clock(),
	})...)

	duplicates, err := o.detector.FindDuplicates(ctx, sub, categorySchema, cleaned)
	if err != nil {
		return err
	}
	conditions = append(conditions, duplicates...)

	if len(conditions) > 0 {
		o.countConditions(sub.CategoryID, conditions)
		if _, err := o.settleError(ctx, sub, conditions); err != nil {
			return err
		}
		o.publishSignal(ctx, domain.NewStageSignal(domain.StageValidation, false, sub))
		o.observe(domain.StageValidation, "halted", started)
		return nil
	}

	if err := o.records.Persist(ctx, sub, categorySchema, cleaned); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// A concurrent submission persisted the same key tuple between
			// the duplicate check and this persist; the storage guard is the
			// tiebreaker.
			cond := domain.NewColumnCondition("", domain.CodeDuplicateInSystem,
				"records duplicate data accepted from a concurrent submission; please review and resubmit")
			if _, err := o.settleError(ctx, sub, []domain.ValidationCondition{cond}); err != nil {
				return err
			}
			o.publishSignal(ctx, domain.NewStageSignal(domain.StageValidation, false, sub))
			o.observe(domain.StageValidation, "halted", started)
			return nil
		}
		return faults.Infrastructure("category record store", err)
	}

	target := domain.StatusDraft
	if sub.Tier == domain.TierSubordinate {
		target = domain.StatusPending
	}
	if _, err := o.applyTransition(ctx, sub, target, nil); err != nil {
		return err
	}
	o.publishSignal(ctx, domain.NewStageSignal(domain.StageValidation, true, sub))
	o.observe(domain.StageValidation, "advanced", started)
	return nil
}

// HandleSubmit recomputes the duplicate check before advancing a Draft
// submission, guarding against data that became duplicate between
// validation and a delayed submit.
func (o *Orchestrator) HandleSubmit(ctx context.Context, msg ActionMessage) error {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	started := o.clock()

	sub, err := o.subs.GetByID(ctx, msg.SubmissionID)
	if err != nil {
		return o.loadFailure(msg.SubmissionID, err)
	}
	log := logger.WithSubmission(o.log, sub.ID)

	target := domain.StatusSubmitted
	if sub.Tier == domain.TierSubordinate {
		target = domain.StatusPending
	}

	if sub.Status.Rank() >= target.Rank() {
		if sub.Status == domain.StatusError {
			// A submit-time Error must not keep occupying the uniqueness
			// index; redelivery retries a release that failed last time.
			if err := o.records.DeleteBySubmission(ctx, sub.ID); err != nil {
				return faults.Infrastructure("category record store", err)
			}
		}
		log.Info("submit action redelivered after settlement", "status", sub.Status)
		o.observe(domain.StageSubmit, "noop", started)
		return nil
	}
	if sub.Status != domain.StatusDraft {
		return faults.New(faults.ErrInvalidTransition,
			"submission %s cannot be submitted from status %s", sub.ID, sub.Status)
	}

	categorySchema, err := o.registry.CategorySchema(sub.CategoryID)
	if err != nil {
		return err
	}
	persisted, err := o.records.GetBySubmission(ctx, sub.ID)
	if err != nil {
		return faults.Infrastructure("category record store", err)
	}
	duplicates, err := o.detector.FindDuplicates(ctx, sub, categorySchema, persisted)
	if err != nil {
		return err
	}
	if len(duplicates) > 0 {
		o.countConditions(sub.CategoryID, duplicates)
		applied, err := o.settleError(ctx, sub, duplicates)
		if err != nil {
			return err
		}
		if applied {
			// Release the records persisted at validation time so a
			// resubmission with the same keys can persist.
			if err := o.records.DeleteBySubmission(ctx, sub.ID); err != nil {
				return faults.Infrastructure("category record store", err)
			}
		}
		o.publishSignal(ctx, domain.NewStageSignal(domain.StageSubmit, false, sub))
		o.observe(domain.StageSubmit, "halted", started)
		return nil
	}

	if _, err := o.applyTransition(ctx, sub, target, nil); err != nil {
		return err
	}
	o.publishSignal(ctx, domain.NewStageSignal(domain.StageSubmit, true, sub))
	o.observe(domain.StageSubmit, "advanced", started)
	return nil
}

// HandleApproval settles a Pending submission. Only the submission's direct
// recipient may decide it; a rejection also releases the submission's
// records from the uniqueness index.
func (o *Orchestrator) HandleApproval(ctx context.Context, msg ActionMessage) error {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	started := o.clock()

	sub, err := o.subs.GetByID(ctx, msg.SubmissionID)
	if err != nil {
		return o.loadFailure(msg.SubmissionID, err)
	}
	log := logger.WithSubmission(o.log, sub.ID)

	target := domain.StatusApproved
	if msg.Type == ActionReject {
		target = domain.StatusRejected
	}

	if sub.Status == target {
		if target == domain.StatusRejected {
			// Redelivery retries a record release that failed after the
			// rejection committed.
			if err := o.records.DeleteBySubmission(ctx, sub.ID); err != nil {
				return faults.Infrastructure("category record store", err)
			}
		}
		log.Info("approval action redelivered after settlement", "status", sub.Status)
		o.observe(domain.StageApproval, "noop", started)
		return nil
	}
	if sub.Status != domain.StatusPending {
		return faults.New(faults.ErrInvalidTransition,
			"submission %s cannot be decided from status %s", sub.ID, sub.Status)
	}
	if msg.ActorOrganizationID != sub.ParentOrganizationID {
		return faults.New(faults.ErrUnauthorized,
			"organization %s is not the approving tier for submission %s",
			msg.ActorOrganizationID, sub.ID)
	}

	applied, err := o.applyTransition(ctx, sub, target, nil)
	if err != nil {
		return err
	}
	if target == domain.StatusRejected && applied {
		// Release only after the guarded write: a lost race against a
		// concurrent approve must not vacate a live submission's records.
		if err := o.records.DeleteBySubmission(ctx, sub.ID); err != nil {
			return faults.Infrastructure("category record store", err)
		}
	}
	o.publishSignal(ctx, domain.NewStageSignal(domain.StageApproval, target == domain.StatusApproved, sub))
	o.observe(domain.StageApproval, "advanced", started)
	return nil
}

// SettleUnknown handles an uncaught defect from a stage invocation. The
// submission keeps its last-known-good status; a generic internal-error
// entry is written only once so redelivery does not spam the ledger.
func (o *Orchestrator) SettleUnknown(ctx context.Context, submissionID uuid.UUID, stageErr error) error {
	log := logger.WithSubmission(o.log, submissionID)
	log.Error("stage invocation failed with unknown error", "error", stageErr)

	has, err := o.ledger.HasEntries(ctx, submissionID)
	if err != nil {
		return faults.Infrastructure("error ledger", err)
	}
	if has {
		return nil
	}

	sub, err := o.subs.GetByID(ctx, submissionID)
	if err != nil {
		return o.loadFailure(submissionID, err)
	}
	cond := domain.NewColumnCondition("", domain.CodeInternalError,
		"an internal error occurred while processing this submission; it is being looked into")
	entries := domain.LedgerEntriesFrom(sub, []domain.ValidationCondition{cond})
	if err := o.ledger.Append(ctx, entries[0]); err != nil {
		return faults.Infrastructure("error ledger", err)
	}
	return nil
}

// ListStuck surfaces submissions still processing past the expected window.
func (o *Orchestrator) ListStuck(ctx context.Context, window time.Duration) ([]domain.Submission, error) {
	subs, err := o.subs.ListStuck(ctx, o.clock().Add(-window))
	if err != nil {
		return nil, faults.Infrastructure("submission store", err)
	}
	return subs, nil
}

func (o *Orchestrator) settleError(ctx context.Context, sub domain.Submission, conditions []domain.ValidationCondition) (bool, error) {
	entries := domain.LedgerEntriesFrom(sub, conditions)
	return o.applyTransition(ctx, sub, domain.StatusError, entries)
}

// applyTransition reports whether the guarded write actually applied; a
// transition lost to a concurrent settlement returns false with no error.
func (o *Orchestrator) applyTransition(ctx context.Context, sub domain.Submission, target domain.Status, entries []domain.LedgerEntry) (bool, error) {
	if !domain.CanTransition(sub.Status, target) {
		return false, faults.New(faults.ErrInvalidTransition,
			"submission %s cannot move %s -> %s", sub.ID, sub.Status, target)
	}
	err := o.subs.ApplyOutcome(ctx, sub.ID, sub.Status, target, entries)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Another invocation settled this submission first; the
			// redelivered signal has nothing left to do.
			logger.WithSubmission(o.log, sub.ID).Info("transition lost race, treating as settled",
				"from", sub.Status, "to", target)
			return false, nil
		}
		return false, faults.Infrastructure("submission store", err)
	}
	return true, nil
}

func (o *Orchestrator) loadFailure(id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		// A signal for a submission that no longer exists cannot be retried
		// into existence; settle the message.
		o.log.Warn("signal references unknown submission", "submission_id", id)
		return nil
	}
	return faults.Infrastructure("submission store", err)
}

func (o *Orchestrator) publishSignal(ctx context.Context, signal domain.StageSignal) {
	if o.notifications == nil {
		return
	}
	event := kafka.Event{Key: signal.SubmissionID.String(), Value: signal}
	if err := o.notifications.Publish(ctx, event); err != nil {
		// Notification delivery is best-effort; the status row is the
		// source of truth.
		o.log.Error("failed to publish stage signal",
			"stage", signal.Stage, "submission_id", signal.SubmissionID, "error", err)
	}
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.stageTimeout)
}

func (o *Orchestrator) observe(stage domain.Stage, outcome string, started time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveStage(string(stage), outcome, o.clock().Sub(started))
}

func (o *Orchestrator) countConditions(categoryID string, conditions []domain.ValidationCondition) {
	if o.metrics == nil {
		return
	}
	for _, c := range conditions {
		o.metrics.ConditionsTotal.WithLabelValues(categoryID, string(c.Code)).Inc()
	}
}
