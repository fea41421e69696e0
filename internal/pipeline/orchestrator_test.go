package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/repository"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/rules"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/schema"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/uniqueness"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/kafka"
)

type stubSubs struct {
	subs        map[uuid.UUID]domain.Submission
	getErr      error
	applyErr    error
	transitions []string
	entries     []domain.LedgerEntry
}

func (s *stubSubs) Create(_ context.Context, sub domain.Submission) (domain.Submission, error) {
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *stubSubs) GetByID(_ context.Context, id uuid.UUID) (domain.Submission, error) {
	if s.getErr != nil {
		return domain.Submission{}, s.getErr
	}
	sub, ok := s.subs[id]
	if !ok {
		return domain.Submission{}, repository.ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *stubSubs) ApplyOutcome(_ context.Context, id uuid.UUID, from, to domain.Status, entries []domain.LedgerEntry) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	sub := s.subs[id]
	if sub.Status != from {
		return repository.ErrStaleStatus
	}
	sub.Status = to
	s.subs[id] = sub
	s.transitions = append(s.transitions, string(from)+"->"+string(to))
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *stubSubs) ListStuck(context.Context, time.Time) ([]domain.Submission, error) {
	return nil, nil
}

type stubLedger struct {
	entries []domain.LedgerEntry
	hasErr  error
}

func (l *stubLedger) Append(_ context.Context, entry domain.LedgerEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *stubLedger) ListBySubmission(context.Context, uuid.UUID) ([]domain.LedgerEntry, error) {
	return l.entries, nil
}

func (l *stubLedger) HasEntries(_ context.Context, _ uuid.UUID) (bool, error) {
	if l.hasErr != nil {
		return false, l.hasErr
	}
	return len(l.entries) > 0, nil
}

type stubRecords struct {
	persisted  map[uuid.UUID]domain.RecordSet
	persistErr error
	collisions []uniqueness.Collision
	deleted    []uuid.UUID
}

func (r *stubRecords) Persist(_ context.Context, sub domain.Submission, _ domain.CategorySchema, rs domain.RecordSet) error {
	if r.persistErr != nil {
		return r.persistErr
	}
	r.persisted[sub.ID] = rs
	return nil
}

func (r *stubRecords) GetBySubmission(_ context.Context, id uuid.UUID) (domain.RecordSet, error) {
	return r.persisted[id], nil
}

func (r *stubRecords) DeleteBySubmission(_ context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	delete(r.persisted, id)
	return nil
}

func (r *stubRecords) FindKeyCollisions(context.Context, uniqueness.Scope, []string) ([]uniqueness.Collision, error) {
	return r.collisions, nil
}

type stubStations struct{ known map[string]uuid.UUID }

func (s *stubStations) LookupIdentity(_ context.Context, humanKey string, _ uuid.UUID) (uuid.UUID, bool, error) {
	key, ok := s.known[humanKey]
	return key, ok, nil
}

type stubPublisher struct {
	events []kafka.Event
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, event kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fixedSource map[string]domain.CategorySchema

func (s fixedSource) Load() (map[string]domain.CategorySchema, error) { return s, nil }

type harness struct {
	orch     *Orchestrator
	subs     *stubSubs
	ledger   *stubLedger
	records  *stubRecords
	valid    *stubPublisher
	notify   *stubPublisher
	stations *stubStations
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	station := uuid.MustParse("4f2c8f5a-0f6f-4f37-9f3e-6a2f6d2c1b01")
	registry, err := schema.NewRegistry(fixedSource{
		"station": {
			CategoryID: "station",
			Name:       "Station Registration",
			Cadence:    domain.CadenceAnnual,
			Fields: []domain.FieldDefinition{
				{Name: "station_id", Type: domain.DataTypeString, Required: true, MaxLength: 64},
				{Name: "station_name", Type: domain.DataTypeString, Required: true, MaxLength: 128},
				{Name: "num_ports", Type: domain.DataTypeInteger},
			},
			UniqueKeyFields: []string{"station_id"},
		},
	})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	h := &harness{
		subs:     &stubSubs{subs: make(map[uuid.UUID]domain.Submission)},
		ledger:   &stubLedger{},
		records:  &stubRecords{persisted: make(map[uuid.UUID]domain.RecordSet)},
		valid:    &stubPublisher{},
		notify:   &stubPublisher{},
		stations: &stubStations{known: map[string]uuid.UUID{"GA-001": station, "GA-002": station}},
	}
	h.orch = NewOrchestrator(
		h.subs, h.ledger, h.records, h.stations,
		registry, rules.NewRegistry(), uniqueness.NewDetector(h.records),
		h.valid, h.notify,
		Options{},
	)
	return h
}

func (h *harness) addSubmission(status domain.Status, tier domain.RecipientTier) domain.Submission {
	sub := domain.Submission{
		ID:                   uuid.New(),
		CategoryID:           "station",
		OrganizationID:       uuid.New(),
		ParentOrganizationID: uuid.New(),
		ReportingYear:        2025,
		Status:               status,
		Tier:                 tier,
	}
	h.subs.subs[sub.ID] = sub
	return sub
}

func stationRecords(rows ...map[string]string) domain.RecordSet {
	records := make([]domain.Record, len(rows))
	for i, values := range rows {
		records[i] = domain.Record{Row: i, Values: values}
	}
	return domain.RecordSet{
		Columns: []string{"station_id", "station_name", "num_ports"},
		Records: records,
	}
}

func (h *harness) status(t *testing.T, id uuid.UUID) domain.Status {
	t.Helper()
	sub, err := h.subs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("loading submission: %v", err)
	}
	return sub.Status
}

func TestIntegrityPassTriggersValidation(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	rs := stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	err := h.orch.HandleIntegrity(context.Background(), IntegrityMessage{SubmissionID: sub.ID, Passed: true, Records: rs})
	if err != nil {
		t.Fatalf("integrity returned error: %v", err)
	}

	if len(h.valid.events) != 1 {
		t.Fatalf("expected validation message, got %d events", len(h.valid.events))
	}
	msg, ok := h.valid.events[0].Value.(ValidationMessage)
	if !ok || msg.SubmissionID != sub.ID {
		t.Fatalf("unexpected validation event %+v", h.valid.events[0])
	}
	if h.status(t, sub.ID) != domain.StatusProcessing {
		t.Fatalf("integrity pass must not change status")
	}
}

func TestIntegrityMismatchHaltsWithoutValidation(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)

	err := h.orch.HandleIntegrity(context.Background(), IntegrityMessage{SubmissionID: sub.ID, Passed: false})
	if err != nil {
		t.Fatalf("integrity returned error: %v", err)
	}

	if h.status(t, sub.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, sub.ID))
	}
	if len(h.valid.events) != 0 {
		t.Fatalf("validators must not be triggered on a mismatch")
	}
	if len(h.subs.entries) != 1 || !strings.Contains(h.subs.entries[0].Description, "integrity") {
		t.Fatalf("expected one checksum ledger entry, got %+v", h.subs.entries)
	}
	if len(h.notify.events) != 1 {
		t.Fatalf("expected a stage signal, got %d", len(h.notify.events))
	}
}

func TestIntegrityRedeliveryIsNoOp(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusDraft, domain.TierDirect)

	err := h.orch.HandleIntegrity(context.Background(), IntegrityMessage{SubmissionID: sub.ID, Passed: true})
	if err != nil {
		t.Fatalf("integrity returned error: %v", err)
	}
	if len(h.valid.events) != 0 || len(h.subs.transitions) != 0 {
		t.Fatalf("redelivered signal must not act")
	}
}

func TestValidationAdvancesDirectToDraft(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	rs := stationRecords(
		map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage", "num_ports": "4"},
		map[string]string{"station_id": "GA-002", "station_name": "Airport Deck B", "num_ports": "12"},
	)

	err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs})
	if err != nil {
		t.Fatalf("validation returned error: %v", err)
	}

	if h.status(t, sub.ID) != domain.StatusDraft {
		t.Fatalf("expected draft, got %s", h.status(t, sub.ID))
	}
	persisted := h.records.persisted[sub.ID]
	if len(persisted.Records) != 2 {
		t.Fatalf("expected records persisted, got %+v", persisted)
	}
	if !persisted.HasColumn(domain.ResolvedStationKeyColumn) {
		t.Fatalf("resolved station keys missing from persisted set")
	}
	if len(h.notify.events) != 1 {
		t.Fatalf("expected a stage signal")
	}
}

func TestValidationAdvancesSubordinateToPending(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierSubordinate)
	rs := stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusPending {
		t.Fatalf("expected pending, got %s", h.status(t, sub.ID))
	}
}

func TestValidationAccumulatesAllFindings(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)

	// One schema violation and one duplicated key in the same upload: both
	// findings must reach the ledger in a single outcome.
	rs := stationRecords(
		map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage", "num_ports": "many"},
		map[string]string{"station_id": "GA-002", "station_name": "Airport Deck B"},
		map[string]string{"station_id": "GA-002", "station_name": "Airport Deck B Again"},
	)

	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}

	if h.status(t, sub.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, sub.ID))
	}
	var sawInvalid, sawDuplicate bool
	for _, e := range h.subs.entries {
		if strings.Contains(e.Description, "not an integer") {
			sawInvalid = true
		}
		if strings.Contains(e.Description, "duplicate within this submission") {
			sawDuplicate = true
		}
	}
	if !sawInvalid || !sawDuplicate {
		t.Fatalf("expected both findings, got %+v", h.subs.entries)
	}
	if len(h.records.persisted) != 0 {
		t.Fatalf("nothing may be persisted on a failed validation")
	}
}

func TestValidationUnresolvedStationHalts(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	rs := stationRecords(map[string]string{"station_id": "GA-404", "station_name": "Ghost Station"})

	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, sub.ID))
	}
}

func TestValidationPersistRaceSettlesAsDuplicate(t *testing.T) {
	h := newHarness(t)
	h.records.persistErr = repository.ErrDuplicateKey
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	rs := stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, sub.ID))
	}
	if len(h.subs.entries) != 1 || !strings.Contains(h.subs.entries[0].Description, "concurrent submission") {
		t.Fatalf("expected concurrent-duplicate entry, got %+v", h.subs.entries)
	}
}

func TestValidationRedeliveryAfterSettlementIsNoOp(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusError, domain.TierDirect)
	rs := stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: sub.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}
	if len(h.subs.transitions) != 0 || len(h.records.persisted) != 0 {
		t.Fatalf("redelivered signal must not act")
	}
}

func TestSubmitAdvancesDirectDraft(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusDraft, domain.TierDirect)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", h.status(t, sub.ID))
	}
}

func TestSubmitRoutesSubordinateToPending(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusDraft, domain.TierSubordinate)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusPending {
		t.Fatalf("expected pending, got %s", h.status(t, sub.ID))
	}
}

func TestSubmitRechecksDuplicates(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusDraft, domain.TierDirect)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})
	h.records.collisions = []uniqueness.Collision{{
		RecordKey:    "station_id=GA-001",
		SubmissionID: uuid.New(),
	}}

	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, sub.ID))
	}
	if len(h.records.deleted) != 1 || h.records.deleted[0] != sub.ID {
		t.Fatalf("a submit-time duplicate must release the records persisted at validation")
	}
}

func TestSubmitErrorAllowsResubmissionWithSameKeys(t *testing.T) {
	h := newHarness(t)
	rs := stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	first := h.addSubmission(domain.StatusDraft, domain.TierDirect)
	h.records.persisted[first.ID] = rs
	h.records.collisions = []uniqueness.Collision{{
		RecordKey:    "station_id=GA-001",
		SubmissionID: uuid.New(),
	}}
	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: first.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if h.status(t, first.ID) != domain.StatusError {
		t.Fatalf("expected error status, got %s", h.status(t, first.ID))
	}
	if _, ok := h.records.persisted[first.ID]; ok {
		t.Fatalf("errored records must not keep occupying the uniqueness index")
	}

	// A resubmission with the same keys must persist cleanly.
	h.records.collisions = nil
	second := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	if err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: second.ID, Records: rs}); err != nil {
		t.Fatalf("validation returned error: %v", err)
	}
	if h.status(t, second.ID) != domain.StatusDraft {
		t.Fatalf("resubmission must advance, got %s", h.status(t, second.ID))
	}
}

func TestSubmitRedeliveryAfterErrorRetriesRelease(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusError, domain.TierDirect)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if len(h.subs.transitions) != 0 {
		t.Fatalf("redelivered action must not act")
	}
	if len(h.records.deleted) != 1 || h.records.deleted[0] != sub.ID {
		t.Fatalf("redelivery must retry releasing errored records")
	}
}

func TestSubmitRedeliveryIsNoOp(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusSubmitted, domain.TierDirect)

	if err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID}); err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if len(h.subs.transitions) != 0 {
		t.Fatalf("redelivered action must not act")
	}
}

func TestSubmitFromProcessingIsRefused(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)

	err := h.orch.HandleSubmit(context.Background(), ActionMessage{Type: ActionSubmit, SubmissionID: sub.ID})
	if !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected invalid-transition fault, got %v", err)
	}
	if faults.Retryable(err) {
		t.Fatalf("a refused action must not be redelivered")
	}
}

func TestApprovalByDirectRecipient(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusPending, domain.TierSubordinate)

	msg := ActionMessage{Type: ActionApprove, SubmissionID: sub.ID, ActorOrganizationID: sub.ParentOrganizationID}
	if err := h.orch.HandleApproval(context.Background(), msg); err != nil {
		t.Fatalf("approval returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", h.status(t, sub.ID))
	}
}

func TestRejectionReleasesRecords(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusPending, domain.TierSubordinate)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	msg := ActionMessage{Type: ActionReject, SubmissionID: sub.ID, ActorOrganizationID: sub.ParentOrganizationID}
	if err := h.orch.HandleApproval(context.Background(), msg); err != nil {
		t.Fatalf("rejection returned error: %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", h.status(t, sub.ID))
	}
	if len(h.records.deleted) != 1 || h.records.deleted[0] != sub.ID {
		t.Fatalf("rejected records must vacate the uniqueness index")
	}
}

func TestRejectionLostRaceKeepsRecords(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusPending, domain.TierSubordinate)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})
	h.subs.applyErr = repository.ErrStaleStatus

	msg := ActionMessage{Type: ActionReject, SubmissionID: sub.ID, ActorOrganizationID: sub.ParentOrganizationID}
	if err := h.orch.HandleApproval(context.Background(), msg); err != nil {
		t.Fatalf("a lost race settles the message, got %v", err)
	}
	if len(h.records.deleted) != 0 {
		t.Fatalf("a rejection that lost the race must not vacate the winner's records")
	}
}

func TestRejectRedeliveryRetriesRelease(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusRejected, domain.TierSubordinate)
	h.records.persisted[sub.ID] = stationRecords(map[string]string{"station_id": "GA-001", "station_name": "Midtown Garage"})

	msg := ActionMessage{Type: ActionReject, SubmissionID: sub.ID, ActorOrganizationID: sub.ParentOrganizationID}
	if err := h.orch.HandleApproval(context.Background(), msg); err != nil {
		t.Fatalf("rejection returned error: %v", err)
	}
	if len(h.subs.transitions) != 0 {
		t.Fatalf("redelivered decision must not act")
	}
	if len(h.records.deleted) != 1 || h.records.deleted[0] != sub.ID {
		t.Fatalf("redelivery must retry releasing rejected records")
	}
}

func TestApprovalByWrongOrganizationRefused(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusPending, domain.TierSubordinate)

	msg := ActionMessage{Type: ActionApprove, SubmissionID: sub.ID, ActorOrganizationID: uuid.New()}
	err := h.orch.HandleApproval(context.Background(), msg)
	if !errors.Is(err, faults.ErrUnauthorized) {
		t.Fatalf("expected unauthorized fault, got %v", err)
	}
	if h.status(t, sub.ID) != domain.StatusPending {
		t.Fatalf("status must be untouched, got %s", h.status(t, sub.ID))
	}
}

func TestApprovalRedeliveryIsNoOp(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusApproved, domain.TierSubordinate)

	msg := ActionMessage{Type: ActionApprove, SubmissionID: sub.ID, ActorOrganizationID: sub.ParentOrganizationID}
	if err := h.orch.HandleApproval(context.Background(), msg); err != nil {
		t.Fatalf("approval returned error: %v", err)
	}
	if len(h.subs.transitions) != 0 {
		t.Fatalf("redelivered decision must not act")
	}
}

func TestUnknownSubmissionIsSettled(t *testing.T) {
	h := newHarness(t)

	err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: uuid.New()})
	if err != nil {
		t.Fatalf("a signal for a deleted submission must settle, got %v", err)
	}
}

func TestStoreFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.subs.getErr = errors.New("connection refused")

	err := h.orch.HandleValidation(context.Background(), ValidationMessage{SubmissionID: uuid.New()})
	if !faults.Retryable(err) {
		t.Fatalf("expected retryable fault, got %v", err)
	}
}

func TestSettleUnknownWritesSingleGenericEntry(t *testing.T) {
	h := newHarness(t)
	sub := h.addSubmission(domain.StatusProcessing, domain.TierDirect)
	defect := errors.New("index out of range")

	if err := h.orch.SettleUnknown(context.Background(), sub.ID, defect); err != nil {
		t.Fatalf("settle returned error: %v", err)
	}
	if len(h.ledger.entries) != 1 || !strings.Contains(h.ledger.entries[0].Description, "internal error") {
		t.Fatalf("expected one generic entry, got %+v", h.ledger.entries)
	}
	if h.status(t, sub.ID) != domain.StatusProcessing {
		t.Fatalf("settling a defect must not change status")
	}

	// Redelivery of the same defect must not duplicate the entry.
	if err := h.orch.SettleUnknown(context.Background(), sub.ID, defect); err != nil {
		t.Fatalf("settle returned error: %v", err)
	}
	if len(h.ledger.entries) != 1 {
		t.Fatalf("expected entry to be written once, got %d", len(h.ledger.entries))
	}
}
