package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/export"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/middleware"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/pipeline"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/repository"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/schema"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/kafka"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/logger"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/metrics"
)

const maxUploadBytes = 32 << 20

// Handler exposes the upload seam and the read-side submission endpoints.
// The upload only stages work: it creates the submission row, checks the
// declared digest, and publishes the first pipeline signal. Everything after
// that happens asynchronously.
type Handler struct {
	subs        repository.SubmissionRepository
	orgs        repository.OrganizationRepository
	ledger      repository.LedgerRepository
	registry    *schema.Registry
	integrity   pipeline.EventPublisher
	actions     pipeline.EventPublisher
	exporter    *export.LedgerExporter
	stuckWindow time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewHandler builds the intake HTTP surface.
func NewHandler(
	subs repository.SubmissionRepository,
	orgs repository.OrganizationRepository,
	ledger repository.LedgerRepository,
	registry *schema.Registry,
	integrity pipeline.EventPublisher,
	actions pipeline.EventPublisher,
	stuckWindow time.Duration,
) *Handler {
	return &Handler{
		subs:        subs,
		orgs:        orgs,
		ledger:      ledger,
		registry:    registry,
		integrity:   integrity,
		actions:     actions,
		exporter:    export.NewLedgerExporter(ledger),
		stuckWindow: stuckWindow,
		log:         logger.WithComponent("intake"),
	}
}

// WithMetrics enables the upload counters.
func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.metrics = m
	return h
}

func (h *Handler) countUpload(categoryID, result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.IntakeUploadsTotal.WithLabelValues(categoryID, result).Inc()
}

// Routes wires the handler onto a mux behind CORS.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", h.handleUpload)
	mux.HandleFunc("GET /submissions/stuck", h.handleStuck)
	mux.HandleFunc("GET /submissions/{id}", h.handleGet)
	mux.HandleFunc("GET /submissions/{id}/errors", h.handleErrors)
	mux.HandleFunc("GET /submissions/{id}/errors/export", h.handleErrorExport)
	mux.HandleFunc("POST /submissions/{id}/submit", h.handleAction(pipeline.ActionSubmit))
	mux.HandleFunc("POST /submissions/{id}/approve", h.handleAction(pipeline.ActionApprove))
	mux.HandleFunc("POST /submissions/{id}/reject", h.handleAction(pipeline.ActionReject))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	return corsHandler.Handler(middleware.Logging(mux))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	orgID, err := uuid.Parse(strings.TrimSpace(r.FormValue("organizationId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organization id: %v", err), http.StatusBadRequest)
		return
	}

	categoryID := strings.TrimSpace(r.FormValue("categoryId"))
	categorySchema, err := h.registry.CategorySchema(categoryID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown category: %s", categoryID), http.StatusBadRequest)
		return
	}

	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("reportingYear")))
	if err != nil {
		http.Error(w, "reportingYear is required", http.StatusBadRequest)
		return
	}
	var quarter *int
	if raw := strings.TrimSpace(r.FormValue("reportingQuarter")); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 1 || q > 4 {
			http.Error(w, "reportingQuarter must be 1-4", http.StatusBadRequest)
			return
		}
		quarter = &q
	}
	if categorySchema.Cadence == domain.CadenceQuarterly && quarter == nil {
		h.countUpload(categoryID, "rejected")
		http.Error(w, fmt.Sprintf("category %s reports quarterly; reportingQuarter is required", categoryID), http.StatusBadRequest)
		return
	}

	declaredDigest := strings.ToLower(strings.TrimSpace(r.FormValue("sha256")))
	if declaredDigest == "" {
		http.Error(w, "sha256 digest is required", http.StatusBadRequest)
		return
	}

	org, err := h.orgs.GetByID(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrganizationNotFound) {
			http.Error(w, fmt.Sprintf("unknown organization: %s", orgID), http.StatusBadRequest)
			return
		}
		h.log.Error("failed to load organization", "organization_id", orgID, "error", err)
		http.Error(w, "failed to load organization", http.StatusServiceUnavailable)
		return
	}
	parentID := org.ID
	if org.ParentID != nil {
		parentID = *org.ParentID
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	sum := sha256.Sum256(payload)
	digestMatches := hex.EncodeToString(sum[:]) == declaredDigest

	// Parse failures on a payload whose digest checks out are a caller
	// problem and rejected synchronously. A corrupted payload is not: the
	// integrity stage settles it so the submitter sees a ledger entry.
	var records domain.RecordSet
	if digestMatches {
		records, err = ParseTable(header.Filename, payload)
		if err != nil {
			h.countUpload(categoryID, "rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	sub, err := h.subs.Create(r.Context(), domain.Submission{
		ID:                   uuid.New(),
		CategoryID:           categoryID,
		OrganizationID:       org.ID,
		ParentOrganizationID: parentID,
		ReportingYear:        year,
		ReportingQuarter:     quarter,
		Status:               domain.StatusProcessing,
		Tier:                 org.Tier,
		Comments:             strings.TrimSpace(r.FormValue("comments")),
	})
	if err != nil {
		h.log.Error("failed to create submission", "error", err)
		http.Error(w, "failed to create submission", http.StatusInternalServerError)
		return
	}

	event := kafka.Event{
		Key: sub.ID.String(),
		Value: pipeline.IntegrityMessage{
			SubmissionID: sub.ID,
			Passed:       digestMatches,
			Records:      records,
		},
	}
	if err := h.integrity.Publish(r.Context(), event); err != nil {
		h.log.Error("failed to publish integrity signal", "submission_id", sub.ID, "error", err)
		http.Error(w, "failed to queue submission", http.StatusServiceUnavailable)
		return
	}

	h.countUpload(categoryID, "accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"submissionId": sub.ID,
		"status":       sub.Status,
		"period":       sub.PeriodLabel(),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load submission", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissionId": sub.ID,
		"categoryId":   sub.CategoryID,
		"status":       sub.Status,
		"period":       sub.PeriodLabel(),
		"updatedAt":    sub.UpdatedAt,
	})
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.ListBySubmission(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load error ledger", http.StatusInternalServerError)
		return
	}

	type entryView struct {
		ErrorRow    *int   `json:"errorRow,omitempty"`
		HeaderName  string `json:"headerName,omitempty"`
		Description string `json:"description"`
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{ErrorRow: e.ErrorRow, HeaderName: e.HeaderName, Description: e.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissionId": id, "errors": views})
}

func (h *Handler) handleErrorExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(id, format)))
	if err := h.exporter.Write(r.Context(), w, id, format); err != nil {
		h.log.Error("failed to export error ledger", "submission_id", id, "error", err)
	}
}

func (h *Handler) handleAction(action pipeline.ActionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var body struct {
			ActorOrganizationID uuid.UUID `json:"actorOrganizationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if body.ActorOrganizationID == uuid.Nil {
			http.Error(w, "actorOrganizationId is required", http.StatusBadRequest)
			return
		}

		event := kafka.Event{
			Key: id.String(),
			Value: pipeline.ActionMessage{
				Type:                action,
				SubmissionID:        id,
				ActorOrganizationID: body.ActorOrganizationID,
			},
		}
		if err := h.actions.Publish(r.Context(), event); err != nil {
			h.log.Error("failed to publish action", "action", action, "submission_id", id, "error", err)
			http.Error(w, "failed to queue action", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"submissionId": id, "action": action})
	}
}

func (h *Handler) handleStuck(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().Add(-h.stuckWindow)
	subs, err := h.subs.ListStuck(r.Context(), cutoff)
	if err != nil {
		http.Error(w, "failed to list stuck submissions", http.StatusInternalServerError)
		return
	}

	type stuckView struct {
		SubmissionID uuid.UUID `json:"submissionId"`
		CategoryID   string    `json:"categoryId"`
		Period       string    `json:"period"`
		CreatedAt    time.Time `json:"createdAt"`
	}
	views := make([]stuckView, 0, len(subs))
	for _, s := range subs {
		views = append(views, stuckView{
			SubmissionID: s.ID,
			CategoryID:   s.CategoryID,
			Period:       s.PeriodLabel(),
			CreatedAt:    s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stuck": views})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid submission id: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
