// Package uniqueness detects key-tuple collisions within a submission and
// against previously accepted or in-flight submissions for the same
// organization hierarchy.
package uniqueness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
)

// Collision is one persisted record sharing a key tuple with the submission
// under check.
type Collision struct {
	RecordKey    string
	SubmissionID uuid.UUID
}

// Scope restricts a collision lookup to one organization hierarchy, category,
// and, for periodic categories, one reporting window. Records belonging to
// ExcludeSubmissionID never count as collisions.
type Scope struct {
	CategoryID           string
	ParentOrganizationID uuid.UUID
	ReportingYear        int
	ReportingQuarter     int
	Periodic             bool
	ExcludeSubmissionID  uuid.UUID
}

// CollisionStore looks up persisted records matching any of the given keys.
// Implementations must exclude records of rejected or errored submissions.
type CollisionStore interface {
	FindKeyCollisions(ctx context.Context, scope Scope, keys []string) ([]Collision, error)
}

// Detector finds duplicate records for a submission.
type Detector struct {
	store CollisionStore
}

// NewDetector creates a Detector backed by the given store.
func NewDetector(store CollisionStore) *Detector {
	return &Detector{store: store}
}

// FindDuplicates reports every key-tuple collision in the record set, both
// within the submission and against the durable store. A within-submission
// duplicate takes precedence: its key is not additionally reported as a
// cross-submission duplicate.
func (d *Detector) FindDuplicates(ctx context.Context, sub domain.Submission, schema domain.CategorySchema, rs domain.RecordSet) ([]domain.ValidationCondition, error) {
	if len(schema.UniqueKeyFields) == 0 || len(rs.Records) == 0 {
		return nil, nil
	}

	keyRows := make(map[string][]int)
	var keyOrder []string
	for _, rec := range rs.Records {
		key, ok := RecordKey(schema, rec)
		if !ok {
			// A record missing a mandatory key field is already reported by
			// the record validator; it cannot be keyed.
			continue
		}
		if _, seen := keyRows[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		keyRows[key] = append(keyRows[key], rec.Row)
	}

	var conditions []domain.ValidationCondition
	header := strings.Join(schema.UniqueKeyFields, ", ")

	intra := make(map[string]struct{})
	for _, key := range keyOrder {
		rows := keyRows[key]
		if len(rows) < 2 {
			continue
		}
		intra[key] = struct{}{}
		conditions = append(conditions, domain.NewRowCondition(rows[0], header,
			domain.CodeDuplicateInSameUpload,
			"duplicate within this submission: key (%s) appears at rows %s", displayKey(key), joinRows(rows)))
	}

	var lookupKeys []string
	for _, key := range keyOrder {
		if _, dup := intra[key]; !dup {
			lookupKeys = append(lookupKeys, key)
		}
	}
	if len(lookupKeys) == 0 {
		return conditions, nil
	}

	scope := Scope{
		CategoryID:           sub.CategoryID,
		ParentOrganizationID: sub.ParentOrganizationID,
		ReportingYear:        sub.ReportingYear,
		Periodic:             schema.Periodic(),
		ExcludeSubmissionID:  sub.ID,
	}
	if sub.ReportingQuarter != nil {
		scope.ReportingQuarter = *sub.ReportingQuarter
	}

	collisions, err := d.store.FindKeyCollisions(ctx, scope, lookupKeys)
	if err != nil {
		return nil, faults.Infrastructure("uniqueness index", err)
	}

	others := make(map[string]map[uuid.UUID]struct{})
	for _, c := range collisions {
		if c.SubmissionID == sub.ID {
			continue
		}
		if others[c.RecordKey] == nil {
			others[c.RecordKey] = make(map[uuid.UUID]struct{})
		}
		others[c.RecordKey][c.SubmissionID] = struct{}{}
	}

	for _, key := range keyOrder {
		ids, collided := others[key]
		if !collided {
			continue
		}
		row := keyRows[key][0]
		conditions = append(conditions, domain.NewRowCondition(row, header,
			domain.CodeDuplicateInSystem,
			"duplicate with submission %s: key (%s) already reported", joinIDs(ids), displayKey(key)))
	}

	return conditions, nil
}

// RecordKey encodes a record's unique key tuple. Nullable key fields that are
// empty are excluded from the tuple rather than compared as empty, so records
// with and without a nullable key value never collapse into one group. The
// encoding is self-describing (field=value pairs), which keeps tuples over
// different populated field sets disjoint. The boolean is false when a
// non-nullable key field is empty.
func RecordKey(schema domain.CategorySchema, rec domain.Record) (string, bool) {
	parts := make([]string, 0, len(schema.UniqueKeyFields))
	for _, field := range schema.UniqueKeyFields {
		value := rec.Value(field)
		if value == "" || strings.EqualFold(value, domain.NullAckMarker) {
			if schema.IsNullableKey(field) {
				continue
			}
			return "", false
		}
		parts = append(parts, field+"="+value)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\x1f"), true
}

func displayKey(key string) string {
	return strings.ReplaceAll(key, "\x1f", ", ")
}

func joinRows(rows []int) string {
	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(labels, ", ")
}

func joinIDs(ids map[uuid.UUID]struct{}) string {
	labels := make([]string, 0, len(ids))
	for id := range ids {
		labels = append(labels, id.String())
	}
	sort.Strings(labels)
	return strings.Join(labels, ", ")
}
