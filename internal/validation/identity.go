package validation

import (
	"context"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
)

// IdentityResolver resolves a human-entered station identifier to the
// internal station key within one organization's inventory.
type IdentityResolver interface {
	LookupIdentity(ctx context.Context, humanKey string, organizationID uuid.UUID) (uuid.UUID, bool, error)
}

const stationIDColumn = "station_id"

// ResolveStationKeys resolves each record's station_id to the internal
// station key and appends it as the resolved-identity column. A station id
// with no inventory match yields a condition; a collaborator failure aborts
// the stage as a transient infrastructure fault.
func ResolveStationKeys(ctx context.Context, resolver IdentityResolver, organizationID uuid.UUID, rs domain.RecordSet) (domain.RecordSet, []domain.ValidationCondition, error) {
	if resolver == nil || !rs.HasColumn(stationIDColumn) {
		return rs, nil, nil
	}

	var conditions []domain.ValidationCondition
	resolved := make(map[string]string)
	unresolved := make(map[string]struct{})

	records := make([]domain.Record, len(rs.Records))
	for i, rec := range rs.Records {
		records[i] = rec
		stationID := rec.Value(stationIDColumn)
		if stationID == "" {
			continue
		}

		key, cached := resolved[stationID]
		if !cached {
			if _, miss := unresolved[stationID]; miss {
				conditions = append(conditions, domain.NewRowCondition(rec.Row, stationIDColumn,
					domain.CodeUnresolvedIdentity,
					"station %s is not registered for this organization", stationID))
				continue
			}
			internalKey, found, err := resolver.LookupIdentity(ctx, stationID, organizationID)
			if err != nil {
				return rs, nil, faults.Infrastructure("identity lookup", err)
			}
			if !found {
				unresolved[stationID] = struct{}{}
				conditions = append(conditions, domain.NewRowCondition(rec.Row, stationIDColumn,
					domain.CodeUnresolvedIdentity,
					"station %s is not registered for this organization", stationID))
				continue
			}
			key = internalKey.String()
			resolved[stationID] = key
		}

		values := make(map[string]string, len(rec.Values)+1)
		for k, v := range rec.Values {
			values[k] = v
		}
		values[domain.ResolvedStationKeyColumn] = key
		records[i] = domain.Record{Row: rec.Row, Values: values}
	}

	columns := rs.Columns
	if !rs.HasColumn(domain.ResolvedStationKeyColumn) {
		columns = append(append([]string{}, rs.Columns...), domain.ResolvedStationKeyColumn)
	}

	return domain.RecordSet{Columns: columns, Records: records}, conditions, nil
}
