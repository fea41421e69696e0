package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
)

type stationRepository struct {
	conn *db.Connection
}

// NewStationRepository wires the station inventory lookup.
func NewStationRepository(conn *db.Connection) StationRepository {
	return &stationRepository{conn: conn}
}

func (r *stationRepository) LookupIdentity(ctx context.Context, humanKey string, organizationID uuid.UUID) (uuid.UUID, bool, error) {
	var key uuid.UUID
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT station_key FROM stations WHERE organization_id = $1 AND station_id = $2`,
		organizationID, humanKey,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to look up station: %w", err)
	}
	return key, true, nil
}
