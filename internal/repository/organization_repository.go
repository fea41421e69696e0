package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// ErrOrganizationNotFound reports an unknown organization id.
var ErrOrganizationNotFound = errors.New("organization not found")

type organizationRepository struct {
	conn *db.Connection
}

// NewOrganizationRepository wires the organization directory read side.
func NewOrganizationRepository(conn *db.Connection) OrganizationRepository {
	return &organizationRepository{conn: conn}
}

func (r *organizationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Organization, error) {
	var (
		org      domain.Organization
		parentID *uuid.UUID
	)
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT id, name, parent_id, tier FROM organizations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &parentID, &org.Tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Organization{}, fmt.Errorf("%w: %s", ErrOrganizationNotFound, id)
		}
		return domain.Organization{}, fmt.Errorf("failed to get organization: %w", err)
	}
	org.ParentID = parentID
	return org, nil
}

func (r *organizationRepository) ResolveName(ctx context.Context, id uuid.UUID) (string, error) {
	org, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return org.Name, nil
}
