package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"authgate/internal/organization/models"
	"authgate/pkg/platform/sentinel"
)

// Postgres persists organizations and their issued tokens in PostgreSQL.
//
// Schema (owned by the administrative service's migrations):
//
//	organizations(organization_id PK, organization_name, webhook_callback_url,
//	              max_steps_per_run, max_retries_per_step, domain,
//	              created_at, modified_at)
//	organization_auth_tokens(token PK, organization_id FK, token_type, valid,
//	              created_at, modified_at)
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed Store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT organization_id, organization_name,
		       COALESCE(webhook_callback_url, ''),
		       max_steps_per_run, max_retries_per_step,
		       COALESCE(domain, ''),
		       created_at, modified_at
		FROM organizations
		WHERE organization_id = $1
	`
	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.WebhookCallbackURL,
		&org.MaxStepsPerRun,
		&org.MaxRetriesPerStep,
		&org.Domain,
		&org.CreatedAt,
		&org.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %q: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get organization: %w: %v", sentinel.ErrUnavailable, err)
	}
	return &org, nil
}

func (s *Postgres) IsTokenActive(ctx context.Context, orgID string, kind models.TokenKind, rawToken string) (bool, error) {
	var valid bool
	err := s.db.QueryRowContext(ctx, `
		SELECT valid
		FROM organization_auth_tokens
		WHERE token = $1 AND organization_id = $2 AND token_type = $3
	`, rawToken, orgID, string(kind)).Scan(&valid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check token: %w: %v", sentinel.ErrUnavailable, err)
	}
	return valid, nil
}
