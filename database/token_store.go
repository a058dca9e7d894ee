package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// PostgresTokenStore keeps one credential per profile in admin_credentials,
// letting several operator hosts share a login
type PostgresTokenStore struct {
	db      *sql.DB
	profile string
	logger  *logrus.Entry
}

// NewPostgresTokenStore creates a store for profile
func NewPostgresTokenStore(db *sql.DB, profile string) *PostgresTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &PostgresTokenStore{
		db:      db,
		profile: profile,
		logger: logrus.WithFields(logrus.Fields{
			"component": "PostgresTokenStore",
			"profile":   profile,
		}),
	}
}

func (s *PostgresTokenStore) Load(ctx context.Context) (models.Credential, error) {
	query := `
		SELECT access_token, refresh_token, username, issued_at
		FROM admin_credentials
		WHERE profile = $1
	`
	var (
		credential models.Credential
		issuedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, s.profile).Scan(
		&credential.Access, &credential.Refresh, &credential.Username, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, nil
	}
	if err != nil {
		return models.Credential{}, shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_READ_FAILED", "postgres-token-store", "load")
	}
	if issuedAt.Valid {
		credential.IssuedAt = issuedAt.Time
	}
	return credential, nil
}

func (s *PostgresTokenStore) Save(ctx context.Context, credential models.Credential) error {
	query := `
		INSERT INTO admin_credentials (profile, access_token, refresh_token, username, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (profile) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			username = EXCLUDED.username,
			issued_at = EXCLUDED.issued_at,
			updated_at = NOW()
	`
	var issuedAt sql.NullTime
	if !credential.IssuedAt.IsZero() {
		issuedAt = sql.NullTime{Time: credential.IssuedAt, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query, s.profile, credential.Access, credential.Refresh, credential.Username, issuedAt); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_WRITE_FAILED", "postgres-token-store", "save")
	}

	s.logger.WithField("username", credential.Username).Debug("Saved credential")
	return nil
}

func (s *PostgresTokenStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admin_credentials WHERE profile = $1`, s.profile); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_CLEAR_FAILED", "postgres-token-store", "clear")
	}
	return nil
}
