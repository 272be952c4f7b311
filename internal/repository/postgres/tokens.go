package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// TokenRepository manages refresh tokens and access token traces.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a token repository over any executor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{exec: exec, builder: newBuilder()}
}

// CreateRefreshToken inserts a refresh token row. token_hash is unique.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("iam.refresh_tokens").
		Columns("id", "user_id", "token_hash", "issued_for_jti", "created_at", "expires_at").
		Values(token.ID, token.UserID, token.TokenHash, token.IssuedForJTI, token.CreatedAt, token.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetRefreshTokenByHash loads a refresh token regardless of its state.
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "token_hash", "issued_for_jti", "created_at", "expires_at", "revoked_at", "replaced_by_jti").
		From("iam.refresh_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var (
		token      domain.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.IssuedForJTI, &token.CreatedAt, &token.ExpiresAt, &revokedAt, &replacedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if revokedAt.Valid {
		at := revokedAt.Time
		token.RevokedAt = &at
	}
	if replacedBy.Valid {
		token.ReplacedByJTI = &replacedBy.String
	}

	return &token, nil
}

// RevokeRefreshToken revokes the token only if it is still unrevoked. Losing a
// concurrent rotation surfaces as repository.ErrNotFound.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, id string, at time.Time, replacedByJTI string) error {
	stmt, args, err := r.builder.Update("iam.refresh_tokens").
		Set("revoked_at", at).
		Set("replaced_by_jti", replacedByJTI).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// CreateAccessTokenRecord stores the audit trace of an issued access token.
func (r *TokenRepository) CreateAccessTokenRecord(ctx context.Context, record domain.AccessTokenRecord) error {
	stmt, args, err := r.builder.Insert("iam.access_tokens").
		Columns("jti", "user_id", "token", "created_at", "expires_at").
		Values(record.JTI, record.UserID, record.Token, record.CreatedAt, record.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert access token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}

	return nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
