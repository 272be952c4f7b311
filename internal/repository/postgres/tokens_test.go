package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

func TestTokenRepository_CreateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	token := domain.RefreshToken{
		ID:           "rt-1",
		UserID:       "user-1",
		TokenHash:    "ABCDEF",
		IssuedForJTI: "jti-1",
		CreatedAt:    now,
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO iam\.refresh_tokens`).
		WithArgs(token.ID, token.UserID, token.TokenHash, token.IssuedForJTI, token.CreatedAt, token.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewTokenRepository(mock).CreateRefreshToken(context.Background(), token); err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetRefreshTokenByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "issued_for_jti", "created_at", "expires_at", "revoked_at", "replaced_by_jti"}).
		AddRow("rt-1", "user-1", "ABCDEF", "jti-1", now, now.Add(time.Hour), nil, nil)

	mock.ExpectQuery(`SELECT id, user_id, token_hash, issued_for_jti, created_at, expires_at, revoked_at, replaced_by_jti FROM iam\.refresh_tokens WHERE token_hash = \$1`).
		WithArgs("ABCDEF").
		WillReturnRows(rows)

	token, err := NewTokenRepository(mock).GetRefreshTokenByHash(context.Background(), "ABCDEF")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash returned error: %v", err)
	}
	if token.ID != "rt-1" || token.IssuedForJTI != "jti-1" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.RevokedAt != nil || token.ReplacedByJTI != nil {
		t.Fatalf("expected active token, got %+v", token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetRefreshTokenByHashMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM iam\.refresh_tokens`).
		WithArgs("MISSING").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "issued_for_jti", "created_at", "expires_at", "revoked_at", "replaced_by_jti"}))

	_, err = NewTokenRepository(mock).GetRefreshTokenByHash(context.Background(), "MISSING")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRepository_RevokeRefreshTokenIsConditional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	at := time.Now().UTC()
	query := `UPDATE iam\.refresh_tokens SET revoked_at = \$1, replaced_by_jti = \$2 WHERE id = \$3 AND revoked_at IS NULL`

	mock.ExpectExec(query).
		WithArgs(at, "jti-2", "rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(query).
		WithArgs(at, "jti-3", "rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewTokenRepository(mock)
	if err := repo.RevokeRefreshToken(context.Background(), "rt-1", at, "jti-2"); err != nil {
		t.Fatalf("first revoke returned error: %v", err)
	}
	if err := repo.RevokeRefreshToken(context.Background(), "rt-1", at, "jti-3"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second revoke should lose, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
