package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Faik442/dotnetblueprints/internal/core/port"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a pool capable of opening transactions.
type DB interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Store binds the repositories to a pool and runs units of work.
type Store struct {
	db DB
}

// NewStore constructs a Store over the provided pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Repositories returns repositories executing directly against the pool.
func (s *Store) Repositories() port.Repositories {
	return bind(s.db)
}

// WithinTx runs fn in a transaction that commits only when fn succeeds.
// A cancelled context aborts the commit and the transaction is rolled back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, bind(tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func bind(exec pgExecutor) port.Repositories {
	return port.Repositories{
		Companies:   NewCompanyRepository(exec),
		Roles:       NewRoleRepository(exec),
		Permissions: NewPermissionRepository(exec),
		Users:       NewUserRepository(exec),
		Tokens:      NewTokenRepository(exec),
	}
}

var _ port.Store = (*Store)(nil)
