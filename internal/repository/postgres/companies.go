package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// CompanyRepository implements tenant persistence.
type CompanyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCompanyRepository constructs a company repository over any executor.
func NewCompanyRepository(exec pgExecutor) *CompanyRepository {
	return &CompanyRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a company.
func (r *CompanyRepository) Create(ctx context.Context, company domain.Company) error {
	stmt, args, err := r.builder.Insert("iam.companies").
		Columns("id", "name", "deleted", "created_at", "updated_at").
		Values(company.ID, company.Name, false, company.CreatedAt, company.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert company sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert company: %w", err)
	}

	return nil
}

// GetByID loads a live company.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	stmt, args, err := r.builder.Select("id", "name", "deleted", "created_at", "updated_at").
		From("iam.companies").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select company sql: %w", err)
	}

	var company domain.Company
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&company.ID, &company.Name, &company.Deleted, &company.CreatedAt, &company.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}

	return &company, nil
}

// NameTaken reports whether another live company uses name, ignoring case.
func (r *CompanyRepository) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	query := r.builder.Select("1").
		From("iam.companies").
		Where(squirrel.Expr("lower(name) = lower(?)", name)).
		Where(squirrel.Eq{"deleted": false})
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	return exists(ctx, r.exec, query, "company name")
}

// Rename updates the name of a live company.
func (r *CompanyRepository) Rename(ctx context.Context, id, name string, at time.Time) error {
	stmt, args, err := r.builder.Update("iam.companies").
		Set("name", name).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename company sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("rename company: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDelete flags a live company as deleted.
func (r *CompanyRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return softDelete(ctx, r.exec, r.builder, "iam.companies", id, at)
}

// List pages through live companies ordered by name.
func (r *CompanyRepository) List(ctx context.Context, filter port.CompanyFilter) ([]domain.Company, error) {
	query := r.builder.Select("id", "name", "deleted", "created_at", "updated_at").
		From("iam.companies").
		Where(squirrel.Eq{"deleted": false}).
		OrderBy("lower(name)", "id")
	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where(squirrel.ILike{"name": "%" + escapeLike(name) + "%"})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list companies sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Deleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}

	return companies, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func softDelete(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, table, id string, at time.Time) error {
	stmt, args, err := builder.Update(table).
		Set("deleted", true).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete %s sql: %w", table, err)
	}

	res, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", table, err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func exists(ctx context.Context, exec pgExecutor, query squirrel.SelectBuilder, what string) (bool, error) {
	stmt, args, err := query.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s exists sql: %w", what, err)
	}

	var found bool
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("query %s exists: %w", what, err)
	}

	return found, nil
}

func collectStrings(rows pgx.Rows, what string) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}

	return out, nil
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)
