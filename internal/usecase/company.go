package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CompanyService manages tenants.
type CompanyService struct {
	store  port.Store
	logger *zap.Logger
	now    func() time.Time
}

// CompanyQuery selects a page of companies. Zero Page and PageSize fall back
// to the first page of twenty.
type CompanyQuery struct {
	Name     string
	Page     int
	PageSize int
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(store port.Store, logger *zap.Logger) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create registers a company. Names are unique among live companies, ignoring case.
func (s *CompanyService) Create(ctx context.Context, name string) (*domain.Company, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}

	now := s.now()
	company := domain.Company{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		taken, err := repos.Companies.NameTaken(ctx, name, "")
		if err != nil {
			return fmt.Errorf("check company name: %w", err)
		}
		if taken {
			return conflict("company name %q is already used", name)
		}
		if err := repos.Companies.Create(ctx, company); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("company name %q is already used", name)
			}
			return fmt.Errorf("create company: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).Info("company created", zap.String("company_id", company.ID), zap.String("name", company.Name))
	return &company, nil
}

// Rename changes a company's name. The current name in any casing is a no-op.
func (s *CompanyService) Rename(ctx context.Context, id, name string) (*domain.Company, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}

	var company *domain.Company
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		company, err = repos.Companies.GetByID(ctx, id)
		if err != nil {
			return mapLookup(err, "Company", id)
		}
		if company.HasName(name) {
			return nil
		}

		taken, err := repos.Companies.NameTaken(ctx, name, id)
		if err != nil {
			return fmt.Errorf("check company name: %w", err)
		}
		if taken {
			return conflict("company name %q is already used", name)
		}

		now := s.now()
		if err := repos.Companies.Rename(ctx, id, name, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("company name %q is already used", name)
			}
			return mapLookup(err, "Company", id)
		}
		company.Name = name
		company.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).Info("company renamed", zap.String("company_id", id), zap.String("name", company.Name))
	return company, nil
}

// Delete soft-deletes a live company. A second delete reports not found.
func (s *CompanyService) Delete(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Companies.SoftDelete(ctx, id, s.now()); err != nil {
			return mapLookup(err, "Company", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithContext(ctx, s.logger).Info("company deleted", zap.String("company_id", id))
	return nil
}

// Get returns a live company.
func (s *CompanyService) Get(ctx context.Context, id string) (*domain.Company, error) {
	company, err := s.store.Repositories().Companies.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err, "Company", id)
	}
	return company, nil
}

// List returns a page of live companies ordered by name.
func (s *CompanyService) List(ctx context.Context, q CompanyQuery) ([]domain.Company, error) {
	v := &ValidationError{}
	if q.Page < 0 {
		v.add("page", "page must be positive")
	}
	switch {
	case q.PageSize < 0:
		v.add("pageSize", "page size must be positive")
	case q.PageSize > maxPageSize:
		v.add("pageSize", fmt.Sprintf("page size must be at most %d", maxPageSize))
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	page, size := q.Page, q.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defaultPageSize
	}

	companies, err := s.store.Repositories().Companies.List(ctx, port.CompanyFilter{
		Name:   strings.TrimSpace(q.Name),
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	return companies, nil
}
