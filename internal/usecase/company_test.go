package usecase

import (
	"errors"
	"testing"
)

func TestCompanyLifecycle(t *testing.T) {
	f := newFixture(t)

	company, err := f.companies.Create(f.ctx, "  Acme  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if company.Name != "Acme" {
		t.Fatalf("expected trimmed name, got %q", company.Name)
	}

	if _, err := f.companies.Create(f.ctx, "ACME"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected case-insensitive conflict, got %v", err)
	}

	renamed, err := f.companies.Rename(f.ctx, company.ID, "Acme Corp")
	if err != nil || renamed.Name != "Acme Corp" {
		t.Fatalf("Rename: %v %v", renamed, err)
	}

	writes := f.store.writeCount()
	if _, err := f.companies.Rename(f.ctx, company.ID, "acme corp"); err != nil {
		t.Fatalf("Rename same name: %v", err)
	}
	if f.store.writeCount() != writes {
		t.Fatalf("expected same-name rename to be a no-op")
	}

	if err := f.companies.Delete(f.ctx, company.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.companies.Delete(f.ctx, company.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected repeated delete to be not found, got %v", err)
	}
	if _, err := f.companies.Get(f.ctx, company.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted company to be hidden, got %v", err)
	}

	if _, err := f.companies.Create(f.ctx, "Acme Corp"); err != nil {
		t.Fatalf("expected name of a deleted company to be reusable: %v", err)
	}
}

func TestCompanyRenameConflictAndValidation(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	f.company("Globex")

	if _, err := f.companies.Rename(f.ctx, acme, "globex"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := f.companies.Rename(f.ctx, acme, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.companies.Rename(f.ctx, "nope", "Other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompanyListFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	f.company("Globex")
	acme := f.company("Acme")
	f.company("acme labs")
	retired := f.company("Acme Retired")
	if err := f.companies.Delete(f.ctx, retired); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, err := f.companies.List(f.ctx, CompanyQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != acme || all[2].Name != "Globex" {
		t.Fatalf("unexpected companies: %+v", all)
	}

	matched, err := f.companies.List(f.ctx, CompanyQuery{Name: "ACME", Page: 2, PageSize: 1})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(matched) != 1 || matched[0].Name != "acme labs" {
		t.Fatalf("unexpected second page: %+v", matched)
	}

	empty, err := f.companies.List(f.ctx, CompanyQuery{Page: 9})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected an empty page, got %v %v", empty, err)
	}

	if _, err := f.companies.List(f.ctx, CompanyQuery{PageSize: 101}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected oversized page to be rejected, got %v", err)
	}
}

func TestCompanyGetReturnsLiveCompany(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")

	company, err := f.companies.Get(f.ctx, acme)
	if err != nil || company.Name != "Acme" {
		t.Fatalf("Get: %v %v", company, err)
	}
	if _, err := f.companies.Get(f.ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
