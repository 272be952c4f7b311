package usecase

import (
	"errors"
	"testing"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

func TestRetirePermissionUnlinksAndRepairsRoles(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	editor := f.role(acme, "Editor", domain.PermOffersReadCompany, domain.PermOffersWriteCompany)
	writer := f.role(acme, "Writer", domain.PermOffersWriteCompany)
	viewer := f.role(acme, "Viewer", domain.PermOffersReadCompany)
	identity := &domain.Identity{UserID: "user-1", CompanyID: acme, RoleIDs: []string{editor, writer}}

	if err := f.authorizer.Authorize(f.ctx, identity, []string{domain.PermOffersWriteCompany}); err != nil {
		t.Fatalf("expected write allowed before retirement, got %v", err)
	}
	cacheWrites := f.cache.writeCount()

	writeID := f.permIDs[domain.PermOffersWriteCompany]
	if err := f.permissions.Retire(f.ctx, writeID); err != nil {
		t.Fatalf("Retire: %v", err)
	}

	if got := f.projection(editor); !equalStrings(got, []string{domain.PermOffersReadCompany}) {
		t.Fatalf("unexpected editor projection: %v", got)
	}
	if got := f.projection(writer); len(got) != 0 {
		t.Fatalf("unexpected writer projection: %v", got)
	}
	if keys, ok := f.cache.entry(editor); !ok || !equalStrings(keys, []string{domain.PermOffersReadCompany}) {
		t.Fatalf("expected editor cache repaired, got %v %v", keys, ok)
	}
	if keys, ok := f.cache.entry(writer); ok {
		t.Fatalf("expected writer cache entry removed, got %v", keys)
	}
	if f.cache.writeCount()-cacheWrites != 2 {
		t.Fatalf("expected only the two affected roles repaired, viewer %s untouched", viewer)
	}
	if err := f.authorizer.Authorize(f.ctx, identity, []string{domain.PermOffersWriteCompany}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected retired permission denied, got %v", err)
	}

	perms, err := f.permissions.List(f.ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, p := range perms {
		if p.ID == writeID {
			t.Fatalf("expected retired permission hidden from the catalog")
		}
	}
	if added, err := f.permissions.SyncCatalog(f.ctx); err != nil || added != 0 {
		t.Fatalf("expected catalog sync to leave the retired key alone: %d %v", added, err)
	}

	if err := f.permissions.Retire(f.ctx, writeID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected repeated retirement to be not found, got %v", err)
	}
}

func TestRetirePermissionRejectsWildcard(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	admin := f.role(acme, "Admin", domain.WildcardPermission)

	if err := f.permissions.Retire(f.ctx, f.permIDs[domain.WildcardPermission]); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.projection(admin); !equalStrings(got, []string{domain.WildcardPermission}) {
		t.Fatalf("expected wildcard grant kept, got %v", got)
	}
}

func TestRetirePermissionReportsRepairFailure(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	editor := f.role(acme, "Editor", domain.PermOffersReadCompany, domain.PermOffersWriteCompany)

	f.cache.setErr = errors.New("redis down")
	if err := f.permissions.Retire(f.ctx, f.permIDs[domain.PermOffersWriteCompany]); err == nil {
		t.Fatalf("expected repair error to surface")
	}
	if got := f.projection(editor); !equalStrings(got, []string{domain.PermOffersReadCompany}) {
		t.Fatalf("expected the retirement to have committed, got %v", got)
	}
	if _, ok := f.cache.entry(editor); ok {
		t.Fatalf("expected the stale entry dropped")
	}
}
