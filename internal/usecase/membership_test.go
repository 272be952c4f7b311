package usecase

import (
	"errors"
	"testing"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

func TestCreateUserHashesPassword(t *testing.T) {
	f := newFixture(t)
	company := f.company("Acme")

	user, err := f.memberships.CreateUser(f.ctx, company, "  Dana@Example.com ", "Dana", "s3cret-pass")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "dana@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash != "" {
		t.Fatalf("returned user must not carry the hash")
	}

	stored := f.store.snapshot().users[user.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == "s3cret-pass" {
		t.Fatalf("expected an argon2 hash, got %q", stored.PasswordHash)
	}
	ok, err := f.hasher.Verify("s3cret-pass", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	company := f.company("Acme")

	_, err := f.memberships.CreateUser(f.ctx, company, "  ", "", "short")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"email", "name", "password"} {
		if len(verr.Fields[field]) == 0 {
			t.Fatalf("expected a message for %s, got %+v", field, verr.Fields)
		}
	}
}

func TestCreateUserConflictsAndMissingCompany(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	globex := f.company("Globex")
	f.user(acme, "erin@example.com", "s3cret-pass")

	if _, err := f.memberships.CreateUser(f.ctx, globex, "ERIN@example.com", "Erin", "s3cret-pass"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict across companies, got %v", err)
	}
	if _, err := f.memberships.CreateUser(f.ctx, "nope", "frank@example.com", "Frank", "s3cret-pass"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing company, got %v", err)
	}
}

func TestAssignRoleIsIdempotentAndPublishes(t *testing.T) {
	f := newFixture(t)
	company := f.company("Acme")
	roleID := f.role(company, "Viewer", domain.PermOffersReadCompany)
	userID := f.user(company, "gail@example.com", "s3cret-pass")

	f.assign(company, userID, roleID)
	f.assign(company, userID, roleID)

	count := 0
	for key := range f.store.snapshot().memberships {
		if key.userID == userID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one membership, got %d", count)
	}
	if len(f.events.memberships) != 2 || !f.events.memberships[0].Assigned {
		t.Fatalf("unexpected membership events: %+v", f.events.memberships)
	}

	if err := f.memberships.RemoveRole(f.ctx, "admin", company, userID, roleID); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if len(f.store.snapshot().memberships) != 0 {
		t.Fatalf("expected membership removed")
	}
	last := f.events.memberships[len(f.events.memberships)-1]
	if last.Assigned || last.RoleID != roleID {
		t.Fatalf("unexpected removal event: %+v", last)
	}
}

func TestAssignRoleRespectsCompanyBoundaries(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	globex := f.company("Globex")
	acmeRole := f.role(acme, "Viewer")
	globexRole := f.role(globex, "Viewer")
	global := f.globalRole("Auditor", domain.PermPermissionRead)
	acmeUser := f.user(acme, "hal@example.com", "s3cret-pass")
	globexUser := f.user(globex, "ivy@example.com", "s3cret-pass")

	if err := f.memberships.AssignRole(f.ctx, "admin", acme, acmeUser, globexRole); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign role to be not found, got %v", err)
	}
	if err := f.memberships.AssignRole(f.ctx, "admin", acme, globexUser, acmeRole); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign user to be not found, got %v", err)
	}
	if err := f.memberships.AssignRole(f.ctx, "admin", acme, acmeUser, global); err != nil {
		t.Fatalf("expected global role to be assignable: %v", err)
	}
}

func TestEffectivePermissionsReadsCurrentMemberships(t *testing.T) {
	f := newFixture(t)
	company := f.company("Acme")
	viewer := f.role(company, "Viewer", domain.PermOffersReadCompany, domain.PermOffersReadSelf)
	editor := f.role(company, "Editor", domain.PermOffersReadCompany, domain.PermOffersWriteCompany)
	userID := f.user(company, "jo@example.com", "s3cret-pass")
	f.assign(company, userID, viewer)

	pair, err := f.credentials.IssueAccess(f.ctx, userID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	identity := f.identity(pair.AccessToken)

	f.assign(company, userID, editor)

	keys, err := f.memberships.EffectivePermissions(f.ctx, identity)
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	want := sortedCopy([]string{domain.PermOffersReadCompany, domain.PermOffersReadSelf, domain.PermOffersWriteCompany})
	if !equalStrings(sortedCopy(keys), want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}

func TestEffectivePermissionsRejectsMismatchedIdentity(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	globex := f.company("Globex")
	userID := f.user(acme, "kai@example.com", "s3cret-pass")

	if _, err := f.memberships.EffectivePermissions(f.ctx, nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := f.memberships.EffectivePermissions(f.ctx, &domain.Identity{UserID: userID, CompanyID: globex}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for company mismatch, got %v", err)
	}
	if _, err := f.memberships.EffectivePermissions(f.ctx, &domain.Identity{UserID: "ghost", CompanyID: acme}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for unknown user, got %v", err)
	}

	keys, err := f.memberships.EffectivePermissions(f.ctx, &domain.Identity{UserID: userID, CompanyID: acme})
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected no keys for a member without roles, got %v %v", keys, err)
	}
}

func TestUpdateProfileRewritesEmailAndName(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	globex := f.company("Globex")
	userID := f.user(acme, "hank@example.com", "s3cret-pass")
	f.user(acme, "ivy@example.com", "s3cret-pass")
	outsider := f.user(globex, "jack@example.com", "s3cret-pass")

	user, err := f.memberships.UpdateProfile(f.ctx, acme, userID, " Henry@Example.com ", "Henry")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Email != "henry@example.com" || user.DisplayName != "Henry" || user.PasswordHash != "" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, err := f.credentials.Login(f.ctx, "henry@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("expected login with the new email: %v", err)
	}

	kept, err := f.memberships.UpdateProfile(f.ctx, acme, userID, "henry@example.com", "")
	if err != nil || kept.DisplayName != "Henry" {
		t.Fatalf("expected blank name to keep the current one: %v %v", kept, err)
	}

	if _, err := f.memberships.UpdateProfile(f.ctx, acme, userID, "IVY@example.com", "Henry"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	if _, err := f.memberships.UpdateProfile(f.ctx, acme, userID, " ", "Henry"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.memberships.UpdateProfile(f.ctx, acme, outsider, "jack2@example.com", "Jack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected another company's user to be not found, got %v", err)
	}
}

func TestRemoveUserDropsMembershipsAndCredentials(t *testing.T) {
	f := newFixture(t)
	acme := f.company("Acme")
	globex := f.company("Globex")
	viewer := f.role(acme, "Viewer", domain.PermOffersReadCompany)
	auditor := f.globalRole("Auditor", domain.PermPermissionRead)
	userID := f.user(acme, "kim@example.com", "s3cret-pass")
	outsider := f.user(globex, "lee@example.com", "s3cret-pass")
	f.assign(acme, userID, viewer)
	f.assign(acme, userID, auditor)

	pair, err := f.credentials.Login(f.ctx, "kim@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	before := len(f.events.memberships)

	if err := f.memberships.RemoveUser(f.ctx, "admin", globex, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-company removal to be not found, got %v", err)
	}
	if err := f.memberships.RemoveUser(f.ctx, "admin", acme, userID); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if err := f.memberships.RemoveUser(f.ctx, "admin", acme, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected repeated removal to be not found, got %v", err)
	}

	st := f.store.snapshot()
	if !st.users[userID].Deleted {
		t.Fatalf("expected user soft-deleted")
	}
	for key := range st.memberships {
		if key.userID == userID {
			t.Fatalf("expected memberships cleared, found %+v", key)
		}
	}
	if st.users[outsider].Deleted {
		t.Fatalf("expected other users untouched")
	}

	removed := f.events.memberships[before:]
	if len(removed) != 2 || removed[0].Assigned || removed[1].Assigned {
		t.Fatalf("unexpected removal events: %+v", removed)
	}

	if _, err := f.credentials.Login(f.ctx, "kim@example.com", "s3cret-pass"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected removed user to be unable to log in, got %v", err)
	}
	if _, err := f.credentials.Refresh(f.ctx, pair.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected removed user's refresh to fail, got %v", err)
	}
	if _, err := f.memberships.CreateUser(f.ctx, acme, "kim@example.com", "Kim", "s3cret-pass"); err != nil {
		t.Fatalf("expected the email of a removed user to be reusable: %v", err)
	}
}
