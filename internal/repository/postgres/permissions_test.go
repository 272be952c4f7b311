package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Faik442/dotnetblueprints/internal/repository"
)

func TestPermissionRepository_RetireUnlinksRoles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT role_id FROM iam\.role_permissions WHERE permission_id = \$1 ORDER BY role_id`).
		WithArgs("perm-1").
		WillReturnRows(pgxmock.NewRows([]string{"role_id"}).AddRow("role-1").AddRow("role-2"))
	mock.ExpectExec(`UPDATE iam\.permissions SET deleted = \$1 WHERE id = \$2 AND deleted = \$3`).
		WithArgs(true, "perm-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM iam\.role_permissions WHERE permission_id = \$1`).
		WithArgs("perm-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := NewPermissionRepository(mock)
	roles, err := repo.RoleIDsGranting(context.Background(), "perm-1")
	if err != nil {
		t.Fatalf("RoleIDsGranting returned error: %v", err)
	}
	if len(roles) != 2 || roles[0] != "role-1" || roles[1] != "role-2" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if err := repo.SoftDelete(context.Background(), "perm-1"); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	if err := repo.Unlink(context.Background(), "perm-1"); err != nil {
		t.Fatalf("Unlink returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_SoftDeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE iam\.permissions`).
		WithArgs(true, "perm-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPermissionRepository(mock).SoftDelete(context.Background(), "perm-1")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
