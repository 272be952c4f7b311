package routes

import (
	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/policy"
)

// Operation ids of the protected HTTP surface.
const (
	OpCompanyCreate          = "company.create"
	OpCompanyList            = "company.list"
	OpCompanyRead            = "company.read"
	OpCompanyRename          = "company.rename"
	OpCompanyDelete          = "company.delete"
	OpRoleCreate             = "role.create"
	OpRoleRename             = "role.rename"
	OpRoleDelete             = "role.delete"
	OpRolePermissionsRead    = "role.permissions.read"
	OpRolePermissionsAssign  = "role.permissions.assign"
	OpRolePermissionsRemove  = "role.permissions.remove"
	OpRolePermissionsReplace = "role.permissions.replace"
	OpUserCreate             = "user.create"
	OpUserUpdate             = "user.update"
	OpUserDelete             = "user.delete"
	OpUserRolesAssign        = "user.roles.assign"
	OpUserRolesRemove        = "user.roles.remove"
	OpMePermissions          = "me.permissions"
	OpPermissionList         = "permission.list"
	OpPermissionRetire       = "permission.retire"
	OpOffersReadCompany      = "offers.read.company"
)

// DefaultRegistry declares what each operation requires.
func DefaultRegistry() *policy.Registry {
	return policy.NewRegistry().
		Register(OpCompanyCreate, domain.PermCompanyCreate).
		Register(OpCompanyList, domain.PermCompanyRead).
		Register(OpCompanyRead, domain.PermCompanyRead).
		Register(OpCompanyRename, domain.PermCompanyUpdate).
		Register(OpCompanyDelete, domain.PermCompanyDelete).
		Register(OpRoleCreate, domain.PermRoleCreate).
		Register(OpRoleRename, domain.PermRoleUpdate).
		Register(OpRoleDelete, domain.PermRoleDelete).
		Register(OpRolePermissionsRead, domain.PermRoleRead).
		Register(OpRolePermissionsAssign, domain.PermRoleSetPermission).
		Register(OpRolePermissionsRemove, domain.PermRoleSetPermission).
		Register(OpRolePermissionsReplace, domain.PermRoleSetPermission).
		Register(OpUserCreate, domain.PermUserCreate).
		Register(OpUserUpdate, domain.PermUserUpdate).
		Register(OpUserDelete, domain.PermUserDelete).
		Register(OpUserRolesAssign, domain.PermUserAssignRole).
		Register(OpUserRolesRemove, domain.PermUserAssignRole).
		Register(OpMePermissions).
		Register(OpPermissionList, domain.PermPermissionRead).
		Register(OpPermissionRetire, domain.PermPermissionDelete).
		Register(OpOffersReadCompany, domain.PermOffersReadCompany)
}
