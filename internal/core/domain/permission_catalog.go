package domain

import "strings"

// WildcardPermission grants every requirement.
const WildcardPermission = "*"

// Permission keys known to the platform.
const (
	PermOffersReadSelf     = "Offers.Read.Self"
	PermOffersReadCompany  = "Offers.Read.Company"
	PermOffersReadAll      = "Offers.Read.All"
	PermOffersWriteSelf    = "Offers.Write.Self"
	PermOffersWriteCompany = "Offers.Write.Company"
	PermOffersWriteAll     = "Offers.Write.All"

	PermCompanyCreate = "Company.Create"
	PermCompanyRead   = "Company.Read"
	PermCompanyUpdate = "Company.Update"
	PermCompanyDelete = "Company.Delete"

	PermRoleCreate        = "Role.Create"
	PermRoleUpdate        = "Role.Update"
	PermRoleDelete        = "Role.Delete"
	PermRoleRead          = "Role.Read"
	PermRoleSetPermission = "Role.SetPermission"

	PermUserCreate     = "User.Create"
	PermUserUpdate     = "User.Update"
	PermUserDelete     = "User.Delete"
	PermUserAssignRole = "User.AssignRole"

	PermPermissionRead   = "Permission.Read"
	PermPermissionDelete = "Permission.Delete"
)

// PermissionDefinition is a catalog entry.
type PermissionDefinition struct {
	Key         string
	Description string
}

var catalog = []PermissionDefinition{
	{Key: WildcardPermission, Description: "Grants every permission"},
	{Key: PermOffersReadSelf, Description: "Read own offers"},
	{Key: PermOffersReadCompany, Description: "Read offers of the company"},
	{Key: PermOffersReadAll, Description: "Read offers of every company"},
	{Key: PermOffersWriteSelf, Description: "Write own offers"},
	{Key: PermOffersWriteCompany, Description: "Write offers of the company"},
	{Key: PermOffersWriteAll, Description: "Write offers of every company"},
	{Key: PermCompanyCreate, Description: "Create companies"},
	{Key: PermCompanyRead, Description: "List and read companies"},
	{Key: PermCompanyUpdate, Description: "Rename companies"},
	{Key: PermCompanyDelete, Description: "Delete companies"},
	{Key: PermRoleCreate, Description: "Create roles"},
	{Key: PermRoleUpdate, Description: "Rename roles"},
	{Key: PermRoleDelete, Description: "Delete roles"},
	{Key: PermRoleRead, Description: "Read role permissions"},
	{Key: PermRoleSetPermission, Description: "Change role permissions"},
	{Key: PermUserCreate, Description: "Create users in the company"},
	{Key: PermUserUpdate, Description: "Update user profiles in the company"},
	{Key: PermUserDelete, Description: "Remove users from the company"},
	{Key: PermUserAssignRole, Description: "Assign and remove user roles"},
	{Key: PermPermissionRead, Description: "List permissions"},
	{Key: PermPermissionDelete, Description: "Retire permissions"},
}

var catalogIndex = func() map[string]string {
	idx := make(map[string]string, len(catalog))
	for _, def := range catalog {
		idx[strings.ToLower(def.Key)] = def.Key
	}
	return idx
}()

// Catalog returns a copy of every known permission definition.
func Catalog() []PermissionDefinition {
	out := make([]PermissionDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// IsKnownPermission reports whether key is in the catalog, ignoring case.
func IsKnownPermission(key string) bool {
	_, ok := catalogIndex[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// NormalizePermissionKeys trims keys, drops blanks and removes case-insensitive
// duplicates. The first spelling of a key wins and input order is preserved.
func NormalizePermissionKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		lower := strings.ToLower(key)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, key)
	}
	return out
}
