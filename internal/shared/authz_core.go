package shared

// Core platform claims.
const (
	PermUsers       = "Users:Users"
	PermUser        = "Users:User"
	PermUserCreate  = "Users:Create"
	PermUserUpdate  = "Users:Update"
	PermUserDelete  = "Users:Delete"
	PermUserProfile = "Users:Profile"

	PermRole       = "Roles:Role"
	PermRoles      = "Roles:Roles"
	PermRoleCreate = "Roles:Create"
	PermRoleUpdate = "Roles:Update"
	PermRoleDelete = "Roles:Delete"

	PermPolicies = "Policies:Policies"

	PermRequestLog       = "RequestLogs:RequestLog"
	PermRequestLogs      = "RequestLogs:RequestLogs"
	PermRequestLogDelete = "RequestLogs:Delete"
)

// CoreScopes lists all claims related to the core platform.
func CoreScopes() []string {
	return []string{
		PermPolicies,
		PermUsers,
		PermUser,
		PermUserCreate,
		PermUserUpdate,
		PermUserDelete,
		PermUserProfile,
		PermRole,
		PermRoles,
		PermRoleCreate,
		PermRoleUpdate,
		PermRoleDelete,
		PermRequestLog,
		PermRequestLogs,
		PermRequestLogDelete,
	}
}
