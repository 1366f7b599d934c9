package rbac

// Role constants
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Permission constants
const (
	PermView              = "view"
	PermViewAudit         = "view_audit"
	PermManageAssets      = "manage_assets"
	PermManageCampaigns   = "manage_campaigns"
	PermManageRules       = "manage_rules"
	PermManageAutomation  = "manage_automation"
	PermManageConnections = "manage_connections"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOwner: {
		PermView, PermViewAudit, PermManageAssets, PermManageCampaigns,
		PermManageRules, PermManageAutomation, PermManageConnections,
	},
	RoleAdmin: {
		PermView, PermViewAudit, PermManageAssets, PermManageCampaigns,
		PermManageRules, PermManageAutomation,
		// Admin CANNOT: PermManageConnections
	},
	RoleMember: {
		PermView, PermManageAssets, PermManageCampaigns,
	},
	RoleViewer: {
		PermView,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsOwnerOnly reports whether only the project owner may hold the permission.
// Platform credentials belong to the owner's business accounts.
func IsOwnerOnly(permission string) bool {
	return permission == PermManageConnections
}
