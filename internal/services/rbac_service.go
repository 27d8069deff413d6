package services

import (
	"sort"

	"stockledger/internal/models"
)

// Permission names checked by the HTTP layer
const (
	PermHierarchyRead   = "hierarchy:read"
	PermHierarchyWrite  = "hierarchy:write"
	PermLedgerRead      = "ledger:read"
	PermLedgerWrite     = "ledger:write"
	PermLedgerImport    = "ledger:import"
	PermApprovalResolve = "approvals:resolve"
	PermRecoveryManage  = "recovery:manage"
	PermAuditRead       = "audit:read"
)

var allPermissions = []string{
	PermHierarchyRead, PermHierarchyWrite,
	PermLedgerRead, PermLedgerWrite, PermLedgerImport,
	PermApprovalResolve, PermRecoveryManage, PermAuditRead,
}

var readPermissions = []string{PermHierarchyRead, PermLedgerRead}

var writePermissions = []string{PermHierarchyWrite, PermLedgerWrite}

type RBACService interface {
	RoleHasPermission(role models.Role, permissionName string) bool
	GetRolePermissions(role models.Role) []string
}

type rbacService struct {
	grants map[models.Role]map[string]bool
}

// NewRBACService builds the fixed role → permission map. recovery:manage is
// granted to super admins only.
func NewRBACService() RBACService {
	grant := func(groups ...[]string) map[string]bool {
		m := make(map[string]bool)
		for _, g := range groups {
			for _, p := range g {
				m[p] = true
			}
		}
		return m
	}

	return &rbacService{
		grants: map[models.Role]map[string]bool{
			models.RoleSuperAdmin:     grant(allPermissions),
			models.RoleClusterManager: grant(readPermissions, writePermissions, []string{PermLedgerImport, PermApprovalResolve, PermAuditRead}),
			models.RoleUser:           grant(readPermissions, writePermissions),
			models.RoleViewer:         grant(readPermissions),
		},
	}
}

func (s *rbacService) RoleHasPermission(role models.Role, permissionName string) bool {
	return s.grants[role][permissionName]
}

func (s *rbacService) GetRolePermissions(role models.Role) []string {
	var perms []string
	for p := range s.grants[role] {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}
