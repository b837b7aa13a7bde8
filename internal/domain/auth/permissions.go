package auth

import "employeehub/internal/domain/scope"

const (
	PermEmployeesManage         = "employees.manage"
	PermTrainingCoursesManage   = "training_courses.manage"
	PermTrainingRecordsRecord   = "training_records.record"
	PermSupervisionsCreate      = "supervisions.create"
	PermSupervisionsManage      = "supervisions.manage"
	PermOnboardingManage        = "onboarding.manage"
	PermAppraisalsManage        = "appraisals.manage"
	PermLeaveApprove            = "leave.approve"
	PermLeaveManageEntitlements = "leave.manage_entitlements"
	PermRotasEdit               = "rotas.edit"
	PermSettingsManage          = "settings.manage"
	PermNotificationsManage     = "notifications.manage"
	PermAuditLogView            = "audit_log.view"
	PermUsersManage             = "users.manage"
	PermEmployeeStatusesManage  = "employee_statuses.manage"
)

type Permission struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Catalog is the authoritative permission list. Seeding and role writes are
// both checked against it.
var Catalog = []Permission{
	{PermEmployeesManage, "Create and edit employee records"},
	{PermTrainingCoursesManage, "Maintain the training course catalogue"},
	{PermTrainingRecordsRecord, "Record training completions"},
	{PermSupervisionsCreate, "Record supervision meetings"},
	{PermSupervisionsManage, "Manage supervision requirements and exceptions"},
	{PermOnboardingManage, "Manage onboarding checklists"},
	{PermAppraisalsManage, "Generate and update appraisal milestones"},
	{PermLeaveApprove, "Approve leave requests"},
	{PermLeaveManageEntitlements, "Manage leave entitlements"},
	{PermRotasEdit, "Edit rotas"},
	{PermSettingsManage, "Change company settings"},
	{PermNotificationsManage, "Dispatch and clear compliance notifications"},
	{PermAuditLogView, "View the audit log"},
	{PermUsersManage, "Manage users and roles"},
	{PermEmployeeStatusesManage, "Manage employee statuses"},
}

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

type RoleDefinition struct {
	Name        string
	DataScope   scope.Scope
	Permissions []string
}

var DefaultRoles = []RoleDefinition{
	{Name: RoleAdmin, DataScope: scope.ScopeAll, Permissions: CatalogKeys()},
	{Name: RoleManager, DataScope: scope.ScopeReports, Permissions: []string{
		PermTrainingRecordsRecord,
		PermSupervisionsCreate,
		PermAppraisalsManage,
		PermLeaveApprove,
	}},
	{Name: RoleEmployee, DataScope: scope.ScopeOwn, Permissions: []string{}},
}

func CatalogKeys() []string {
	out := make([]string, 0, len(Catalog))
	for _, p := range Catalog {
		out = append(out, p.Key)
	}
	return out
}

func IsKnownPermission(key string) bool {
	for _, p := range Catalog {
		if p.Key == key {
			return true
		}
	}
	return false
}
