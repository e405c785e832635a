package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleName is the persisted name of a role.
type RoleName = string

// System roles. They are seeded once and cannot be renamed, edited or deleted.
const (
	RoleSuperAdmin RoleName = "SuperAdmin"
	RoleDoctor     RoleName = "Doctor"
	RoleNurse      RoleName = "Nurse"
	RolePatient    RoleName = "Patient"
)

// SystemRoles lists the built-in roles.
var SystemRoles = []RoleName{RoleSuperAdmin, RoleDoctor, RoleNurse, RolePatient}

// IsSystemRoleName reports whether name is one of the built-in roles.
func IsSystemRoleName(name string) bool {
	for _, r := range SystemRoles {
		if r == name {
			return true
		}
	}
	return false
}

type Role struct {
	Base
	Name         string   `db:"name" json:"name"`
	Description  string   `db:"description" json:"description"`
	IsSystemRole bool     `db:"is_system_role" json:"is_system_role"`
	Permissions  []string `db:"-" json:"permissions,omitempty"`
}

// Permission is an atomic capability. Category is for display only.
type Permission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type RolePermission struct {
	RoleID       uuid.UUID `db:"role_id" json:"role_id"`
	PermissionID uuid.UUID `db:"permission_id" json:"permission_id"`
}

type UserRole struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Permission names used by route guards.
const (
	PermUsersView          = "users.view"
	PermUsersCreate        = "users.create"
	PermUsersEdit          = "users.edit"
	PermUsersDelete        = "users.delete"
	PermRolesView          = "roles.view"
	PermRolesCreate        = "roles.create"
	PermRolesEdit          = "roles.edit"
	PermRolesDelete        = "roles.delete"
	PermPatientsView       = "patients.view"
	PermPatientsEdit       = "patients.edit"
	PermPrescriptionsWrite = "prescriptions.create"
	PermVitalsCreate       = "vitals.create"
	PermAssignmentsManage  = "assignments.manage"
	PermDoctorsManage      = "doctors.manage"
	PermSpecializations    = "specializations.manage"
)

// PermissionCatalog is the seeded permission set.
var PermissionCatalog = []Permission{
	{Name: PermUsersView, Description: "View users", Category: "Users"},
	{Name: PermUsersCreate, Description: "Create users", Category: "Users"},
	{Name: PermUsersEdit, Description: "Edit users", Category: "Users"},
	{Name: PermUsersDelete, Description: "Delete users", Category: "Users"},
	{Name: PermRolesView, Description: "View roles", Category: "Roles"},
	{Name: PermRolesCreate, Description: "Create roles", Category: "Roles"},
	{Name: PermRolesEdit, Description: "Edit roles", Category: "Roles"},
	{Name: PermRolesDelete, Description: "Delete roles", Category: "Roles"},
	{Name: PermPatientsView, Description: "View patients", Category: "Patients"},
	{Name: PermPatientsEdit, Description: "Edit patients", Category: "Patients"},
	{Name: PermPrescriptionsWrite, Description: "Create prescriptions", Category: "Prescriptions"},
	{Name: PermVitalsCreate, Description: "Create vitals", Category: "Vitals"},
	{Name: PermAssignmentsManage, Description: "Manage staff assignments", Category: "Patients"},
	{Name: PermDoctorsManage, Description: "Manage doctors", Category: "Doctors"},
	{Name: PermSpecializations, Description: "Manage specializations", Category: "Doctors"},
}

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Description string   `json:"description" binding:"max=200"`
	Permissions []string `json:"permissions"`
}

type UpdateRoleRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Description string   `json:"description" binding:"max=200"`
	Permissions []string `json:"permissions"`
}

type SetRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type AssignRoleRequest struct {
	RoleName string `json:"role_name" binding:"required"`
}
