package domain

// Department groups responsible parties for area-scoped alerting.
type Department string

const (
	DepartmentBahia Department = "Bahía"
	DepartmentFlota Department = "Flota"
)

// Departments lists the departments in report order.
var Departments = []Department{DepartmentBahia, DepartmentFlota}

// HeadRole returns the role whose members head the department.
func (d Department) HeadRole() RoleID {
	switch d {
	case DepartmentBahia:
		return RoleBahiaHead
	case DepartmentFlota:
		return RoleFlotaHead
	}
	return 0
}
