package model

// Role codes as constants
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// ValidRole reports whether code is one of the known roles.
func ValidRole(code string) bool {
	return code == RoleAdmin || code == RoleStaff
}
