package enums

// UserRole is the marketplace role carried in access tokens.
type UserRole string

const (
	UserRoleBuyer    UserRole = "buyer"
	UserRoleSeller   UserRole = "seller"
	UserRoleOperator UserRole = "operator"
)

var validUserRoles = newSet("user role",
	UserRoleBuyer,
	UserRoleSeller,
	UserRoleOperator,
)

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return validUserRoles.has(r)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return validUserRoles.parse(value)
}
