package enums

// UserRole separates storefront shoppers from back-office operators.
type UserRole string

const (
	UserRoleCustomer UserRole = "CUSTOMER"
	UserRoleAdmin    UserRole = "ADMIN"
)

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleCustomer, UserRoleAdmin:
		return true
	}
	return false
}

func ParseUserRole(value string) (UserRole, bool) {
	role := UserRole(value)
	return role, role.IsValid()
}
