package ledger

import "time"

// Role is a user's position in the sales hierarchy.
type Role string

const (
	RoleSalesPerson Role = "sales_person"
	RoleSubManager  Role = "sub_manager"
	RoleTopManager  Role = "top_manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSalesPerson, RoleSubManager, RoleTopManager:
		return true
	}
	return false
}

// User is a directory entry. Sales persons report to a sub-manager.
// Authentication lives outside this system, so there is no credential here.
type User struct {
	ID           UserID
	Username     string
	Role         Role
	FullName     string
	Email        string
	Phone        string
	SubManagerID *UserID
	CreatedAt    time.Time
}

// Validate checks the fields every user needs.
func (u User) Validate() error {
	switch {
	case u.Username == "":
		return invalidInput("username", "is required")
	case u.FullName == "":
		return invalidInput("full_name", "is required")
	case !u.Role.Valid():
		return invalidInput("role", "must be sales_person, sub_manager or top_manager")
	case u.SubManagerID != nil && u.Role != RoleSalesPerson:
		return invalidInput("sub_manager_id", "only sales persons report to a sub-manager")
	}
	return nil
}

// ValidateProduct checks catalog fields before a product is saved.
func ValidateProduct(p Product) error {
	switch {
	case p.Name == "":
		return invalidInput("name", "is required")
	case p.CostPrice.IsNegative():
		return invalidInput("cost_price", "must not be negative")
	case p.SellingPrice.IsNegative():
		return invalidInput("selling_price", "must not be negative")
	case p.StockQuantity < 0:
		return invalidInput("stock_quantity", "must not be negative")
	case p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(hundred):
		return invalidInput("commission_rate", "must be between 0 and 100")
	}
	return nil
}
