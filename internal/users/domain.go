package users

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/rbac"
)

// User represents a staff account.
type User struct {
	ID             int64           `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	Role           rbac.Role       `json:"role"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Principal projects the user onto the authorization identity.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// ListFilter narrows ListUsers.
type ListFilter struct {
	Role       rbac.Role
	ActiveOnly bool
}
