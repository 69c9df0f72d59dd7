package store

import "time"

type UserRole string

const (
	UserRoleClient       UserRole = "CLIENT"        // Customer booking services
	UserRoleCleaner      UserRole = "CLEANER"       // Staff member linked to an employee record
	UserRoleCleanerAdmin UserRole = "CLEANER_ADMIN" // Company dispatcher / admin of one tenant
	UserRoleGlobalAdmin  UserRole = "GLOBAL_ADMIN"  // Platform administrator
)

type User struct {
	ID          string   `gorm:"primaryKey;size:50;unique"`
	TenantID    string   `gorm:"size:50;not null;index:idx_user_tenant"`
	DisplayName string   `gorm:"size:50;not null"`
	Role        UserRole `gorm:"size:50;not null;default:'CLIENT'"`
	Email       string   `gorm:"size:256;not null"`

	// Domain records the account acts as
	CustomerID *string `gorm:"size:50"`
	EmployeeID *string `gorm:"size:50"`

	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
}

// IsGlobalAdmin checks if the user has global admin privileges
func (u *User) IsGlobalAdmin() bool {
	return u.Role == UserRoleGlobalAdmin
}

// IsCleanerAdmin checks if the user administers a company
func (u *User) IsCleanerAdmin() bool {
	return u.Role == UserRoleCleanerAdmin
}

// IsCleaner checks if the user is a cleaner working for a company
func (u *User) IsCleaner() bool {
	return u.Role == UserRoleCleaner
}

// IsClient checks if the user is a customer
func (u *User) IsClient() bool {
	return u.Role == UserRoleClient
}
