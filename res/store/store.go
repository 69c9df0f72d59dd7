package store

import (
	"context"
)

type Store interface {
	Appointments() AppointmentStore
	Customers() CustomerStore
	Employees() EmployeeStore
	Services() ServiceStore
	SchedulingConfigs() SchedulingConfigStore
	Invoices() InvoiceStore
	Users() UserStore

	// InTx runs fn against a transactional view of the store.
	// Any error returned by fn rolls back every write made through tx.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateRole(ctx context.Context, id string, role UserRole) error
}
