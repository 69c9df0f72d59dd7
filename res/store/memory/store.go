// Package memory is an embedded, process-local implementation of store.Store.
//
// Every transaction runs under one writer lock against a private copy of the data that
// replaces the shared state only when the transaction succeeds. Overlapping appointments of
// one employee are rejected with store.ErrOverlap, mirroring the postgres exclusion constraint.
package memory

import (
	"context"
	"sync"
	"time"

	"cleanbuddy-dispatch/res/store"
)

type data struct {
	appointments map[string]store.Appointment
	customers    map[string]store.Customer
	employees    map[string]store.Employee
	services     map[string]store.Service
	configs      map[string]store.SchedulingConfig
	invoices     map[string]store.Invoice
	users        map[string]store.User
}

func newData() *data {
	return &data{
		appointments: map[string]store.Appointment{},
		customers:    map[string]store.Customer{},
		employees:    map[string]store.Employee{},
		services:     map[string]store.Service{},
		configs:      map[string]store.SchedulingConfig{},
		invoices:     map[string]store.Invoice{},
		users:        map[string]store.User{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.appointments {
		c.appointments[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.services {
		c.services[k] = v
	}
	for k, v := range d.configs {
		c.configs[k] = v
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// view is the store.Store handed to callers. The root view takes the writer lock on every
// call; a transactional view runs while InTx already holds it.
type view struct {
	d     *data
	guard sync.Locker
	now   func() time.Time
}

type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time

	*view
}

type Option func(*Store)

// WithClock overrides the clock used for created/updated audit timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{data: newData(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.view = &view{d: s.data, guard: &s.mu, now: s.now}
	return s
}

// InTx runs fn against a private copy of the data while holding the writer lock.
// fn must only use tx; calling the root store from inside fn deadlocks.
func (v *view) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	v.guard.Lock()
	defer v.guard.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := v.d.clone()
	if err := fn(&view{d: working, guard: noLock{}, now: v.now}); err != nil {
		return err
	}

	*v.d = *working
	return nil
}

func (v *view) Appointments() store.AppointmentStore {
	return &appointmentStore{view: v}
}

func (v *view) Customers() store.CustomerStore {
	return &customerStore{view: v}
}

func (v *view) Employees() store.EmployeeStore {
	return &employeeStore{view: v}
}

func (v *view) Services() store.ServiceStore {
	return &serviceStore{view: v}
}

func (v *view) SchedulingConfigs() store.SchedulingConfigStore {
	return &schedulingConfigStore{view: v}
}

func (v *view) Invoices() store.InvoiceStore {
	return &invoiceStore{view: v}
}

func (v *view) Users() store.UserStore {
	return &userStore{view: v}
}
