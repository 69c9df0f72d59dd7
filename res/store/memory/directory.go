package memory

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"cleanbuddy-dispatch/res/store"
)

type customerStore struct {
	*view
}

func (cs *customerStore) Get(ctx context.Context, id string) (*store.Customer, error) {
	cs.guard.Lock()
	defer cs.guard.Unlock()

	customer, ok := cs.d.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (cs *customerStore) GetMany(ctx context.Context, ids []string) ([]*store.Customer, error) {
	cs.guard.Lock()
	defer cs.guard.Unlock()

	customers := make([]*store.Customer, 0, len(ids))
	for _, id := range ids {
		if customer, ok := cs.d.customers[id]; ok {
			customers = append(customers, &customer)
		}
	}
	return customers, nil
}

func (cs *customerStore) Create(ctx context.Context, customer *store.Customer) error {
	cs.guard.Lock()
	defer cs.guard.Unlock()

	if !customer.Frequency.IsValid() {
		return fmt.Errorf("%w: billing frequency (%s)", store.ErrInvalidInput, customer.Frequency)
	}
	if _, exists := cs.d.customers[customer.ID]; exists {
		return fmt.Errorf("%w: customer %s", store.ErrUniqueViolation, customer.ID)
	}

	now := cs.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	cs.d.customers[customer.ID] = *customer
	return nil
}

type employeeStore struct {
	*view
}

func (es *employeeStore) Get(ctx context.Context, id string) (*store.Employee, error) {
	es.guard.Lock()
	defer es.guard.Unlock()

	employee, ok := es.d.employees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &employee, nil
}

func (es *employeeStore) List(ctx context.Context, tenantID string, filters store.EmployeeFilters) ([]*store.Employee, error) {
	es.guard.Lock()
	defer es.guard.Unlock()

	employees := make([]*store.Employee, 0)
	for _, e := range es.d.employees {
		if e.TenantID != tenantID {
			continue
		}
		if filters.ActiveOnly && !e.IsActive {
			continue
		}
		if filters.Region != nil && !e.Serves(*filters.Region) {
			continue
		}
		employee := e
		employees = append(employees, &employee)
	}

	sort.Slice(employees, func(i, j int) bool {
		if employees[i].DisplayName != employees[j].DisplayName {
			return employees[i].DisplayName < employees[j].DisplayName
		}
		return employees[i].ID < employees[j].ID
	})
	return employees, nil
}

func (es *employeeStore) Create(ctx context.Context, employee *store.Employee) error {
	es.guard.Lock()
	defer es.guard.Unlock()

	if _, exists := es.d.employees[employee.ID]; exists {
		return fmt.Errorf("%w: employee %s", store.ErrUniqueViolation, employee.ID)
	}

	now := es.now()
	employee.CreatedAt = now
	employee.UpdatedAt = now
	es.d.employees[employee.ID] = *employee
	return nil
}

type serviceStore struct {
	*view
}

func (ss *serviceStore) Get(ctx context.Context, id string) (*store.Service, error) {
	ss.guard.Lock()
	defer ss.guard.Unlock()

	service, ok := ss.d.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &service, nil
}

func (ss *serviceStore) Create(ctx context.Context, service *store.Service) error {
	ss.guard.Lock()
	defer ss.guard.Unlock()

	if service.DurationMin <= 0 {
		return fmt.Errorf("%w: service duration (%d)", store.ErrInvalidInput, service.DurationMin)
	}
	if _, exists := ss.d.services[service.ID]; exists {
		return fmt.Errorf("%w: service %s", store.ErrUniqueViolation, service.ID)
	}

	now := ss.now()
	service.CreatedAt = now
	service.UpdatedAt = now
	ss.d.services[service.ID] = *service
	return nil
}

type userStore struct {
	*view
}

func (us *userStore) Get(ctx context.Context, id string) (*store.User, error) {
	us.guard.Lock()
	defer us.guard.Unlock()

	user, ok := us.d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (us *userStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	us.guard.Lock()
	defer us.guard.Unlock()

	for _, user := range us.d.users {
		if strings.EqualFold(user.Email, email) {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (us *userStore) UpdateRole(ctx context.Context, id string, role store.UserRole) error {
	us.guard.Lock()
	defer us.guard.Unlock()

	user, ok := us.d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	user.Role = role
	user.UpdatedAt = us.now()
	us.d.users[id] = user
	return nil
}

func (us *userStore) Create(ctx context.Context, user *store.User) error {
	us.guard.Lock()
	defer us.guard.Unlock()

	if _, exists := us.d.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s", store.ErrUniqueViolation, user.ID)
	}
	if user.DisplayName == "" {
		return fmt.Errorf("%w: user display name string (empty)", store.ErrInvalidInput)
	}
	emailAddr, err := mail.ParseAddress(user.Email)
	if err != nil {
		return fmt.Errorf("%w: user email address", store.ErrInvalidInput)
	}
	user.Email = emailAddr.Address

	now := us.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	us.d.users[user.ID] = *user
	return nil
}
