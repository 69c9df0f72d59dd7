package postgresql

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"cleanbuddy-dispatch/res/store"

	sqlCommenter "github.com/gouyelliot/gorm-sqlcommenter-plugin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	pgCodeExclusionViolation = "23P01"
	pgCodeUniqueViolation    = "23505"
)

type storeImpl struct {
	db *gorm.DB

	appointmentStore      *appointmentStore
	customerStore         *customerStore
	employeeStore         *employeeStore
	serviceStore          *serviceStore
	schedulingConfigStore *schedulingConfigStore
	invoiceStore          *invoiceStore
	userStore             *userStore
}

func (sImpl *storeImpl) Appointments() store.AppointmentStore {
	return sImpl.appointmentStore
}

func (sImpl *storeImpl) Customers() store.CustomerStore {
	return sImpl.customerStore
}

func (sImpl *storeImpl) Employees() store.EmployeeStore {
	return sImpl.employeeStore
}

func (sImpl *storeImpl) Services() store.ServiceStore {
	return sImpl.serviceStore
}

func (sImpl *storeImpl) SchedulingConfigs() store.SchedulingConfigStore {
	return sImpl.schedulingConfigStore
}

func (sImpl *storeImpl) Invoices() store.InvoiceStore {
	return sImpl.invoiceStore
}

func (sImpl *storeImpl) Users() store.UserStore {
	return sImpl.userStore
}

// InTx runs fn inside one database transaction. Nested calls use savepoints.
func (sImpl *storeImpl) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return sImpl.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx))
	})
}

func Connect(connectionUrl string) (*storeImpl, error) {
	db, err := gorm.Open(postgres.Open(connectionUrl), &gorm.Config{TranslateError: true, PrepareStmt: false})
	if err != nil {
		return nil, err
	}

	err = db.Use(sqlCommenter.New())
	if err != nil {
		return nil, err
	}

	err = decorateDBOperationsWithAdditionalInfo(db)
	if err != nil {
		return nil, err
	}

	// Schema is owned by the embedded migrations (cmd/migrate), not by AutoMigrate

	return newStore(db), nil
}

func newStore(db *gorm.DB) *storeImpl {
	s := &storeImpl{db: db}

	s.appointmentStore = NewAppointmentStore(s)
	s.customerStore = NewCustomerStore(s)
	s.employeeStore = NewEmployeeStore(s)
	s.serviceStore = NewServiceStore(s)
	s.schedulingConfigStore = NewSchedulingConfigStore(s)
	s.invoiceStore = NewInvoiceStore(s)
	s.userStore = NewUserStore(s)

	return s
}

// COMMON UTILITIES

// translateError maps driver and gorm errors onto the store sentinels
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeExclusionViolation:
			return fmt.Errorf("%w (%s)", store.ErrOverlap, pgErr.ConstraintName)
		case pgCodeUniqueViolation:
			return fmt.Errorf("%w (%s)", store.ErrUniqueViolation, pgErr.ConstraintName)
		}
	}

	return err
}

func identifyCallee(stackDepth int) string {
	function, _, line, ok := runtime.Caller(stackDepth)
	if !ok {
		return "<missing-runtime-info>"
	}
	return fmt.Sprintf("%s:%d", runtime.FuncForPC(function).Name(), line)
}

func annotateWithInfoHook(db *gorm.DB) {
	info := identifyCallee(4) // Skip the internal gorm calls & the 2 local setup calls
	db.Clauses(sqlCommenter.NewTag("action", info))
}

func decorateDBOperationsWithAdditionalInfo(db *gorm.DB) error {
	return db.Callback().Query().Before("gorm:query").Register("store::annotate_with_info", annotateWithInfoHook)
}
