package postgresql

import (
	"context"
	"fmt"
	"net/mail"
	"unicode/utf8"

	"cleanbuddy-dispatch/res/store"
)

type userStore struct {
	*storeImpl
}

func NewUserStore(rootStore *storeImpl) *userStore {
	return &userStore{storeImpl: rootStore}
}

// MUTATIONS

func (uStore *userStore) Create(ctx context.Context, user *store.User) error {
	if err := validateUser(user); err != nil {
		return err
	}

	result := uStore.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return translateError(result.Error)
	} else if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create user (id: %s)", user.ID)
	}

	return nil
}

func (uStore *userStore) UpdateRole(ctx context.Context, id string, role store.UserRole) error {
	result := uStore.db.WithContext(ctx).Model(&store.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return translateError(result.Error)
	} else if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	return nil
}

// QUERIES

func (uStore *userStore) Get(ctx context.Context, id string) (*store.User, error) {
	var user store.User
	result := uStore.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &user, nil
}

func (uStore *userStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	var user store.User
	result := uStore.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &user, nil
}

// validateUser normalises the email and checks role and display name
func validateUser(user *store.User) error {
	switch user.Role {
	case store.UserRoleClient, store.UserRoleCleaner, store.UserRoleCleanerAdmin, store.UserRoleGlobalAdmin:
	default:
		return fmt.Errorf("%w: user role (%s)", store.ErrInvalidInput, user.Role)
	}

	// Display name validation

	if !utf8.ValidString(user.DisplayName) {
		return fmt.Errorf("%w: user display name string (%s)", store.ErrInvalidInput, user.DisplayName)
	}

	displayNameLength := utf8.RuneCountInString(user.DisplayName)
	if displayNameLength == 0 {
		return fmt.Errorf("%w: user display name string (empty)", store.ErrInvalidInput)
	} else if displayNameLength > 50 {
		return fmt.Errorf("%w: user display name length (%d > 50)", store.ErrInvalidInput, displayNameLength)
	}

	// Email validation

	if !utf8.ValidString(user.Email) {
		return fmt.Errorf("%w: user email address string", store.ErrInvalidInput)
	}
	emailAddr, err := mail.ParseAddress(user.Email)
	if err != nil {
		return fmt.Errorf("%w: user email address", store.ErrInvalidInput)
	}
	user.Email = emailAddr.Address

	return nil
}
