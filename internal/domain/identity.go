package domain

import (
	"context"
	"strings"
)

type IdentityError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// IdentityResult is how create/update/delete report outcome. Storage faults
// land here instead of being returned as errors.
type IdentityResult struct {
	Succeeded bool            `json:"succeeded"`
	Errors    []IdentityError `json:"errors,omitempty"`
}

func Success() IdentityResult { return IdentityResult{Succeeded: true} }

func Failed(errs ...IdentityError) IdentityResult {
	return IdentityResult{Succeeded: false, Errors: errs}
}

func (r IdentityResult) String() string {
	if r.Succeeded {
		return "Succeeded"
	}
	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Code)
	}
	return "Failed : " + strings.Join(codes, ",")
}

type PageRequest struct {
	Size         int
	Continuation string
}

type UserPage struct {
	Users []*User
	Next  string // empty on the last page
}

// UserStore is the base user persistence contract.
type UserStore interface {
	GetUserID(u *User) string
	GetUserName(u *User) string
	SetUserName(ctx context.Context, u *User, userName string) error
	GetNormalizedUserName(u *User) string
	SetNormalizedUserName(ctx context.Context, u *User, normalizedName string) error
	FindByID(ctx context.Context, userID string) (*User, error)
	FindByName(ctx context.Context, normalizedUserName string) (*User, error)
	Create(ctx context.Context, u *User) IdentityResult
	Update(ctx context.Context, u *User) IdentityResult
	Delete(ctx context.Context, u *User) IdentityResult
}

type UserPasswordStore interface {
	UserStore
	SetPasswordHash(ctx context.Context, u *User, passwordHash string) error
	GetPasswordHash(u *User) string
	HasPassword(u *User) bool
}

type UserEmailStore interface {
	UserStore
	SetEmail(ctx context.Context, u *User, email string) error
	GetEmail(u *User) string
	GetEmailConfirmed(u *User) bool
	SetEmailConfirmed(ctx context.Context, u *User, confirmed bool) error
	FindByEmail(ctx context.Context, normalizedEmail string) (*User, error)
	GetNormalizedEmail(u *User) string
	SetNormalizedEmail(ctx context.Context, u *User, normalizedEmail string) error
}

type UserRoleStore interface {
	UserStore
	AddToRole(ctx context.Context, u *User, roleName string) error
	RemoveFromRole(ctx context.Context, u *User, roleName string) error
	GetRoles(u *User) []string
	IsInRole(u *User, roleName string) bool
	GetUsersInRole(ctx context.Context, roleName string) ([]*User, error)
}

// QueryableUserStore enumerates users page by page.
type QueryableUserStore interface {
	UserStore
	Users(ctx context.Context, req PageRequest) (UserPage, error)
	AllUsers(ctx context.Context) ([]*User, error)
}

// RoleStore treats a role as a bare string: it is its own id, name and
// normalized name.
type RoleStore interface {
	Create(ctx context.Context, role string) IdentityResult
	Update(ctx context.Context, role string) IdentityResult
	Delete(ctx context.Context, role string) IdentityResult
	FindByID(ctx context.Context, roleID string) (string, error)
	FindByName(ctx context.Context, normalizedRoleName string) (string, error)
	GetRoleID(role string) string
	GetRoleName(role string) string
	SetRoleName(ctx context.Context, role, roleName string) error
	GetNormalizedRoleName(role string) string
	SetNormalizedRoleName(ctx context.Context, role, normalizedName string) error
}
