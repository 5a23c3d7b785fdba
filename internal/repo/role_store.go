package repo

import (
	"context"

	"go-table-identity/internal/domain"
)

var _ domain.RoleStore = RoleStore{}

// RoleStore has nothing to persist: roles only exist as entries in each
// user's role list.
type RoleStore struct{}

func NewRoleStore() RoleStore { return RoleStore{} }

func (RoleStore) Create(context.Context, string) domain.IdentityResult { return domain.Success() }
func (RoleStore) Update(context.Context, string) domain.IdentityResult { return domain.Success() }
func (RoleStore) Delete(context.Context, string) domain.IdentityResult { return domain.Success() }

func (RoleStore) FindByID(_ context.Context, roleID string) (string, error) { return roleID, nil }
func (RoleStore) FindByName(_ context.Context, normalizedRoleName string) (string, error) {
	return normalizedRoleName, nil
}

func (RoleStore) GetRoleID(role string) string             { return role }
func (RoleStore) GetRoleName(role string) string           { return role }
func (RoleStore) GetNormalizedRoleName(role string) string { return role }

func (RoleStore) SetRoleName(context.Context, string, string) error           { return nil }
func (RoleStore) SetNormalizedRoleName(context.Context, string, string) error { return nil }
