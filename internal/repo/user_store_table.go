package repo

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-table-identity/internal/core/tablestorage"
	"go-table-identity/internal/domain"
)

// RoleMatch selects how a role name is tested against a user's stored list.
type RoleMatch string

const (
	// RoleMatchExact compares against the parsed list entries.
	RoleMatchExact RoleMatch = "exact"
	// RoleMatchSubstring tests containment in the raw comma-joined string.
	// "Admin" matches a user holding only "SuperAdmin".
	RoleMatchSubstring RoleMatch = "substring"
)

var (
	_ domain.UserPasswordStore  = (*UserStore)(nil)
	_ domain.UserEmailStore     = (*UserStore)(nil)
	_ domain.UserRoleStore      = (*UserStore)(nil)
	_ domain.QueryableUserStore = (*UserStore)(nil)
)

type Option func(*UserStore)

func WithPartitionKey(pk string) Option {
	return func(s *UserStore) {
		if pk != "" {
			s.partitionKey = pk
		}
	}
}

func WithRoleMatch(m RoleMatch) Option {
	return func(s *UserStore) {
		if m != "" {
			s.roleMatch = m
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *UserStore) {
		if l != nil {
			s.l = l
		}
	}
}

// UserStore keeps every user in one partition of a single table. Each setter
// persists immediately with insert-or-merge; there is no concurrency token,
// so concurrent writers to the same user are last-write-wins.
type UserStore struct {
	table        tablestorage.Table
	partitionKey string
	roleMatch    RoleMatch
	l            *zap.Logger
	newID        func() string
}

func NewUserStore(t tablestorage.Table, opts ...Option) *UserStore {
	s := &UserStore{
		table:        t,
		partitionKey: domain.DefaultPartitionKey,
		roleMatch:    RoleMatchExact,
		l:            zap.NewNop(),
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *UserStore) PartitionKey() string { return s.partitionKey }

// prepare assigns a row key once and pins the partition key.
func (s *UserStore) prepare(u *domain.User) {
	if u.RowKey == "" {
		u.RowKey = s.newID()
	}
	u.PartitionKey = s.partitionKey
}

func (s *UserStore) save(ctx context.Context, u *domain.User) error {
	s.prepare(u)
	return s.table.InsertOrMerge(ctx, u)
}

func (s *UserStore) byNormalizedEmail(ctx context.Context, normalized string) (*domain.User, error) {
	var found *domain.User
	err := tablestorage.ScanAs(ctx, s.table, tablestorage.Filter{
		"PartitionKey":    s.partitionKey,
		"NormalizedEmail": normalized,
	}, func(u *domain.User) bool {
		found = u
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ---- user contract ----

func (s *UserStore) GetUserID(u *domain.User) string { return u.RowKey }

// GetUserName returns the email; it doubles as the user name.
func (s *UserStore) GetUserName(u *domain.User) string { return u.Email }

func (s *UserStore) SetUserName(ctx context.Context, u *domain.User, userName string) error {
	u.Email = userName
	return s.save(ctx, u)
}

func (s *UserStore) GetNormalizedUserName(u *domain.User) string { return u.NormalizedEmail }

func (s *UserStore) SetNormalizedUserName(ctx context.Context, u *domain.User, normalizedName string) error {
	u.NormalizedEmail = normalizedName
	return s.save(ctx, u)
}

// FindByID returns (nil, nil) when no such user exists.
func (s *UserStore) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	return tablestorage.GetAs[domain.User](ctx, s.table, s.partitionKey, userID)
}

func (s *UserStore) FindByName(ctx context.Context, normalizedUserName string) (*domain.User, error) {
	return s.byNormalizedEmail(ctx, normalizedUserName)
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) domain.IdentityResult {
	if err := s.save(ctx, u); err != nil {
		return s.failure("create", u, err)
	}
	return domain.Success()
}

func (s *UserStore) Update(ctx context.Context, u *domain.User) domain.IdentityResult {
	if err := s.save(ctx, u); err != nil {
		return s.failure("update", u, err)
	}
	return domain.Success()
}

func (s *UserStore) Delete(ctx context.Context, u *domain.User) domain.IdentityResult {
	if err := s.table.Delete(ctx, s.partitionKey, u.RowKey); err != nil {
		return s.failure("delete", u, err)
	}
	return domain.Success()
}

func (s *UserStore) failure(op string, u *domain.User, err error) domain.IdentityResult {
	ie := domain.IdentityError{Code: faultCode(err), Description: err.Error()}
	var te *tablestorage.Error
	if errors.As(err, &te) && te.Message != "" {
		ie.Description = te.Message
	}
	s.l.Info("user "+op+" failed", zap.String("user_id", u.RowKey), zap.String("code", ie.Code), zap.Error(err))
	return domain.Failed(ie)
}

// faultCode is the storage error code when there is one, else the Go type
// name of the error.
func faultCode(err error) string {
	var te *tablestorage.Error
	if errors.As(err, &te) && te.Code != "" {
		return te.Code
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}

// ---- password contract ----

func (s *UserStore) SetPasswordHash(ctx context.Context, u *domain.User, passwordHash string) error {
	u.PasswordHash = passwordHash
	return s.save(ctx, u)
}

func (s *UserStore) GetPasswordHash(u *domain.User) string { return u.PasswordHash }

func (s *UserStore) HasPassword(u *domain.User) bool { return u.PasswordHash != "" }

// ---- email contract ----

func (s *UserStore) FindByEmail(ctx context.Context, normalizedEmail string) (*domain.User, error) {
	return s.byNormalizedEmail(ctx, normalizedEmail)
}

func (s *UserStore) SetEmail(ctx context.Context, u *domain.User, email string) error {
	u.Email = email
	return s.save(ctx, u)
}

func (s *UserStore) GetEmail(u *domain.User) string { return u.Email }

func (s *UserStore) GetEmailConfirmed(u *domain.User) bool { return u.EmailConfirmed }

func (s *UserStore) SetEmailConfirmed(ctx context.Context, u *domain.User, confirmed bool) error {
	u.EmailConfirmed = confirmed
	return s.save(ctx, u)
}

func (s *UserStore) GetNormalizedEmail(u *domain.User) string { return u.NormalizedEmail }

func (s *UserStore) SetNormalizedEmail(ctx context.Context, u *domain.User, normalizedEmail string) error {
	u.NormalizedEmail = normalizedEmail
	return s.save(ctx, u)
}

// ---- role contract ----

func (s *UserStore) AddToRole(ctx context.Context, u *domain.User, roleName string) error {
	if roleName == "" {
		return domain.ErrEmptyRoleName
	}
	roles := domain.SplitRoles(u.RolesStr)
	if !slices.Contains(roles, roleName) {
		roles = append(roles, roleName)
	}
	u.RolesStr = domain.JoinRoles(roles)
	return s.save(ctx, u)
}

// RemoveFromRole re-persists the list even when roleName was not present.
// An empty roleName is ignored.
func (s *UserStore) RemoveFromRole(ctx context.Context, u *domain.User, roleName string) error {
	if roleName == "" {
		return nil
	}
	roles := slices.DeleteFunc(domain.SplitRoles(u.RolesStr), func(r string) bool { return r == roleName })
	u.RolesStr = domain.JoinRoles(roles)
	return s.save(ctx, u)
}

func (s *UserStore) GetRoles(u *domain.User) []string { return domain.SplitRoles(u.RolesStr) }

func (s *UserStore) IsInRole(u *domain.User, roleName string) bool {
	return s.hasRole(u.RolesStr, roleName)
}

// GetUsersInRole scans the whole partition; cost grows with the user count.
func (s *UserStore) GetUsersInRole(ctx context.Context, roleName string) ([]*domain.User, error) {
	out := []*domain.User{}
	err := tablestorage.ScanAs(ctx, s.table, tablestorage.Filter{"PartitionKey": s.partitionKey}, func(u *domain.User) bool {
		if s.hasRole(u.RolesStr, roleName) {
			out = append(out, u)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserStore) hasRole(rolesStr, roleName string) bool {
	if s.roleMatch == RoleMatchSubstring {
		return rolesStr != "" && strings.Contains(rolesStr, roleName)
	}
	return roleName != "" && slices.Contains(domain.SplitRoles(rolesStr), roleName)
}

// ---- queryable contract ----

// Users returns one page of the partition. Pass the returned Next back as
// Continuation to fetch the following page.
func (s *UserStore) Users(ctx context.Context, req domain.PageRequest) (domain.UserPage, error) {
	users, next, err := tablestorage.ListAs[domain.User](ctx, s.table, tablestorage.Query{
		Filter:       tablestorage.Filter{"PartitionKey": s.partitionKey},
		Top:          req.Size,
		Continuation: req.Continuation,
	})
	if err != nil {
		return domain.UserPage{}, err
	}
	return domain.UserPage{Users: users, Next: next}, nil
}

// AllUsers drains every page of the partition.
func (s *UserStore) AllUsers(ctx context.Context) ([]*domain.User, error) {
	out := []*domain.User{}
	err := tablestorage.ScanAs(ctx, s.table, tablestorage.Filter{"PartitionKey": s.partitionKey}, func(u *domain.User) bool {
		out = append(out, u)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
