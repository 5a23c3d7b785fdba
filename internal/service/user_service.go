package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"go-table-identity/internal/core/auth"
	"go-table-identity/internal/domain"
	"go-table-identity/pkg/utils"
)

const RoleAdmin = "admin"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
)

// ResultError carries a failed IdentityResult through error returns.
type ResultError struct {
	Op     string
	Result domain.IdentityResult
}

func (e *ResultError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors))
	for _, ie := range e.Result.Errors {
		msgs = append(msgs, ie.Code+": "+ie.Description)
	}
	return e.Op + " failed: " + strings.Join(msgs, "; ")
}

// Store is everything the service needs from user persistence.
type Store interface {
	domain.UserPasswordStore
	domain.UserEmailStore
	domain.UserRoleStore
	domain.QueryableUserStore
}

// UserService plays the identity framework: it normalizes lookup keys,
// hashes passwords and drives the store contracts.
type UserService struct {
	users      Store
	roles      domain.RoleStore
	normalizer domain.LookupNormalizer
	jwt        *auth.JWTer
	l          *zap.Logger
}

func NewUserService(users Store, roles domain.RoleStore, n domain.LookupNormalizer, j *auth.JWTer, l *zap.Logger) *UserService {
	if n == nil {
		n = domain.LowerInvariantNormalizer{}
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &UserService{users: users, roles: roles, normalizer: n, jwt: j, l: l}
}

// View is the outward shape of a user; it never exposes the hash.
type View struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	EmailConfirmed bool     `json:"emailConfirmed"`
	Roles          []string `json:"roles"`
}

func (s *UserService) View(u *domain.User) View {
	return View{
		ID:             s.users.GetUserID(u),
		Email:          s.users.GetEmail(u),
		EmailConfirmed: s.users.GetEmailConfirmed(u),
		Roles:          s.users.GetRoles(u),
	}
}

func (s *UserService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	normalized := s.normalizer.NormalizeEmail(email)
	existing, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Email:           email,
		NormalizedEmail: normalized,
		PasswordHash:    hash,
	}
	if res := s.users.Create(ctx, u); !res.Succeeded {
		return nil, &ResultError{Op: "create user", Result: res}
	}
	s.l.Info("user registered", zap.String("user_id", u.RowKey))
	return u, nil
}

// Login checks credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.users.FindByName(ctx, s.normalizer.NormalizeName(email))
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !s.users.HasPassword(u) || !utils.CheckPassword(password, s.users.GetPasswordHash(u)) {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := s.jwt.Issue(s.users.GetUserID(u), s.users.GetUserName(u), s.users.GetRoles(u))
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return tok, u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, size int, continuation string) (domain.UserPage, error) {
	return s.users.Users(ctx, domain.PageRequest{Size: size, Continuation: continuation})
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if res := s.users.Delete(ctx, u); !res.Succeeded {
		return &ResultError{Op: "delete user", Result: res}
	}
	s.l.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.users.HasPassword(u) && !utils.CheckPassword(current, s.users.GetPasswordHash(u)) {
		return ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.SetPasswordHash(ctx, u, hash)
}

func (s *UserService) ConfirmEmail(ctx context.Context, id string, confirmed bool) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetEmailConfirmed(ctx, u, confirmed); err != nil {
		return nil, err
	}
	return u, nil
}

// normalizeRole resolves a role through the role store the way the
// framework does before touching a user's role list.
func (s *UserService) normalizeRole(ctx context.Context, role string) (string, error) {
	r, err := s.roles.FindByName(ctx, s.normalizer.NormalizeName(role))
	if err != nil {
		return "", err
	}
	return s.roles.GetNormalizedRoleName(r), nil
}

func (s *UserService) AddRole(ctx context.Context, id, role string) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.normalizeRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.AddToRole(ctx, u, r); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) RemoveRole(ctx context.Context, id, role string) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.normalizeRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.RemoveFromRole(ctx, u, r); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) UsersInRole(ctx context.Context, role string) ([]*domain.User, error) {
	r, err := s.normalizeRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return s.users.GetUsersInRole(ctx, r)
}

// HasRole reads the user's current roles from the store. A missing user
// holds no roles.
func (s *UserService) HasRole(ctx context.Context, id, role string) (bool, error) {
	u, err := s.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r, err := s.normalizeRole(ctx, role)
	if err != nil {
		return false, err
	}
	return s.users.IsInRole(u, r), nil
}

// EnsureAdmin creates the account if needed and grants it the admin role.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, s.normalizer.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	if u == nil {
		if u, err = s.Register(ctx, email, password); err != nil {
			return nil, err
		}
	}
	if s.users.IsInRole(u, RoleAdmin) {
		return u, nil
	}
	if err := s.users.AddToRole(ctx, u, RoleAdmin); err != nil {
		return nil, err
	}
	s.l.Info("admin role granted", zap.String("user_id", u.RowKey))
	return u, nil
}
