package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/config"
	"github.com/mind-engage/examhall/internal/rbac"
)

const bcryptCost = 12

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Register creates a candidate or instructor account. Admin accounts are
// never self-registered; they come from the bootstrap seed or a
// role-change by an existing admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	role := rbac.RoleCandidate
	if in.Role != "" {
		parsed, ok := rbac.ParseRole(in.Role)
		if !ok || parsed == rbac.RoleAdmin {
			return User{}, apperr.Validation("role must be candidate or instructor")
		}
		role = parsed
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	u := User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate verifies username/password and returns the account.
// Disabled accounts cannot log in.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return User{}, apperr.Unauthorized("invalid credentials")
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return User{}, apperr.Forbidden("account is disabled")
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, opts ListOpts) ([]User, error) {
	return s.store.List(ctx, opts)
}

type UpdateInput struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
}

// Update applies only the fields present in the request.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, requester rbac.Principal, id string) error {
	if requester.ID == id {
		return apperr.Validation("cannot delete your own account")
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) ChangeRole(ctx context.Context, requester rbac.Principal, id string, role rbac.Role) (User, error) {
	if !role.Valid() {
		return User{}, apperr.Validation("invalid role")
	}
	if requester.ID == id && role != rbac.RoleAdmin {
		return User{}, apperr.Validation("cannot demote your own account")
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.Role = role
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) SetActive(ctx context.Context, requester rbac.Principal, id string, active bool) (User, error) {
	if requester.ID == id && !active {
		return User{}, apperr.Validation("cannot disable your own account")
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.IsActive = active
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// EnsureAdmin seeds the bootstrap admin account when no admin exists yet.
// A no-op unless ADMIN_PASSWORD is configured.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.Config) error {
	if cfg.AdminPassword == "" {
		return nil
	}
	n, err := s.store.CountByRole(ctx, rbac.RoleAdmin)
	if err != nil || n > 0 {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcryptCost)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.store.Create(ctx, User{
		ID:           uuid.NewString(),
		Username:     cfg.AdminUser,
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		Role:         rbac.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
