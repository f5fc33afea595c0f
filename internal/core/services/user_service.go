package services

import (
	"context"
	"errors"
	"strings"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/pagination"
	"facture-workflow/internal/pkg/password"
	"facture-workflow/internal/pkg/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// User service errors
var (
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrOldPasswordWrong    = errors.New("current password is incorrect")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrCannotDeleteSelf    = errors.New("cannot delete your own account")
	ErrCannotChangeOwnRole = errors.New("cannot change your own role")
	ErrAdminNotManageable  = errors.New("administrator accounts cannot be managed here")
	ErrNotReferenceRole    = errors.New("role has no reference list")
)

// UserService handles user management business logic
type UserService struct {
	userRepo    repositories.UserRepository
	invoiceRepo repositories.InvoiceRepository
	traceRepo   repositories.TraceRepository
	cache       *cache.Cache
	log         *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	invoiceRepo repositories.InvoiceRepository,
	traceRepo repositories.TraceRepository,
	c *cache.Cache,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		invoiceRepo: invoiceRepo,
		traceRepo:   traceRepo,
		cache:       c,
		log:         logger.Named("users"),
	}
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page   int
	Limit  int
	Search string
	Role   string
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users []*models.UserResponse `json:"users"`
	Meta  *pagination.Meta       `json:"meta"`
}

// CreateUserInput represents create user input (for admin)
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Nom      string `json:"nom" validate:"required,max=100"`
	Prenom   string `json:"prenom" validate:"max=100"`
	Role     string `json:"role" validate:"required,role"`
}

// UpdateUserByAdminInput represents update user input (for admin)
type UpdateUserByAdminInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=191"`
	Nom      *string `json:"nom" validate:"omitempty,max=100"`
	Prenom   *string `json:"prenom" validate:"omitempty,max=100"`
	Role     *string `json:"role" validate:"omitempty,role"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UserStats are the per-user workflow counters
type UserStats struct {
	FacturesCreees             int64 `json:"factures_creees"`
	FacturesValideesV1         int64 `json:"factures_validees_v1"`
	FacturesValideesV2         int64 `json:"factures_validees_v2"`
	FacturesTraiteesTresorerie int64 `json:"factures_traitees_tresorerie"`
}

// ListUsers lists non-admin users with pagination
func (s *UserService) ListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	params := pagination.New(input.Page, input.Limit)

	filter := repositories.UserFilter{
		Role:         input.Role,
		ExcludeAdmin: true,
		Search:       input.Search,
	}
	users, total, err := s.userRepo.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.UserResponse, len(users))
	for i, user := range users {
		out[i] = user.ToResponse()
	}

	return &ListUsersOutput{
		Users: out,
		Meta:  pagination.GetMeta(params, total),
	}, nil
}

// GetUserByID gets a manageable user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.manageable(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// CreateUser creates a non-admin user
func (s *UserService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.UserResponse, error) {
	if err := validator.Struct(input); err != nil {
		return nil, err
	}
	if domain.Role(input.Role) == domain.RoleAdmin {
		return nil, ErrAdminNotManageable
	}

	email := normaliseEmail(input.Email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Password: hashed,
		Nom:      strings.TrimSpace(input.Nom),
		Prenom:   strings.TrimSpace(input.Prenom),
		Role:     input.Role,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	s.log.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return user.ToResponse(), nil
}

// UpdateUserByAdmin updates a user by admin
func (s *UserService) UpdateUserByAdmin(ctx context.Context, id uint, adminID uint, input *UpdateUserByAdminInput) (*models.UserResponse, error) {
	if id == adminID && input.Role != nil {
		return nil, ErrCannotChangeOwnRole
	}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.manageable(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := normaliseEmail(*input.Email)
		if email != strings.ToLower(user.Email) {
			exists, err := s.userRepo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrEmailAlreadyExists
			}
		}
		user.Email = email
	}
	if input.Nom != nil {
		user.Nom = strings.TrimSpace(*input.Nom)
	}
	if input.Prenom != nil {
		user.Prenom = strings.TrimSpace(*input.Prenom)
	}
	if input.Role != nil {
		if domain.Role(*input.Role) == domain.RoleAdmin {
			return nil, ErrAdminNotManageable
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		hashed, err := password.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("user updated", zap.Uint("user_id", user.ID), zap.Uint("by", adminID))
	return user.ToResponse(), nil
}

// DeactivateUser disables login for a user without deleting it
func (s *UserService) DeactivateUser(ctx context.Context, id uint, adminID uint) (*models.UserResponse, error) {
	if id == adminID {
		return nil, ErrCannotDeleteSelf
	}
	user, err := s.manageable(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("user deactivated", zap.Uint("user_id", id), zap.Uint("by", adminID))
	return user.ToResponse(), nil
}

// DeleteUser deletes a user (soft delete)
func (s *UserService) DeleteUser(ctx context.Context, id uint, adminID uint) error {
	if id == adminID {
		return ErrCannotDeleteSelf
	}
	if _, err := s.manageable(ctx, id); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	s.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", adminID))
	return nil
}

// ChangePassword changes user's password
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !password.Verify(input.OldPassword, user.Password) {
		return ErrOldPasswordWrong
	}
	if !password.ValidatePassword(input.NewPassword) {
		return ErrWeakPassword
	}

	hashed, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}

// ReferenceList returns the active users that may be assigned to role
func (s *UserService) ReferenceList(ctx context.Context, role domain.Role) ([]*models.UserRef, error) {
	switch role {
	case domain.RoleV1, domain.RoleV2, domain.RoleT1:
	default:
		return nil, ErrNotReferenceRole
	}

	users, err := s.userRepo.ListActiveByRole(ctx, string(role))
	if err != nil {
		return nil, err
	}

	refs := make([]*models.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, u.ToRef())
	}
	return refs, nil
}

// Stats computes the workflow counters of a user
func (s *UserService) Stats(ctx context.Context, userID uint) (*UserStats, error) {
	stats := &UserStats{}

	var err error
	if stats.FacturesCreees, err = s.invoiceRepo.Count(ctx, repositories.InvoiceFilter{CreatorID: &userID}); err != nil {
		return nil, err
	}
	if stats.FacturesValideesV1, err = s.traceRepo.CountByUser(ctx, userID, string(domain.ActionApproveV1)); err != nil {
		return nil, err
	}
	if stats.FacturesValideesV2, err = s.traceRepo.CountByUser(ctx, userID, string(domain.ActionApproveV2)); err != nil {
		return nil, err
	}
	if stats.FacturesTraiteesTresorerie, err = s.traceRepo.CountByUser(ctx, userID, string(domain.ActionPay)); err != nil {
		return nil, err
	}
	return stats, nil
}

// manageable loads a user an admin may act on
func (s *UserService) manageable(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if domain.Role(user.Role) == domain.RoleAdmin {
		return nil, ErrAdminNotManageable
	}
	return user, nil
}

// invalidate drops cached invoice payloads, which embed user names
func (s *UserService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
