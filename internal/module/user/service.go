package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/simp-lee/userlist/internal/domain"
)

// userService implements domain.UserService.
type userService struct {
	repo     domain.UserRepository
	validate *validator.Validate
}

// NewUserService creates a new UserService with the given repository.
func NewUserService(repo domain.UserRepository) domain.UserService {
	return &userService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateUser validates input, assigns a new ID and persists the user.
func (s *userService) CreateUser(ctx context.Context, fields domain.UserFields) (*domain.User, error) {
	fields = normalizeFields(fields)
	if err := validateFields(s.validate, fields); err != nil {
		return nil, err
	}

	user := &domain.User{
		BaseModel:  domain.BaseModel{ID: domain.ID(uuid.NewString())},
		UserFields: fields,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *userService) GetUser(ctx context.Context, id domain.ID) (*domain.User, error) {
	if id == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "id is required", nil)
	}
	return s.repo.GetByID(ctx, id)
}

// ListUsers returns one page of users and the filtered total.
func (s *userService) ListUsers(ctx context.Context, q domain.ListQuery) (*domain.ListResult, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown status %q", q.Status), nil)
	}
	return s.repo.List(ctx, q)
}

// UpdateUser replaces every field of an existing user.
func (s *userService) UpdateUser(ctx context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error) {
	if id == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "id is required", nil)
	}
	fields = normalizeFields(fields)
	if err := validateFields(s.validate, fields); err != nil {
		return nil, err
	}

	user := &domain.User{
		BaseModel:  domain.BaseModel{ID: id},
		UserFields: fields,
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user by ID.
func (s *userService) DeleteUser(ctx context.Context, id domain.ID) error {
	if id == "" {
		return domain.NewAppError(domain.CodeValidation, "id is required", nil)
	}
	return s.repo.Delete(ctx, id)
}

func normalizeFields(f domain.UserFields) domain.UserFields {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	f.Name = strings.TrimSpace(f.Name)
	f.Lastname = strings.TrimSpace(f.Lastname)
	f.Status = domain.Status(strings.TrimSpace(string(f.Status)))
	return f
}

// validateFields runs the struct rules on f and reports the first failing
// field as a validation error.
func validateFields(v *validator.Validate, f domain.UserFields) error {
	err := v.Struct(f)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		msg := fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return domain.NewAppError(domain.CodeValidation, msg, err)
	}
	return domain.NewAppError(domain.CodeValidation, "invalid user", err)
}
