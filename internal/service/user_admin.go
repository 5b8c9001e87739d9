package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	apperrors "github.com/target/inventory-console/internal/errors"
	"github.com/target/inventory-console/internal/ports"
)

// MinPasswordLength is the shortest password accepted for new users and resets.
const MinPasswordLength = 8

// UserAdminServiceOptions groups dependencies for UserAdminService.
type UserAdminServiceOptions struct {
	API    ports.UserAPI
	Logger *slog.Logger
}

// UserAdminService validates user administration requests before sending them to the backend.
type UserAdminService struct {
	api    ports.UserAPI
	logger *slog.Logger
}

// NewUserAdminService constructs a UserAdminService.
func NewUserAdminService(opts UserAdminServiceOptions) *UserAdminService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserAdminService{api: opts.API, logger: logger.With("component", "user_admin")}
}

// List returns every user.
func (s *UserAdminService) List(ctx context.Context) ([]domainauth.UserListItem, error) {
	return s.api.ListUsers(ctx)
}

// Get returns one user.
func (s *UserAdminService) Get(ctx context.Context, id string) (*domainauth.UserListItem, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	return s.api.GetUser(ctx, id)
}

// Create registers a new user. The caller's own session is left untouched.
func (s *UserAdminService) Create(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.Identity, error) {
	if err := validateNewUser(&req); err != nil {
		return nil, err
	}
	resp, err := s.api.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "email", req.Email, "role", req.Role)
	user := resp.User.Normalized()
	return &user, nil
}

// Update replaces a user's profile fields.
func (s *UserAdminService) Update(
	ctx context.Context,
	id string,
	req domainauth.UpdateUserRequest,
) (*domainauth.UserListItem, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	return s.api.UpdateUser(ctx, id, req)
}

// Delete removes a user.
func (s *UserAdminService) Delete(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}

// ChangeRole assigns role (case-insensitive name) to a user.
func (s *UserAdminService) ChangeRole(ctx context.Context, id, role string) (*domainauth.MessageResponse, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return nil, apperrors.ValidationField("role", err.Error())
	}
	resp, err := s.api.ChangeUserRole(ctx, id, domainauth.ChangeRoleRequest{Role: parsed})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user role changed", "user_id", id, "role", parsed)
	return resp, nil
}

// ResetPassword sets a new password for a user.
func (s *UserAdminService) ResetPassword(ctx context.Context, id, password string) (*domainauth.MessageResponse, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	return s.api.ResetUserPassword(ctx, id, domainauth.ResetPasswordRequest{NewPassword: password})
}

// ValidatePassword enforces the password policy for administrator-set passwords.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.ValidationField("password", "password must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return apperrors.ValidationField("password",
			"password must contain upper case, lower case, a digit and a special character")
	}
	return nil
}

func validateNewUser(req *domainauth.RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if req.FirstName == "" {
		return apperrors.ValidationField("firstName", "first name is required")
	}
	if req.LastName == "" {
		return apperrors.ValidationField("lastName", "last name is required")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return err
	}
	if req.ConfirmPassword != req.Password {
		return apperrors.ValidationField("confirmPassword", "passwords do not match")
	}

	if req.Role == "" {
		req.Role = domainauth.RoleViewer
		return nil
	}
	role, err := domainauth.ParseRole(string(req.Role))
	if err != nil {
		return apperrors.ValidationField("role", err.Error())
	}
	req.Role = role
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.ValidationField("email", "email is not valid")
	}
	return nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperrors.ValidationField("id", "user id is required")
	}
	return id, nil
}
