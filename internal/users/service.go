package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/scentstock/scentstock/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	FindByName(ctx context.Context, name string) (Account, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, name, passwordHash, role string) (User, error)
	Delete(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// AuditPort records account changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	tokens *TokenManager
	audit  AuditPort
	cost   int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, tokens *TokenManager, audit AuditPort) *Service {
	return &Service{repo: repo, tokens: tokens, audit: audit, cost: bcrypt.DefaultCost}
}

// Authenticate validates name/password credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, name, password string) (LoginResult, error) {
	account, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(account.User)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{User: account.User, Token: token, ExpiresAt: expiresAt}, nil
}

// ListUsers returns all users ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// CreateUser adds an account. Names are unique case-insensitively.
func (s *Service) CreateUser(ctx context.Context, input CreateInput) (User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Password == "" {
		return User{}, fmt.Errorf("%w: name and password required", shared.ErrInvalidArgument)
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case "":
		role = RoleUser
	case RoleUser, RoleAdmin:
	default:
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidArgument, input.Role)
	}
	hash, err := s.hash(input.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, name, hash, role)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "user.create", user.ID, map[string]any{"name": user.Name, "role": user.Role})
	return user, nil
}

// DeleteUser removes an account. Admin accounts cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == RoleAdmin {
		return fmt.Errorf("%w: cannot delete admin user", shared.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "user.delete", id, map[string]any{"name": user.Name})
	return nil
}

// ChangePassword replaces an account's password.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password required", shared.ErrInvalidArgument)
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.recordAudit(ctx, "user.password", id, nil)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", shared.ErrInvalidArgument)
		}
		return "", err
	}
	return string(hashed), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "user", EntityID: fmt.Sprint(id), Meta: meta})
}
