package users

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/dawnmoon/charon/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateProfile(ctx context.Context, id int64, realName, email string) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	FindPasswordHash(ctx context.Context, id int64) (string, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// SessionEvictor terminates a user's active session. Implemented by the
// auth service.
type SessionEvictor interface {
	ForceLogout(ctx context.Context, userID int64) error
}

// Service handles user account management.
type Service struct {
	repo       RepositoryPort
	evictor    SessionEvictor
	bcryptCost int
	logger     *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, evictor SessionEvictor, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, evictor: evictor, bcryptCost: bcryptCost, logger: logger}
}

// Page is a page of users with the total count.
type Page struct {
	Users []User
	Total int64
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return Page{}, err
	}
	return Page{Users: list, Total: total}, nil
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateProfile updates profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id int64, realName, email string) (User, error) {
	return s.repo.UpdateProfile(ctx, id, realName, email)
}

// SetActive enables or disables an account. Disabling also terminates the
// user's active session so the account loses access immediately instead
// of at next login.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active {
		if err := s.evictor.ForceLogout(ctx, id); err != nil {
			s.logger.Warn("evict disabled user", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	hash, err := s.repo.FindPasswordHash(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)); err != nil {
		return shared.ErrInvalidCredentials
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(newHash))
}

// DeleteUser removes the account and terminates any active session.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.evictor.ForceLogout(ctx, id); err != nil {
		s.logger.Warn("evict deleted user", slog.Int64("user_id", id), slog.Any("error", err))
	}
	return nil
}
