package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/secure/precis"

	"github.com/aurora-portal/aurora/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u User, passwordHash string) (*User, error)
	Rename(ctx context.Context, id int64, username string) error
	Delete(ctx context.Context, id int64) error
	SingleUserGroupID(ctx context.Context, userID int64) (int64, error)
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Username     string
	Password     string
	FirstName    string
	LastName     string
	ContactEmail string
}

// Service handles user lifecycle logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// NormalizeUsername applies the UsernameCaseMapped profile so that
// usernames with confusable spellings collapse to one canonical form.
func NormalizeUsername(username string) (string, error) {
	normalized, err := precis.UsernameCaseMapped.String(username)
	if err != nil {
		return "", fmt.Errorf("users: invalid username %q: %w", username, err)
	}
	return normalized, nil
}

// List returns one page of users with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	users, err := s.repo.List(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, p, nil
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Create normalizes the username, hashes the password and persists the
// account together with its single-user group.
func (s *Service) Create(ctx context.Context, input NewUser) (*User, error) {
	username, err := NormalizeUsername(input.Username)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, User{
		Username:     username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		ContactEmail: input.ContactEmail,
	}, string(hash))
}

// Rename changes the username; the single-user group follows it in the
// same transaction.
func (s *Service) Rename(ctx context.Context, id int64, username string) error {
	normalized, err := NormalizeUsername(username)
	if err != nil {
		return err
	}
	return s.repo.Rename(ctx, id, normalized)
}

// Delete removes the account, its memberships and its single-user
// group.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// SingleUserGroupID resolves the user's single-user group.
func (s *Service) SingleUserGroupID(ctx context.Context, userID int64) (int64, error) {
	return s.repo.SingleUserGroupID(ctx, userID)
}
