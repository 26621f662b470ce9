package services

import (
	"fmt"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

// UserService handles business logic for profile management.
type UserService struct {
	repo repositories.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

// GetByID retrieves a single user by their ID.
func (s *UserService) GetByID(id string) (*models.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return user, nil
}

// UpdateProfile changes a user's username and/or email. Empty fields
// are left untouched; the password is never updated through this path.
func (s *UserService) UpdateProfile(id, username, email string) (*models.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}

	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// Delete soft-deletes a user.
func (s *UserService) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}
