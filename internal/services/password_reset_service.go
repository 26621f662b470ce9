package services

import (
	"fmt"
	"strings"

	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/pkg/mailer"
	"biblio/pkg/resettoken"

	"golang.org/x/crypto/bcrypt"
)

// PasswordResetService implements the reset-token workflow: issue a
// derived token over mail, verify it, and confirm a password change.
// Tokens are never stored; a token dies with the password hash it was
// derived from.
type PasswordResetService struct {
	userRepo repositories.UserRepository
	tokens   *resettoken.Generator
	mail     mailer.Mailer
	baseURL  string
}

// NewPasswordResetService creates a new PasswordResetService. baseURL
// is the externally reachable address used to build reset links.
func NewPasswordResetService(userRepo repositories.UserRepository, tokens *resettoken.Generator, mail mailer.Mailer, baseURL string) *PasswordResetService {
	return &PasswordResetService{
		userRepo: userRepo,
		tokens:   tokens,
		mail:     mail,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// RequestReset issues a token for the account registered under email
// and mails the confirmation link. The reset URL is returned for
// logging. Unknown emails fail with ErrNotFound; a relay failure is
// surfaced as ErrMailDelivery rather than swallowed.
func (s *PasswordResetService) RequestReset(email string) (string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", fmt.Errorf("%w: user with email %s does not exist", ErrNotFound, email)
	}

	token := s.tokens.Make(user.ID, user.Password)
	ref := resettoken.EncodeRef(user.ID)
	resetURL := fmt.Sprintf("%s/users/reset-password-confirm/%s/%s/", s.baseURL, ref, token)

	body := fmt.Sprintf("Use the link to reset your password: %s", resetURL)
	if err := s.mail.Send(user.Email, "Password Reset Request", body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	return resetURL, nil
}

// VerifyToken resolves the reference back to a user and checks the
// token against their current state. Returns ErrInvalidReference when
// the reference does not decode or matches no account, and
// ErrInvalidOrExpiredToken when the token fails recomputation or its
// window has elapsed.
func (s *PasswordResetService) VerifyToken(ref, token string) (*models.User, error) {
	userID, err := resettoken.DecodeRef(ref)
	if err != nil {
		return nil, ErrInvalidReference
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrInvalidReference
	}

	if !s.tokens.Check(user.ID, user.Password, token) {
		return nil, ErrInvalidOrExpiredToken
	}
	return user, nil
}

// ConfirmReset verifies the token and replaces the user's password
// hash. The changed hash implicitly invalidates the token for replays;
// there is nothing to revoke.
func (s *PasswordResetService) ConfirmReset(ref, token, newPassword string) error {
	user, err := s.VerifyToken(ref, token)
	if err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}
