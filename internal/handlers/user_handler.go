package handlers

import (
	"errors"
	"log"

	"biblio/internal/models"
	"biblio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for profiles and password resets.
type UserHandler struct {
	users    *services.UserService
	reset    *services.PasswordResetService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *services.UserService, reset *services.PasswordResetService) *UserHandler {
	return &UserHandler{
		users:    users,
		reset:    reset,
		validate: validator.New(),
	}
}

// RegisterPublicRoutes registers the routes that work without a token.
func (h *UserHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/users/reset-password", h.HandleResetPasswordRequest)
	router.Post("/users/reset-password-confirm/:ref/:token", h.HandleResetPasswordConfirm)
}

// RegisterProtectedRoutes registers the routes that require a bearer token.
func (h *UserHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/users/info", h.HandleUserInfo)
	router.Get("/users/profile/:id", h.HandleGetProfile)
	router.Put("/users/profile/:id", h.HandleUpdateProfile)
	router.Patch("/users/profile/:id", h.HandleUpdateProfile)
	router.Delete("/users/profile/:id", h.HandleDeleteProfile)
}

// UserSelfView is the profile shape returned to regular callers.
type UserSelfView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserAdminView adds the role flags; only superusers see it.
type UserAdminView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func newSelfView(user *models.User) UserSelfView {
	return UserSelfView{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
}

func newAdminView(user *models.User) UserAdminView {
	return UserAdminView{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

// userView picks the admin or self view based on the caller's
// superuser flag.
func userView(c *fiber.Ctx, user *models.User) interface{} {
	if isSuperuser, _ := c.Locals("is_superuser").(bool); isSuperuser {
		return newAdminView(user)
	}
	return newSelfView(user)
}

// canManageProfile reports whether the caller owns the profile or
// carries an admin flag.
func canManageProfile(c *fiber.Ctx, profileID string) bool {
	callerID, _ := c.Locals("user_id").(string)
	isStaff, _ := c.Locals("is_staff").(bool)
	isSuperuser, _ := c.Locals("is_superuser").(bool)
	return callerID == profileID || isStaff || isSuperuser
}

// HandleUserInfo returns the caller's own profile.
func (h *UserHandler) HandleUserInfo(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	user, err := h.users.GetByID(callerID)
	if err != nil {
		log.Printf("Error getting user %s: %v", callerID, err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(userView(c, user))
}

// HandleGetProfile returns a profile to its owner or an admin.
func (h *UserHandler) HandleGetProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if !canManageProfile(c, id) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Not allowed to access this profile",
		})
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(userView(c, user))
}

// ProfileUpdateRequest carries the mutable profile fields. Both are
// optional; PATCH and PUT share the merge semantics.
type ProfileUpdateRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// HandleUpdateProfile changes username and/or email.
func (h *UserHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if !canManageProfile(c, id) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Not allowed to access this profile",
		})
	}

	var req ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing profile update body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	user, err := h.users.UpdateProfile(id, req.Username, req.Email)
	if err != nil {
		log.Printf("Error updating profile %s: %v", id, err)
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update profile",
			"error":   err.Error(),
		})
	}
	return c.JSON(userView(c, user))
}

// HandleDeleteProfile soft-deletes a profile.
func (h *UserHandler) HandleDeleteProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if !canManageProfile(c, id) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Not allowed to access this profile",
		})
	}

	if err := h.users.Delete(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(fiber.Map{
		"message": "User deleted",
	})
}

// ResetPasswordRequest represents the request body for a reset request.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleResetPasswordRequest triggers the token workflow issue step
// and mails the reset link.
func (h *UserHandler) HandleResetPasswordRequest(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing reset request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	if _, err := h.reset.RequestReset(req.Email); err != nil {
		log.Printf("Error requesting password reset for %s: %v", req.Email, err)
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User with this email does not exist",
			})
		}
		if errors.Is(err, services.ErrMailDelivery) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Could not send reset email",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not process reset request",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Password reset link sent",
	})
}

// ResetPasswordConfirmRequest represents the request body for the
// confirm step.
type ResetPasswordConfirmRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// HandleResetPasswordConfirm verifies the link and replaces the
// password. Bad references and bad tokens share one message so the
// endpoint cannot be used to enumerate accounts.
func (h *UserHandler) HandleResetPasswordConfirm(c *fiber.Ctx) error {
	var req ResetPasswordConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing reset confirm body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	err := h.reset.ConfirmReset(c.Params("ref"), c.Params("token"), req.NewPassword)
	if err != nil {
		log.Printf("Error confirming password reset: %v", err)
		if errors.Is(err, services.ErrInvalidReference) || errors.Is(err, services.ErrInvalidOrExpiredToken) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid or expired reset link",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not reset password",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Password has been reset",
	})
}
