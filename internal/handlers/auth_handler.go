package handlers

import (
	"time"

	"inventory/internal/config"
	"inventory/internal/middleware"
	"inventory/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for accounts and sessions.
type AuthHandler struct {
	authService *services.AuthService
	cookies     config.AuthConfig
	validate    *validator.Validate
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. cookies supplies the session cookie flags.
func NewAuthHandler(authService *services.AuthService, cookies config.AuthConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		validate:    newValidator(),
		log:         log.Named("auth_handler"),
	}
}

// RegisterRoutes registers the account routes. protected gates the routes
// that need a session.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, protected fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/register", h.HandleRegister)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Get("/logout", h.HandleLogout)
	userRoutes.Get("/loggedinstatus", h.HandleLoginStatus)
	userRoutes.Get("/userdata", protected, h.HandleGetUserData)
	userRoutes.Patch("/updateinfo", protected, h.HandleUpdateInfo)
	userRoutes.Patch("/updatepassword", protected, h.HandleUpdatePassword)
}

// RegisterRequest represents the request body for registration. Presence is
// checked by the service; the tags only reject malformed values.
type RegisterRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateInfoRequest represents the request body for a profile change.
// An email, if sent, is ignored.
type UpdateInfoRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Photo string `json:"photo" validate:"omitempty,url,max=500"`
	Bio   string `json:"bio" validate:"max=250"`
}

// UpdatePasswordRequest represents the request body for a password change.
type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	Password    string `json:"password"`
}

// HandleRegister handles new user registration and opens a session.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(err)
	}

	session, err := h.authService.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	c.Cookie(h.sessionCookie(session.Token, session.ExpiresAt))
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleLogin checks the credentials and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(h.sessionCookie(session.Token, session.ExpiresAt))
	return c.JSON(session)
}

// HandleLogout overwrites the session cookie with an expired one.
// Revocation is best effort: the cookie is always cleared.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(h.sessionCookie("", time.Unix(0, 0)))

	if err := h.authService.Logout(c.UserContext(), middleware.TokenFromRequest(c)); err != nil {
		h.log.Warn("session revocation failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{"message": "Successfully logged out"})
}

// HandleGetUserData returns the profile of the session owner.
func (h *AuthHandler) HandleGetUserData(c *fiber.Ctx) error {
	profile, err := h.authService.GetUserData(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// HandleLoginStatus answers with a bare JSON boolean.
func (h *AuthHandler) HandleLoginStatus(c *fiber.Ctx) error {
	return c.JSON(h.authService.LoginStatus(c.UserContext(), middleware.TokenFromRequest(c)))
}

// HandleUpdateInfo changes name, photo and bio of the session owner.
func (h *AuthHandler) HandleUpdateInfo(c *fiber.Ctx) error {
	var req UpdateInfoRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(err)
	}

	profile, err := h.authService.UpdateProfile(c.UserContext(), middleware.UserID(c), services.ProfileUpdate{
		Name:  req.Name,
		Photo: req.Photo,
		Bio:   req.Bio,
	})
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// HandleUpdatePassword replaces the password of the session owner.
func (h *AuthHandler) HandleUpdatePassword(c *fiber.Ctx) error {
	var req UpdatePasswordRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(err)
	}

	if err := h.authService.UpdatePassword(c.UserContext(), middleware.UserID(c), req.OldPassword, req.Password); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).SendString("Password changed successfully")
}

func (h *AuthHandler) parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		h.log.Debug("invalid request body", zap.String("path", c.Path()), zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

func (h *AuthHandler) sessionCookie(token string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookies.CookieSecure,
		SameSite: h.cookies.CookieSameSite,
	}
}
