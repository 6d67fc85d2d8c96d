package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"inventory/internal/config"
	"inventory/internal/models"
	"inventory/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Password length limits. The maximum is in bytes, the bcrypt input limit.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// TokenDenylist remembers tokens that were explicitly logged out.
type TokenDenylist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Claims is the payload of a session token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.StandardClaims
}

// Session is returned by register and login: the public profile plus the raw token.
type Session struct {
	models.Profile
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate holds optional profile changes. Empty fields keep the stored value.
type ProfileUpdate struct {
	Name  string
	Photo string
	Bio   string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	denylist   TokenDenylist
	log        *zap.Logger
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithDenylist enables server-side revocation of logged-out tokens.
func WithDenylist(d TokenDenylist) AuthOption {
	return func(s *AuthService) { s.denylist = d }
}

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// NewAuthService creates a new AuthService. The signing secret and token
// lifetime come from cfg, never from the environment.
func NewAuthService(userRepo repositories.UserRepository, cfg config.AuthConfig, log *zap.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		log:        log.Named("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenTTL returns the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Register creates an account with a hashed password and opens a session for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, newError(ErrValidation, "Please, fill in all the fields")
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, newError(ErrConflict, "Email already in use")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Photo:    models.DefaultPhoto,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, wrapError(ErrConflict, err, "Email already in use")
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.newSession(user)
}

// Login verifies the credentials and only then issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, newError(ErrValidation, "You must enter your email and password")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, wrapError(ErrInvalidCredentials, err, "Email not found. Please sign up")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("user_id", user.ID))
		return nil, newError(ErrInvalidCredentials, "Invalid email or password")
	}

	return s.newSession(user)
}

// Logout revokes token when a denylist is configured. Without one it has no
// server-side effect; clearing the cookie is the caller's job.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.denylist == nil || token == "" {
		return nil
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if err := s.denylist.Revoke(ctx, token, ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// GetUserData returns the profile of an authenticated user.
func (s *AuthService) GetUserData(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// LoginStatus reports whether token is present and valid. It never fails.
func (s *AuthService) LoginStatus(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	_, err := s.ValidateToken(ctx, token)
	return err == nil
}

// UpdateProfile changes name, photo and bio. Email is never modified.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if in.Photo != "" {
		user.Photo = in.Photo
	}
	if in.Bio != "" {
		user.Bio = in.Bio
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, wrapError(ErrNotFound, err, "User not found")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	profile := user.Profile()
	return &profile, nil
}

// UpdatePassword replaces the stored hash after checking the current password.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return newError(ErrValidation, "Please enter both, your current and new passwords")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return newError(ErrInvalidCredentials, "Old password is not correct")
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.Password = hash

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.log.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// GenerateToken signs a token for userID valid for the configured lifetime.
func (s *AuthService) GenerateToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken checks signature, expiry and revocation of token.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, wrapError(ErrUnauthorized, err, "Not authorized, please login")
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to check session: %w", err)
		}
		if revoked {
			return nil, newError(ErrUnauthorized, "Session has been logged out, please login")
		}
	}
	return claims, nil
}

func (s *AuthService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, expiresAt, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Profile:   user.Profile(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, wrapError(ErrNotFound, err, "User not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", wrapError(ErrValidation, err, fmt.Sprintf("Password must not exceed %d bytes", MaxPasswordBytes))
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPasswordLength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return newError(ErrValidation, "Password must contain at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return newError(ErrValidation, "Password must not exceed %d bytes", MaxPasswordBytes)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
