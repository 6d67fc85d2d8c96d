package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"inventory/internal/config"
	"inventory/internal/models"
	"inventory/internal/repositories"
	"inventory/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

func newAuthService(repo repositories.UserRepository, opts ...services.AuthOption) *services.AuthService {
	cfg := config.AuthConfig{JWTSecret: testJWTSecret, TokenTTL: 72 * time.Hour}
	opts = append([]services.AuthOption{services.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return services.NewAuthService(repo, cfg, zap.NewNop(), opts...)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	var stored *models.User
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.User)
			stored.ID = "user-1"
		}).
		Return(nil).Once()

	session, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: " Ada@X.com ", Password: "secret1"})
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)

	assert.Equal(t, "user-1", session.ID)
	assert.Equal(t, "ada@x.com", session.Email)
	assert.Equal(t, models.DefaultPhoto, session.Photo)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), session.ExpiresAt, time.Minute)

	assert.NotEqual(t, "secret1", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret1")))

	claims, err := authService.ValidateToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		input services.RegisterInput
	}{
		{"missing name", services.RegisterInput{Email: "a@x.com", Password: "secret1"}},
		{"missing email", services.RegisterInput{Name: "A", Password: "secret1"}},
		{"missing password", services.RegisterInput{Name: "A", Email: "a@x.com"}},
		{"short password", services.RegisterInput{Name: "A", Email: "a@x.com", Password: "12345"}},
		{"password over 72 bytes", services.RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("é", 40)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			_, err := newAuthService(mockRepo).Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, services.ErrValidation)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthService_RegisterConflict(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	// Email already registered
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(&models.User{ID: "1"}, nil).Once()
	_, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, "Email already in use", err.Error())

	// Unique index hit by a concurrent registration
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("insert: %w", repositories.ErrDuplicate)).Once()
	_, err = authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, services.ErrConflict)

	// Storage failure is not a conflict
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(nil, errors.New("connection reset")).Once()
	_, err = authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrConflict)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	user := &models.User{ID: "user-123", Name: "Ada", Email: "ada@x.com", Password: hashed(t, "secret1")}

	// Successful login
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(user, nil).Once()
	session, err := authService.Login(ctx, "ADA@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "user-123", session.ID)
	assert.NotEmpty(t, session.Token)

	parsed, err := jwt.ParseWithClaims(session.Token, &services.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-123", parsed.Claims.(*services.Claims).UserID)

	// Wrong password
	mockRepo.On("GetByEmail", mock.Anything, "ada@x.com").Return(user, nil).Once()
	session, err = authService.Login(ctx, "ada@x.com", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.Nil(t, session)

	// Unknown email
	mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Email not found")

	// Missing fields
	_, err = authService.Login(ctx, "", "secret1")
	assert.ErrorIs(t, err, services.ErrValidation)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService(new(MockUserRepository))

	validToken, _, err := authService.GenerateToken("user-123")
	require.NoError(t, err)

	claims, err := authService.ValidateToken(ctx, validToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)

	_, err = authService.ValidateToken(ctx, "invalid.token.string")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Signed with another secret
	other := services.NewAuthService(new(MockUserRepository), config.AuthConfig{JWTSecret: "other", TokenTTL: time.Hour}, zap.NewNop())
	foreign, _, err := other.GenerateToken("user-123")
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, foreign)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Expired
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, services.Claims{
		UserID:         "user-123",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	})
	expiredString, err := expired.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, expiredString)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Unsigned
	none := jwt.NewWithClaims(jwt.SigningMethodNone, services.Claims{UserID: "user-123"})
	noneString, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, noneString)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestAuthService_LoginStatus(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService(new(MockUserRepository))

	token, _, err := authService.GenerateToken("user-123")
	require.NoError(t, err)

	assert.False(t, authService.LoginStatus(ctx, ""))
	assert.False(t, authService.LoginStatus(ctx, "garbage"))
	assert.True(t, authService.LoginStatus(ctx, token))
}

func TestAuthService_LogoutWithDenylist(t *testing.T) {
	ctx := context.Background()
	denylist := new(MockDenylist)
	authService := newAuthService(new(MockUserRepository), services.WithDenylist(denylist))

	token, _, err := authService.GenerateToken("user-123")
	require.NoError(t, err)

	denylist.On("Revoke", mock.Anything, token, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 71*time.Hour && ttl <= 72*time.Hour
	})).Return(nil).Once()
	require.NoError(t, authService.Logout(ctx, token))

	denylist.On("IsRevoked", mock.Anything, token).Return(true, nil).Once()
	_, err = authService.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Invalid tokens are ignored
	require.NoError(t, authService.Logout(ctx, "garbage"))
	require.NoError(t, authService.Logout(ctx, ""))

	denylist.AssertExpectations(t)
}

func TestAuthService_LogoutWithoutDenylist(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService(new(MockUserRepository))

	token, _, err := authService.GenerateToken("user-123")
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx, token))
	// Stateless tokens stay valid until expiry
	_, err = authService.ValidateToken(ctx, token)
	assert.NoError(t, err)
}

func TestAuthService_GetUserData(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByID", mock.Anything, "user-1").
		Return(&models.User{ID: "user-1", Name: "Ada", Email: "ada@x.com", Password: "hash", Photo: "p", Bio: "b"}, nil).Once()
	profile, err := authService.GetUserData(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.Profile{ID: "user-1", Name: "Ada", Email: "ada@x.com", Photo: "p", Bio: "b"}, *profile)

	mockRepo.On("GetByID", mock.Anything, "gone").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.GetUserData(ctx, "gone")
	assert.ErrorIs(t, err, services.ErrNotFound)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryUserRepository()
	authService := newAuthService(repo)

	session, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
	require.NoError(t, err)

	profile, err := authService.UpdateProfile(ctx, session.ID, services.ProfileUpdate{Bio: "mathematician"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, models.DefaultPhoto, profile.Photo)
	assert.Equal(t, "mathematician", profile.Bio)
	assert.Equal(t, "ada@x.com", profile.Email)

	profile, err = authService.UpdateProfile(ctx, session.ID, services.ProfileUpdate{Name: "Ada Lovelace", Photo: "https://img/ada.png"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.Name)
	assert.Equal(t, "https://img/ada.png", profile.Photo)
	assert.Equal(t, "mathematician", profile.Bio)

	_, err = authService.UpdateProfile(ctx, "missing", services.ProfileUpdate{Name: "x"})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAuthService_UpdatePasswordRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryUserRepository()
	authService := newAuthService(repo)

	session, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
	require.NoError(t, err)

	err = authService.UpdatePassword(ctx, session.ID, "wrong-old", "newsecret")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	err = authService.UpdatePassword(ctx, session.ID, "", "newsecret")
	assert.ErrorIs(t, err, services.ErrValidation)

	err = authService.UpdatePassword(ctx, session.ID, "secret1", "short")
	assert.ErrorIs(t, err, services.ErrValidation)

	err = authService.UpdatePassword(ctx, "missing", "secret1", "newsecret")
	assert.ErrorIs(t, err, services.ErrNotFound)

	require.NoError(t, authService.UpdatePassword(ctx, session.ID, "secret1", "newsecret"))

	stored, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, strings.Contains(stored.Password, "newsecret"))

	_, err = authService.Login(ctx, "ada@x.com", "newsecret")
	assert.NoError(t, err)

	_, err = authService.Login(ctx, "ada@x.com", "secret1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuthService_PasswordByteLimit(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryUserRepository()
	authService := newAuthService(repo)

	// 40 runes but 80 bytes
	long := strings.Repeat("é", 40)
	_, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: long})
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Equal(t, "Password must not exceed 72 bytes", err.Error())

	exact := strings.Repeat("é", 36)
	session, err := authService.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@x.com", Password: exact})
	require.NoError(t, err)

	err = authService.UpdatePassword(ctx, session.ID, exact, long)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = authService.Login(ctx, "ada@x.com", exact)
	assert.NoError(t, err)
}
