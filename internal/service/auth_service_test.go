package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/pkg/config"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

type mockAuthUsers struct {
	byEmail map[string]models.User
	byID    map[string]models.User
	tokens  map[string]models.RefreshToken
	logins  []string
}

func (m *mockAuthUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) UpdateLastLogin(_ context.Context, id string) error {
	m.logins = append(m.logins, id)
	return nil
}

func (m *mockAuthUsers) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = map[string]models.RefreshToken{}
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthUsers) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok && !t.Revoked {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) RevokeRefreshToken(_ context.Context, token string) error {
	t, ok := m.tokens[token]
	if !ok || t.Revoked {
		return sql.ErrNoRows
	}
	t.Revoked = true
	m.tokens[token] = t
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		ID:           "user-1",
		Email:        "student@uni.edu",
		PasswordHash: string(hash),
		FullName:     "A Student",
		Role:         models.RoleStudent,
		Active:       true,
	}
	users := &mockAuthUsers{
		byEmail: map[string]models.User{user.Email: user},
		byID:    map[string]models.User{user.ID: user},
	}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, RefreshExpiration: 24 * time.Hour}
	return NewAuthService(users, cfg, zap.NewNop()), users
}

func TestAuthServiceLogin(t *testing.T) {
	svc, users := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@uni.edu", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, []string{"user-1"}, users.logins)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@uni.edu", Password: "wrong"})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginUnknownEmailSameError(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@uni.edu", Password: "whatever"})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc, users := newAuthFixture(t)
	u := users.byEmail["student@uni.edu"]
	u.Active = false
	users.byEmail[u.Email] = u

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "correct-horse"})
	require.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	svc, users := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@uni.edu", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, refreshed.RefreshToken)
	assert.True(t, users.tokens[res.RefreshToken].Revoked)

	// The consumed token cannot be replayed.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshExpired(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.tokens = map[string]models.RefreshToken{
		"stale": {UserID: "user-1", Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)},
	}

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not.a.token")
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
