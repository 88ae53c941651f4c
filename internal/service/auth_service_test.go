package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *models.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           "u1",
		Email:        "manager@pawhaven.test",
		PasswordHash: string(hash),
		FullName:     "Front Desk",
		Role:         models.RoleManager,
		Active:       active,
	}
	repo := &mockUserRepo{users: map[string]*models.User{"u1": user}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "unit-test-secret",
		Expiration: time.Hour,
		Issuer:     "petcare-api",
	})
	return svc, user
}

func TestAuthLoginAndValidate(t *testing.T) {
	svc, user := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, models.RoleManager, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, user := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, user := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret-pass"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInactiveAccount))
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
