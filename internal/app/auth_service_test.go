package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"webinfinitygen/internal/apperr"
	"webinfinitygen/internal/pkg/jwtutil"
	"webinfinitygen/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	svc := NewAuthService(repository.NewAccountRepository(openTestDB(t)), "test-secret", time.Hour)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Username: " alice ", Email: "Alice@Example.COM", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.Account.Username)
	assert.Equal(t, "alice@example.com", reg.Account.Email)
	assert.NotEqual(t, "secret1", reg.Account.PasswordHash)
	assert.Nil(t, reg.Account.LastLogin)

	login, err := svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, login.Account.LastLogin)

	claims, err := jwtutil.ParseToken("test-secret", login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Account.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	stored, err := svc.GetAccountByID(ctx, reg.Account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Username: "a", Email: "a@example.com", Password: "secret1"},
		{Username: "al", Email: "not-an-email", Password: "secret1"},
		{Username: "al", Email: "al@example.com", Password: "12345"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument, "%+v", in)
	}
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "other@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUsernameExists)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Username: "bobby", Email: "BOB@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Username: "carol", Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "carol@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Email: "", Password: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestAuthService_ListAccounts(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := svc.Register(ctx, RegisterInput{Username: fmt.Sprintf("user%02d", i), Email: fmt.Sprintf("user%02d@example.com", i), Password: "secret1"})
		require.NoError(t, err)
	}
	_, err := svc.Register(ctx, RegisterInput{Username: "zed", Email: "zed@other.org", Password: "secret1"})
	require.NoError(t, err)

	page, err := svc.ListAccounts(ctx, ListAccountsInput{})
	require.NoError(t, err)
	assert.Len(t, page.Items, defaultUserPage)
	assert.Equal(t, int64(13), page.Pagination.TotalItems)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	found, err := svc.ListAccounts(ctx, ListAccountsInput{Search: "other.org"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "zed", found.Items[0].Username)
}

func TestAuthService_GetAccountByID(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.GetAccountByID(context.Background(), 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = svc.GetAccountByID(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
