package service

import (
	"context"
	"testing"
	"time"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_TokenRoundtrip(t *testing.T) {
	svc := testAuthService(t)
	ctx := context.Background()

	token, err := svc.CreateToken(ctx, models.User{UserID: 42})
	require.NoError(t, err)
	require.NotEmpty(t, token.String())

	parsed, err := svc.ParseToken(ctx, token.String())
	require.NoError(t, err)
	assert.Equal(t, int64(42), parsed.UserID)
}

func TestAuthService_ParseToken_Garbage(t *testing.T) {
	svc := testAuthService(t)

	_, err := svc.ParseToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrTokenIsExpiredOrInvalid)
}

func TestAuthService_ParseToken_WrongIssuer(t *testing.T) {
	other := NewAuthService(config.Auth{
		TokenSignKey:  "test-sign-key",
		TokenIssuer:   "someone-else",
		TokenDuration: time.Hour,
	}, logger.Nop())

	token, err := other.CreateToken(context.Background(), models.User{UserID: 1})
	require.NoError(t, err)

	_, err = testAuthService(t).ParseToken(context.Background(), token.String())
	require.ErrorIs(t, err, ErrTokenIsExpiredOrInvalid)
}

func TestAuthService_ParseToken_WrongKey(t *testing.T) {
	other := NewAuthService(config.Auth{
		TokenSignKey:  "different-key",
		TokenIssuer:   "circlesync-test",
		TokenDuration: time.Hour,
	}, logger.Nop())

	token, err := other.CreateToken(context.Background(), models.User{UserID: 1})
	require.NoError(t, err)

	_, err = testAuthService(t).ParseToken(context.Background(), token.String())
	require.ErrorIs(t, err, ErrTokenIsExpiredOrInvalid)
}

func TestAuthService_CreateToken_MissingConfig(t *testing.T) {
	svc := NewAuthService(config.Auth{}, logger.Nop())

	_, err := svc.CreateToken(context.Background(), models.User{UserID: 1})
	require.ErrorIs(t, err, ErrTokenCreationFailed)
}
