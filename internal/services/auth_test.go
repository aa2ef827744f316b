package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
)

func newTestAuthService(t *testing.T, secret string) AuthService {
	t.Helper()
	as, err := NewAuthService(logger.Nop(), secret, 24*time.Hour)
	require.NoError(t, err)
	return as
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	as := newTestAuthService(t, "secret")

	res, err := as.Login(ctx, "  USER@example.com ", DemoUserPassword)
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, res.User.ID)
	assert.Equal(t, DemoUserName, res.User.Name)
	assert.NotEmpty(t, res.SessionToken)

	_, err = as.Login(ctx, DemoUserEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = as.Login(ctx, "not-an-email", "x")
	var inErr *AuthInputError
	assert.ErrorAs(t, err, &inErr)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	as := newTestAuthService(t, "secret")

	_, err := as.Register(ctx, "Ana", TakenEmail, "x")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = as.Register(ctx, "", "ana@example.com", "x")
	var inErr *AuthInputError
	assert.ErrorAs(t, err, &inErr)

	res, err := as.Register(ctx, "Ana", "ana@example.com", "x")
	require.NoError(t, err)
	assert.Contains(t, res.User.ID, "usr_")
	assert.Equal(t, "Ana", res.User.Name)
}

func TestAuthService_SessionToken(t *testing.T) {
	ctx := context.Background()
	as := newTestAuthService(t, "secret")

	res, err := as.Login(ctx, DemoUserEmail, DemoUserPassword)
	require.NoError(t, err)

	sess, err := as.Session(ctx, res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, sess.User.ID)
	assert.Equal(t, DemoUserAvatar, sess.User.Avatar)
	assert.WithinDuration(t, res.ExpiresAt, sess.Expires, time.Second)

	reqCtx, err := as.SetContextFromToken(ctx, res.SessionToken)
	require.NoError(t, err)
	rd := requestdata.GetRequestData(reqCtx)
	require.NotNil(t, rd)
	assert.Equal(t, DemoUserID, rd.User().ID)

	other := newTestAuthService(t, "other-secret")
	_, err = other.Session(ctx, res.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = as.SetContextFromToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}
