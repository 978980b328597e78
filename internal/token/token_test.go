package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	return New("test-secret", nil)
}

func TestConfirmationTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tok, err := svc.GenerateConfirmationToken(7, time.Hour)
	require.NoError(t, err)

	assert.True(t, svc.VerifyConfirmationToken(ctx, tok, 7))
}

func TestConfirmationTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tok, err := svc.GenerateConfirmationToken(7, time.Hour)
	require.NoError(t, err)

	assert.True(t, svc.VerifyConfirmationToken(ctx, tok, 7))
	assert.False(t, svc.VerifyConfirmationToken(ctx, tok, 7), "second use must fail")
}

func TestConfirmationTokenWrongUser(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tok, err := svc.GenerateConfirmationToken(7, time.Hour)
	require.NoError(t, err)

	assert.False(t, svc.VerifyConfirmationToken(ctx, tok, 8))
	// The failed attempt must not have consumed the token.
	assert.True(t, svc.VerifyConfirmationToken(ctx, tok, 7))
}

func TestVerificationFailsClosed(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	for _, tok := range []string{"", "garbage", "a.b.c", "ey.ey.ey"} {
		assert.False(t, svc.VerifyConfirmationToken(ctx, tok, 1))
		_, ok := svc.VerifyAuthToken(tok)
		assert.False(t, ok)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tok, err := svc.GenerateConfirmationToken(7, -time.Minute)
	require.NoError(t, err)

	assert.False(t, svc.VerifyConfirmationToken(ctx, tok, 7))
}

func TestTokenPurposesAreDistinct(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	reset, err := svc.GenerateResetToken(7, time.Hour)
	require.NoError(t, err)

	assert.False(t, svc.VerifyConfirmationToken(ctx, reset, 7), "reset token must not confirm")
	_, ok := svc.VerifyAuthToken(reset)
	assert.False(t, ok, "reset token must not authenticate")
}

func TestDifferentSecretRejected(t *testing.T) {
	ctx := context.Background()
	minted, err := New("secret-a", nil).GenerateConfirmationToken(7, time.Hour)
	require.NoError(t, err)

	assert.False(t, New("secret-b", nil).VerifyConfirmationToken(ctx, minted, 7))
}

func TestEmailChangeTokenCarriesAddress(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	tok, err := svc.GenerateEmailChangeToken(7, "new@example.com", time.Hour)
	require.NoError(t, err)

	email, ok := svc.VerifyEmailChangeToken(ctx, tok, 7)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", email)

	_, ok = svc.VerifyEmailChangeToken(ctx, tok, 7)
	assert.False(t, ok, "email change token is single-use")
}

func TestAuthTokenResolvesUser(t *testing.T) {
	svc := newService()

	tok, err := svc.GenerateAuthToken(42, time.Hour)
	require.NoError(t, err)

	id, ok := svc.VerifyAuthToken(tok)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	// Auth tokens are reusable until expiry.
	id, ok = svc.VerifyAuthToken(tok)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}
