//go:build integration

package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classhub/internal/token"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/testutil/containers"
)

func TestRedisRegistryMarkUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redis := containers.NewRedisContainer(t)
	registry := token.NewRedisRegistry(redis.Client)
	ctx := context.Background()

	require.NoError(t, registry.MarkUsed(ctx, "jti-1", time.Minute))
	assert.ErrorIs(t, registry.MarkUsed(ctx, "jti-1", time.Minute), sentinel.ErrAlreadyUsed)
	require.NoError(t, registry.MarkUsed(ctx, "jti-2", time.Minute))
}

func TestRedisRegistryBacksSingleUseTokens(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redis := containers.NewRedisContainer(t)
	svc := token.New("integration-secret", token.NewRedisRegistry(redis.Client))
	ctx := context.Background()

	tok, err := svc.GenerateConfirmationToken(7, time.Minute)
	require.NoError(t, err)

	assert.True(t, svc.VerifyConfirmationToken(ctx, tok, 7))
	assert.False(t, svc.VerifyConfirmationToken(ctx, tok, 7), "token must be single-use")
}
