// Package token issues and verifies the signed, expiring tokens used by the
// confirmation, password-reset, email-change and API-auth flows.
//
// Verification fails closed: any malformed, expired, mis-purposed or reused
// token yields a negative result. Parse errors never escape to callers.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. A token minted for one flow never verifies in another.
const (
	purposeConfirm     = "confirm"
	purposeReset       = "reset"
	purposeChangeEmail = "change_email"
	purposeAuth        = "auth"
)

// Claims is the JWT payload for all token flows.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Purpose  string `json:"purpose"`
	NewEmail string `json:"new_email,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. Confirmation and reset tokens are
// single-use; the registry tracks consumed token IDs.
type Service struct {
	signingKey []byte
	registry   UsedRegistry
}

// New builds a token Service. A nil registry falls back to in-memory tracking.
func New(secretKey string, registry UsedRegistry) *Service {
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	return &Service{signingKey: []byte(secretKey), registry: registry}
}

func (s *Service) generate(userID int64, purpose, newEmail string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Purpose:  purpose,
		NewEmail: newEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// parse validates signature, expiry and purpose. ok=false on any failure.
func (s *Service) parse(tokenString, purpose string) (Claims, bool) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, isHMAC := t.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, false
	}
	if claims.Purpose != purpose {
		return Claims{}, false
	}
	return claims, true
}

// consume claims the token's jti; reused tokens verify negative.
func (s *Service) consume(ctx context.Context, claims Claims) bool {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return false
	}
	return s.registry.MarkUsed(ctx, claims.ID, ttl) == nil
}

// GenerateConfirmationToken mints an account-confirmation token.
func (s *Service) GenerateConfirmationToken(userID int64, ttl time.Duration) (string, error) {
	return s.generate(userID, purposeConfirm, "", ttl)
}

// VerifyConfirmationToken reports whether the token confirms the given user.
// A valid token verifies exactly once.
func (s *Service) VerifyConfirmationToken(ctx context.Context, tokenString string, userID int64) bool {
	claims, ok := s.parse(tokenString, purposeConfirm)
	if !ok || claims.UserID != userID {
		return false
	}
	return s.consume(ctx, claims)
}

// GenerateResetToken mints a password-reset token.
func (s *Service) GenerateResetToken(userID int64, ttl time.Duration) (string, error) {
	return s.generate(userID, purposeReset, "", ttl)
}

// VerifyResetToken reports whether the token authorizes a password reset for
// the given user. Single-use, like confirmation tokens.
func (s *Service) VerifyResetToken(ctx context.Context, tokenString string, userID int64) bool {
	claims, ok := s.parse(tokenString, purposeReset)
	if !ok || claims.UserID != userID {
		return false
	}
	return s.consume(ctx, claims)
}

// GenerateEmailChangeToken mints a token binding the user to a new address.
func (s *Service) GenerateEmailChangeToken(userID int64, newEmail string, ttl time.Duration) (string, error) {
	return s.generate(userID, purposeChangeEmail, newEmail, ttl)
}

// VerifyEmailChangeToken returns the new address encoded in the token, or
// ok=false when the token is invalid or belongs to another user.
func (s *Service) VerifyEmailChangeToken(ctx context.Context, tokenString string, userID int64) (newEmail string, ok bool) {
	claims, exists := s.parse(tokenString, purposeChangeEmail)
	if !exists || claims.UserID != userID || claims.NewEmail == "" {
		return "", false
	}
	if !s.consume(ctx, claims) {
		return "", false
	}
	return claims.NewEmail, true
}

// GenerateAuthToken mints a bearer token for the JSON API.
func (s *Service) GenerateAuthToken(userID int64, ttl time.Duration) (string, error) {
	return s.generate(userID, purposeAuth, "", ttl)
}

// VerifyAuthToken resolves a bearer token to a user ID. Auth tokens are
// reusable until expiry, so the registry is not consulted.
func (s *Service) VerifyAuthToken(tokenString string) (int64, bool) {
	claims, ok := s.parse(tokenString, purposeAuth)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}
