package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"classhub/internal/audit"
	"classhub/internal/avatar"
	"classhub/internal/password"
	"classhub/internal/platform/metrics"
	"classhub/internal/token"
	dErrors "classhub/pkg/domain-errors"
	emailutil "classhub/pkg/email"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/platform/tx"
	"classhub/pkg/requestcontext"
)

// DefaultTokenTTL bounds confirmation, reset and email-change tokens.
const DefaultTokenTTL = time.Hour

// Service owns the user, role and follow lifecycle.
type Service struct {
	users      UserStore
	roles      RoleStore
	follows    FollowStore
	clicks     ClickTimeStore
	tokens     *token.Service
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditor    *audit.Publisher
	adminEmail string
}

type serviceConfig struct {
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditor    *audit.Publisher
	adminEmail string
}

type Option func(*serviceConfig)

func WithTxRunner(runner tx.Runner) Option {
	return func(c *serviceConfig) { c.tx = runner }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

// WithAdminEmail marks the address that registers as Administrator.
func WithAdminEmail(email string) Option {
	return func(c *serviceConfig) { c.adminEmail = email }
}

func NewService(users UserStore, roles RoleStore, follows FollowStore, clicks ClickTimeStore, tokens *token.Service, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NopRunner{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Service{
		users:      users,
		roles:      roles,
		follows:    follows,
		clicks:     clicks,
		tokens:     tokens,
		tx:         cfg.tx,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		auditor:    cfg.auditor,
		adminEmail: cfg.adminEmail,
	}
}

// Register creates an account: hashed password, role assignment, derived
// avatar hash and the self-follow edge, committed in one transaction.
func (s *Service) Register(ctx context.Context, email, username, plaintext string) (*User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email required")
	}
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username required")
	}
	if plaintext == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password required")
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	var user *User
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleFor(txCtx, email)
		if err != nil {
			return err
		}

		first, last := emailutil.DeriveNameFromEmail(email)
		now := requestcontext.Now(txCtx)
		user = &User{
			Email:        email,
			Username:     username,
			RoleID:       role.ID,
			PasswordHash: hash,
			Name:         first + " " + last,
			MemberSince:  now,
			LastSeen:     now,
			AvatarHash:   avatar.HashEmail(email),
		}
		if err := s.users.Create(txCtx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "email or username already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}

		// Self-follow so the timeline includes the user's own posts.
		if err := s.follows.Create(txCtx, Follow{FollowerID: user.ID, FollowedID: user.ID, Timestamp: now}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create self-follow")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementUsersCreated()
	s.auditor.Emit(ctx, audit.Event{ActorID: user.ID, Action: "user.created", Subject: username})
	return user, nil
}

func (s *Service) roleFor(ctx context.Context, email string) (*Role, error) {
	if s.adminEmail != "" && strings.EqualFold(email, s.adminEmail) {
		role, err := s.roles.FindByName(ctx, RoleNameAdministrator)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve administrator role")
		}
	}
	role, err := s.roles.FindDefault(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve default role")
	}
	return role, nil
}

// Authenticate resolves an email/password pair to a user, failing with an
// unauthorized error on any mismatch.
func (s *Service) Authenticate(ctx context.Context, email, plaintext string) (*User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if !password.Verify(user.PasswordHash, plaintext) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// GetUserByUsername fetches a user by username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// UsernameExists reports whether a username is registered.
func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up username")
}

// UpdateProfile sets the free-form profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, name, location, tel, aboutMe string) (*User, error) {
	var user *User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		u, err := s.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		u.Name = name
		u.Location = location
		u.Tel = tel
		u.AboutMe = aboutMe
		if err := s.users.Update(txCtx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Ping records request activity by bumping LastSeen.
func (s *Service) Ping(ctx context.Context, userID int64) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		user.LastSeen = requestcontext.Now(txCtx)
		if err := s.users.Update(txCtx, user); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update last seen")
		}
		return nil
	})
}

// Can reports whether the user's role grants perm. Unknown users and roles
// grant nothing.
func (s *Service) Can(ctx context.Context, userID int64, perm Permission) bool {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false
	}
	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return false
	}
	return role.Can(perm)
}

// IsAdministrator reports whether the user holds the administer capability.
func (s *Service) IsAdministrator(ctx context.Context, userID int64) bool {
	return s.Can(ctx, userID, PermAdminister)
}

// GravatarURL builds the avatar URL for a user.
func (s *Service) GravatarURL(user *User, size int) string {
	hash := user.AvatarHash
	if hash == "" {
		hash = avatar.HashEmail(user.Email)
	}
	return avatar.URL(hash, size, "", "")
}

// GenerateConfirmationToken mints the account-confirmation token.
func (s *Service) GenerateConfirmationToken(userID int64) (string, error) {
	return s.tokens.GenerateConfirmationToken(userID, DefaultTokenTTL)
}

// Confirm verifies a confirmation token and marks the account confirmed.
// Token failures are silent: the method returns false, never an error.
func (s *Service) Confirm(ctx context.Context, userID int64, tokenString string) bool {
	if !s.tokens.VerifyConfirmationToken(ctx, tokenString, userID) {
		return false
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		user.Confirmed = true
		return s.users.Update(txCtx, user)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist confirmation",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return true
}

// GenerateResetToken mints the password-reset token.
func (s *Service) GenerateResetToken(userID int64) (string, error) {
	return s.tokens.GenerateResetToken(userID, DefaultTokenTTL)
}

// ResetPassword sets a new password when the reset token verifies.
func (s *Service) ResetPassword(ctx context.Context, userID int64, tokenString, newPassword string) bool {
	if newPassword == "" {
		return false
	}
	if !s.tokens.VerifyResetToken(ctx, tokenString, userID) {
		return false
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return false
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		return s.users.Update(txCtx, user)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist password reset",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return true
}

// GenerateEmailChangeToken mints a token binding the user to a new address.
func (s *Service) GenerateEmailChangeToken(userID int64, newEmail string) (string, error) {
	return s.tokens.GenerateEmailChangeToken(userID, newEmail, DefaultTokenTTL)
}

// ChangeEmail applies a verified email-change token: the address must still be
// unused, and the avatar hash follows the new address.
func (s *Service) ChangeEmail(ctx context.Context, userID int64, tokenString string) bool {
	newEmail, ok := s.tokens.VerifyEmailChangeToken(ctx, tokenString, userID)
	if !ok {
		return false
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if existing, err := s.users.FindByEmail(txCtx, newEmail); err == nil && existing.ID != userID {
			return sentinel.ErrConflict
		}
		user, err := s.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		user.Email = newEmail
		user.AvatarHash = avatar.HashEmail(newEmail)
		return s.users.Update(txCtx, user)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "email change rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return true
}

// GenerateAuthToken mints an API bearer token.
func (s *Service) GenerateAuthToken(userID int64, ttl time.Duration) (string, error) {
	return s.tokens.GenerateAuthToken(userID, ttl)
}

// VerifyAuthToken implements middleware.TokenVerifier.
func (s *Service) VerifyAuthToken(tokenString string) (int64, bool) {
	return s.tokens.VerifyAuthToken(tokenString)
}

// Follow creates the directed edge a→b. Following an already-followed user is
// a no-op; both users must exist.
func (s *Service) Follow(ctx context.Context, followerID, followedID int64) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetUser(txCtx, followedID); err != nil {
			return err
		}
		err := s.follows.Create(txCtx, Follow{
			FollowerID: followerID,
			FollowedID: followedID,
			Timestamp:  requestcontext.Now(txCtx),
		})
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create follow")
		}
		if err == nil {
			s.auditor.Emit(txCtx, audit.Event{ActorID: followerID, Action: "follow.created"})
		}
		return nil
	})
}

// Unfollow removes the edge a→b. Removing a missing edge is a no-op.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID int64) error {
	err := s.follows.Delete(ctx, followerID, followedID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete follow")
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: followerID, Action: "follow.deleted"})
	return nil
}

// IsFollowing reports whether the edge a→b exists.
func (s *Service) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return s.follows.Exists(ctx, followerID, followedID)
}

// IsFollowedBy reports whether the edge b→a exists.
func (s *Service) IsFollowedBy(ctx context.Context, userID, followerID int64) (bool, error) {
	return s.follows.Exists(ctx, followerID, userID)
}

// FollowedIDs lists the author IDs feeding a user's timeline.
func (s *Service) FollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.follows.FollowedIDs(ctx, userID)
}

// ListFollowers lists the users following userID, newest edge first, the self
// edge excluded.
func (s *Service) ListFollowers(ctx context.Context, userID int64) ([]Follow, error) {
	return s.follows.ListFollowers(ctx, userID)
}

// ListFollowed lists the users userID follows, newest edge first, the self
// edge excluded.
func (s *Service) ListFollowed(ctx context.Context, userID int64) ([]Follow, error) {
	return s.follows.ListFollowed(ctx, userID)
}

// CountFollowers counts followers, the self edge excluded.
func (s *Service) CountFollowers(ctx context.Context, userID int64) (int, error) {
	return s.follows.CountFollowers(ctx, userID)
}

// CountFollowed counts followed users, the self edge excluded.
func (s *Service) CountFollowed(ctx context.Context, userID int64) (int, error) {
	return s.follows.CountFollowed(ctx, userID)
}

// MarkFeedViewed stamps the feed's last-viewed time with the request time.
func (s *Service) MarkFeedViewed(ctx context.Context, userID int64, feed Feed) error {
	return s.clicks.Touch(ctx, userID, feed, requestcontext.Now(ctx))
}

// FeedLastViewed returns when the user last opened the feed; zero when never.
func (s *Service) FeedLastViewed(ctx context.Context, userID int64, feed Feed) (time.Time, error) {
	return s.clicks.LastViewed(ctx, userID, feed)
}
