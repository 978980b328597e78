//go:build integration

package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"classhub/internal/accounts"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/testutil/containers"
)

type PostgresAccountsSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	users    *accounts.PostgresUserStore
	roles    *accounts.PostgresRoleStore
	follows  *accounts.PostgresFollowStore
	clicks   *accounts.PostgresClickTimeStore
}

func TestPostgresAccountsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAccountsSuite))
}

func (s *PostgresAccountsSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.users = accounts.NewPostgresUserStore(s.postgres.DB)
	s.roles = accounts.NewPostgresRoleStore(s.postgres.DB)
	s.follows = accounts.NewPostgresFollowStore(s.postgres.DB)
	s.clicks = accounts.NewPostgresClickTimeStore(s.postgres.DB)
}

func (s *PostgresAccountsSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(s.ctx))
	s.Require().NoError(s.roles.Seed(s.ctx))
}

func (s *PostgresAccountsSuite) newUser(email, username string) *accounts.User {
	role, err := s.roles.FindDefault(s.ctx)
	s.Require().NoError(err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &accounts.User{
		Email:        email,
		Username:     username,
		RoleID:       role.ID,
		PasswordHash: "hash",
		MemberSince:  now,
		LastSeen:     now,
	}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *PostgresAccountsSuite) TestUserRoundTrip() {
	created := s.newUser("alice@example.com", "alice")
	s.NotZero(created.ID)

	got, err := s.users.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("alice", got.Username)

	byEmail, err := s.users.FindByEmail(s.ctx, "ALICE@EXAMPLE.COM")
	s.Require().NoError(err)
	s.Equal(created.ID, byEmail.ID)

	got.Location = "Beijing"
	s.Require().NoError(s.users.Update(s.ctx, got))
	got, err = s.users.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Beijing", got.Location)

	s.Require().NoError(s.users.Delete(s.ctx, created.ID))
	_, err = s.users.FindByID(s.ctx, created.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAccountsSuite) TestUserUniqueness() {
	s.newUser("alice@example.com", "alice")

	s.Run("email unique ignoring case", func() {
		err := s.users.Create(s.ctx, &accounts.User{
			Email: "Alice@Example.com", Username: "other", RoleID: 1, PasswordHash: "x",
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("username unique", func() {
		err := s.users.Create(s.ctx, &accounts.User{
			Email: "second@example.com", Username: "alice", RoleID: 1, PasswordHash: "x",
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *PostgresAccountsSuite) TestRoleSeedIdempotent() {
	s.Require().NoError(s.roles.Seed(s.ctx))

	def, err := s.roles.FindDefault(s.ctx)
	s.Require().NoError(err)
	s.Equal(accounts.RoleNameUser, def.Name)

	admin, err := s.roles.FindByName(s.ctx, accounts.RoleNameAdministrator)
	s.Require().NoError(err)
	s.True(admin.Can(accounts.PermAdminister))
}

func (s *PostgresAccountsSuite) TestFollowEdges() {
	alice := s.newUser("alice@example.com", "alice")
	bob := s.newUser("bob@example.com", "bob")
	now := time.Now().UTC()

	// Self-follow plus one real edge in each direction.
	s.Require().NoError(s.follows.Create(s.ctx, accounts.Follow{FollowerID: alice.ID, FollowedID: alice.ID, Timestamp: now}))
	s.Require().NoError(s.follows.Create(s.ctx, accounts.Follow{FollowerID: bob.ID, FollowedID: alice.ID, Timestamp: now}))

	s.Run("duplicate edge conflicts", func() {
		err := s.follows.Create(s.ctx, accounts.Follow{FollowerID: bob.ID, FollowedID: alice.ID, Timestamp: now})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("counts exclude the self edge", func() {
		n, err := s.follows.CountFollowers(s.ctx, alice.ID)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("followed ids include the self edge", func() {
		ids, err := s.follows.FollowedIDs(s.ctx, alice.ID)
		s.Require().NoError(err)
		s.Equal([]int64{alice.ID}, ids)
	})

	s.Run("delete removes the edge", func() {
		s.Require().NoError(s.follows.Delete(s.ctx, bob.ID, alice.ID))
		ok, err := s.follows.Exists(s.ctx, bob.ID, alice.ID)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *PostgresAccountsSuite) TestClickTimeUpsert() {
	alice := s.newUser("alice@example.com", "alice")

	never, err := s.clicks.LastViewed(s.ctx, alice.ID, accounts.FeedMentions)
	s.Require().NoError(err)
	s.True(never.IsZero())

	first := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.clicks.Touch(s.ctx, alice.ID, accounts.FeedMentions, first))
	s.Require().NoError(s.clicks.Touch(s.ctx, alice.ID, accounts.FeedMentions, first.Add(time.Hour)))

	got, err := s.clicks.LastViewed(s.ctx, alice.ID, accounts.FeedMentions)
	s.Require().NoError(err)
	s.True(got.Equal(first.Add(time.Hour)))
}
