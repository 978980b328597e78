package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"classhub/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryUserStore
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryUserStore()
}

func (s *UserStoreSuite) newUser(email, username string) *User {
	u := &User{Email: email, Username: username, RoleID: 1, PasswordHash: "x"}
	s.Require().NoError(s.store.Create(s.ctx, u))
	return u
}

func (s *UserStoreSuite) TestCreateAndLookup() {
	created := s.newUser("alice@example.com", "alice")
	s.NotZero(created.ID)

	s.Run("by id", func() {
		got, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal("alice", got.Username)
	})

	s.Run("by email is case-insensitive", func() {
		got, err := s.store.FindByEmail(s.ctx, "ALICE@Example.COM")
		s.Require().NoError(err)
		s.Equal(created.ID, got.ID)
	})

	s.Run("by username", func() {
		got, err := s.store.FindByUsername(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(created.ID, got.ID)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestCreateConflicts() {
	s.newUser("alice@example.com", "alice")

	s.Run("duplicate email differing only in case", func() {
		err := s.store.Create(s.ctx, &User{Email: "Alice@Example.com", Username: "other"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("duplicate username", func() {
		err := s.store.Create(s.ctx, &User{Email: "second@example.com", Username: "alice"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *UserStoreSuite) TestUpdate() {
	alice := s.newUser("alice@example.com", "alice")
	s.newUser("bob@example.com", "bob")

	alice.Location = "Shanghai"
	s.Require().NoError(s.store.Update(s.ctx, alice))
	got, err := s.store.FindByID(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal("Shanghai", got.Location)

	s.Run("cannot take another user's email", func() {
		alice.Email = "bob@example.com"
		s.ErrorIs(s.store.Update(s.ctx, alice), sentinel.ErrConflict)
	})
}

func (s *UserStoreSuite) TestDelete() {
	alice := s.newUser("alice@example.com", "alice")
	s.Require().NoError(s.store.Delete(s.ctx, alice.ID))
	_, err := s.store.FindByID(s.ctx, alice.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, alice.ID), sentinel.ErrNotFound)
}

type RoleStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryRoleStore
}

func TestRoleStoreSuite(t *testing.T) {
	suite.Run(t, new(RoleStoreSuite))
}

func (s *RoleStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryRoleStore()
	s.Require().NoError(s.store.Seed(s.ctx))
}

func (s *RoleStoreSuite) TestSeededRoles() {
	s.Run("default role is User", func() {
		role, err := s.store.FindDefault(s.ctx)
		s.Require().NoError(err)
		s.Equal(RoleNameUser, role.Name)
		s.True(role.Can(PermWriteArticles))
		s.False(role.Can(PermModerate))
	})

	s.Run("administrator has every permission", func() {
		role, err := s.store.FindByName(s.ctx, RoleNameAdministrator)
		s.Require().NoError(err)
		s.True(role.Can(PermAdminister))
		s.True(role.Can(PermModerate))
	})

	s.Run("reseeding does not duplicate", func() {
		s.Require().NoError(s.store.Seed(s.ctx))
		role, err := s.store.FindByName(s.ctx, RoleNameModerator)
		s.Require().NoError(err)
		got, err := s.store.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Equal(RoleNameModerator, got.Name)
	})
}

type FollowStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryFollowStore
}

func TestFollowStoreSuite(t *testing.T) {
	suite.Run(t, new(FollowStoreSuite))
}

func (s *FollowStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryFollowStore()
}

func (s *FollowStoreSuite) follow(follower, followed int64, at time.Time) {
	s.Require().NoError(s.store.Create(s.ctx, Follow{
		FollowerID: follower,
		FollowedID: followed,
		Timestamp:  at,
	}))
}

func (s *FollowStoreSuite) TestEdgeLifecycle() {
	now := time.Now()
	s.follow(1, 2, now)

	ok, err := s.store.Exists(s.ctx, 1, 2)
	s.Require().NoError(err)
	s.True(ok)

	s.Run("duplicate edge conflicts", func() {
		err := s.store.Create(s.ctx, Follow{FollowerID: 1, FollowedID: 2})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("delete removes the edge", func() {
		s.Require().NoError(s.store.Delete(s.ctx, 1, 2))
		ok, err := s.store.Exists(s.ctx, 1, 2)
		s.Require().NoError(err)
		s.False(ok)
		s.ErrorIs(s.store.Delete(s.ctx, 1, 2), sentinel.ErrNotFound)
	})
}

func (s *FollowStoreSuite) TestSelfEdgeExcludedFromListsAndCounts() {
	now := time.Now()
	s.follow(1, 1, now) // self-follow created at registration
	s.follow(2, 1, now.Add(time.Minute))
	s.follow(1, 3, now.Add(2*time.Minute))

	followers, err := s.store.ListFollowers(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(followers, 1)
	s.EqualValues(2, followers[0].FollowerID)

	followed, err := s.store.ListFollowed(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(followed, 1)
	s.EqualValues(3, followed[0].FollowedID)

	n, err := s.store.CountFollowers(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.CountFollowed(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *FollowStoreSuite) TestFollowedIDsIncludesSelf() {
	now := time.Now()
	s.follow(1, 1, now)
	s.follow(1, 2, now)

	ids, err := s.store.FollowedIDs(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2}, ids)
}

type ClickTimeStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryClickTimeStore
}

func TestClickTimeStoreSuite(t *testing.T) {
	suite.Run(t, new(ClickTimeStoreSuite))
}

func (s *ClickTimeStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryClickTimeStore()
}

func (s *ClickTimeStoreSuite) TestTouchAndLastViewed() {
	never, err := s.store.LastViewed(s.ctx, 1, FeedMentions)
	s.Require().NoError(err)
	s.True(never.IsZero())

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Touch(s.ctx, 1, FeedMentions, first))

	got, err := s.store.LastViewed(s.ctx, 1, FeedMentions)
	s.Require().NoError(err)
	s.Equal(first, got)

	// A later touch overwrites; other feeds are untouched.
	second := first.Add(time.Hour)
	s.Require().NoError(s.store.Touch(s.ctx, 1, FeedMentions, second))
	got, err = s.store.LastViewed(s.ctx, 1, FeedMentions)
	s.Require().NoError(err)
	s.Equal(second, got)

	other, err := s.store.LastViewed(s.ctx, 1, FeedCommentsOnMe)
	s.Require().NoError(err)
	s.True(other.IsZero())
}
