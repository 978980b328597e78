//go:build integration

package forum_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"classhub/internal/accounts"
	"classhub/internal/forum"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/testutil/containers"
)

type PostgresForumSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	users    *accounts.PostgresUserStore
	roles    *accounts.PostgresRoleStore
	posts    *forum.PostgresPostStore
	comments *forum.PostgresCommentStore
	letters  *forum.PostgresLetterStore
	atmes    *forum.PostgresAtMeStore
	collects *forum.PostgresCollectStore

	alice *accounts.User
	bob   *accounts.User
}

func TestPostgresForumSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresForumSuite))
}

func (s *PostgresForumSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.users = accounts.NewPostgresUserStore(s.postgres.DB)
	s.roles = accounts.NewPostgresRoleStore(s.postgres.DB)
	s.posts = forum.NewPostgresPostStore(s.postgres.DB)
	s.comments = forum.NewPostgresCommentStore(s.postgres.DB)
	s.letters = forum.NewPostgresLetterStore(s.postgres.DB)
	s.atmes = forum.NewPostgresAtMeStore(s.postgres.DB)
	s.collects = forum.NewPostgresCollectStore(s.postgres.DB)
}

func (s *PostgresForumSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(s.ctx))
	s.Require().NoError(s.roles.Seed(s.ctx))
	s.alice = s.newUser("alice@example.com", "alice")
	s.bob = s.newUser("bob@example.com", "bob")
}

func (s *PostgresForumSuite) newUser(email, username string) *accounts.User {
	role, err := s.roles.FindDefault(s.ctx)
	s.Require().NoError(err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &accounts.User{
		Email: email, Username: username, RoleID: role.ID,
		PasswordHash: "hash", MemberSince: now, LastSeen: now,
	}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *PostgresForumSuite) newPost(authorID int64, body string, at time.Time) *forum.Post {
	p := &forum.Post{
		Body:      body,
		BodyHTML:  "<p>" + body + "</p>",
		Timestamp: at,
		AuthorID:  authorID,
	}
	s.Require().NoError(s.posts.Create(s.ctx, p))
	return p
}

func (s *PostgresForumSuite) TestPostRoundTrip() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	created := &forum.Post{
		Topic:     "greetings",
		Body:      "hello",
		BodyHTML:  "<p>hello</p>",
		Private:   true,
		Tag:       "misc",
		Timestamp: now,
		AuthorID:  s.alice.ID,
		Images:    []string{"a.png", "b.png"},
		Files:     []forum.Attachment{{File: "f1", Name: "notes.pdf"}},
	}
	s.Require().NoError(s.posts.Create(s.ctx, created))
	s.NotZero(created.ID)

	got, err := s.posts.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("hello", got.Body)
	s.Equal([]string{"a.png", "b.png"}, got.Images)
	s.Require().Len(got.Files, 1)
	s.Equal("notes.pdf", got.Files[0].Name)
	s.True(got.Private)

	got.Body = "edited"
	s.Require().NoError(s.posts.Update(s.ctx, got))
	got, err = s.posts.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("edited", got.Body)

	s.Require().NoError(s.posts.Delete(s.ctx, created.ID))
	_, err = s.posts.FindByID(s.ctx, created.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresForumSuite) TestPostListsNewestFirst() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	s.newPost(s.alice.ID, "first", base)
	s.newPost(s.alice.ID, "second", base.Add(time.Minute))
	s.newPost(s.bob.ID, "third", base.Add(2*time.Minute))

	posts, total, err := s.posts.ListByAuthor(s.ctx, s.alice.ID, 1, 10)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal("second", posts[0].Body)
	s.Equal("first", posts[1].Body)

	s.Run("by authors feeds the timeline", func() {
		posts, total, err := s.posts.ListByAuthors(s.ctx, []int64{s.alice.ID, s.bob.ID}, 1, 2)
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(posts, 2)
		s.Equal("third", posts[0].Body)
	})

	s.Run("page past the end is empty", func() {
		posts, total, err := s.posts.ListByAuthor(s.ctx, s.alice.ID, 5, 10)
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Empty(posts)
	})
}

func (s *PostgresForumSuite) TestCommentCountsJoinPosts() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	post := s.newPost(s.alice.ID, "hello", base)

	for i, at := range []time.Time{base.Add(time.Minute), base.Add(2 * time.Minute)} {
		c := &forum.Comment{
			Body:      "reply",
			BodyHTML:  "<p>reply</p>",
			Timestamp: at,
			AuthorID:  s.bob.ID,
			PostID:    post.ID,
		}
		s.Require().NoError(s.comments.Create(s.ctx, c), "comment %d", i)
	}

	comments, total, err := s.comments.ListByPost(s.ctx, post.ID, 1, 10)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(comments, 2)
	s.True(comments[0].Timestamp.Before(comments[1].Timestamp))

	n, err := s.comments.CountOnAuthor(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.comments.CountOnAuthorSince(s.ctx, s.alice.ID, base.Add(90*time.Second))
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresForumSuite) TestLetterMailboxes() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	l := &forum.Letter{
		Topic:        "hi",
		Body:         "how are you",
		BodyHTML:     "<p>how are you</p>",
		Timestamp:    base,
		SenderName:   "bob",
		ReceiverName: "alice",
	}
	s.Require().NoError(s.letters.Create(s.ctx, l))

	inbox, total, err := s.letters.ListByReceiver(s.ctx, "alice", 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(inbox, 1)
	s.Equal("bob", inbox[0].SenderName)

	n, err := s.letters.CountBySender(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().NoError(s.letters.Delete(s.ctx, l.ID))
	_, err = s.letters.FindByID(s.ctx, l.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresForumSuite) TestMentionCounts() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	post := s.newPost(s.alice.ID, "hello", base)
	c := &forum.Comment{
		Body: "hi @alice", BodyHTML: "<p>hi @alice</p>",
		Timestamp: base, AuthorID: s.bob.ID, PostID: post.ID,
	}
	s.Require().NoError(s.comments.Create(s.ctx, c))

	s.Require().NoError(s.atmes.Create(s.ctx, &forum.AtMe{
		Timestamp: base, CommentID: c.ID, FromUsername: "bob", Username: "alice",
	}))

	mentions, err := s.atmes.ListByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(mentions, 1)
	s.Equal("bob", mentions[0].FromUsername)

	n, err := s.atmes.CountByUsernameSince(s.ctx, "alice", base.Add(time.Minute))
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresForumSuite) TestCollectUniqueness() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	post := s.newPost(s.alice.ID, "hello", base)

	collect := forum.CollectPost{UserID: s.bob.ID, PostID: post.ID, Timestamp: base}
	s.Require().NoError(s.collects.Create(s.ctx, collect))
	s.ErrorIs(s.collects.Create(s.ctx, collect), sentinel.ErrConflict)

	ok, err := s.collects.Exists(s.ctx, s.bob.ID, post.ID)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.collects.Delete(s.ctx, s.bob.ID, post.ID))
	s.ErrorIs(s.collects.Delete(s.ctx, s.bob.ID, post.ID), sentinel.ErrNotFound)
}
