package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"classhub/pkg/platform/sentinel"
)

type PostStoreSuite struct {
	suite.Suite
	store *InMemoryPostStore
	ctx   context.Context
}

func (s *PostStoreSuite) SetupTest() {
	s.store = NewInMemoryPostStore()
	s.ctx = context.Background()
}

func TestPostStoreSuite(t *testing.T) {
	suite.Run(t, new(PostStoreSuite))
}

func (s *PostStoreSuite) newPost(authorID int64, body string, ts time.Time) *Post {
	return &Post{
		Topic:     "topic",
		Body:      body,
		BodyHTML:  "<p>" + body + "</p>",
		Timestamp: ts,
		AuthorID:  authorID,
	}
}

func (s *PostStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds post by ID", func() {
		post := s.newPost(1, "hello", time.Now())
		s.Require().NoError(s.store.Create(s.ctx, post))
		s.NotZero(post.ID)

		found, err := s.store.FindByID(s.ctx, post.ID)
		s.Require().NoError(err)
		s.Equal("hello", found.Body)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound when deleting twice", func() {
		post := s.newPost(1, "gone", time.Now())
		s.Require().NoError(s.store.Create(s.ctx, post))
		s.Require().NoError(s.store.Delete(s.ctx, post.ID))
		s.Require().ErrorIs(s.store.Delete(s.ctx, post.ID), sentinel.ErrNotFound)
	})
}

func (s *PostStoreSuite) TestListingAndPagination() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		post := s.newPost(7, "post", base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Create(s.ctx, post))
	}
	other := s.newPost(8, "other", base)
	s.Require().NoError(s.store.Create(s.ctx, other))

	s.Run("lists newest first with total", func() {
		posts, total, err := s.store.ListByAuthor(s.ctx, 7, 1, 2)
		s.Require().NoError(err)
		s.Equal(5, total)
		s.Require().Len(posts, 2)
		s.True(posts[0].Timestamp.After(posts[1].Timestamp))
	})

	s.Run("last page holds the remainder", func() {
		posts, total, err := s.store.ListByAuthor(s.ctx, 7, 3, 2)
		s.Require().NoError(err)
		s.Equal(5, total)
		s.Len(posts, 1)
	})

	s.Run("page past the end is empty, not an error", func() {
		posts, total, err := s.store.ListByAuthor(s.ctx, 7, 9, 2)
		s.Require().NoError(err)
		s.Equal(5, total)
		s.Empty(posts)
	})

	s.Run("lists across several authors", func() {
		posts, total, err := s.store.ListByAuthors(s.ctx, []int64{7, 8}, 1, 10)
		s.Require().NoError(err)
		s.Equal(6, total)
		s.Len(posts, 6)
	})
}

func (s *PostStoreSuite) TestCounts() {
	now := time.Now()
	public := s.newPost(3, "public", now)
	s.Require().NoError(s.store.Create(s.ctx, public))
	private := s.newPost(3, "private", now)
	private.Private = true
	s.Require().NoError(s.store.Create(s.ctx, private))
	tagged := s.newPost(4, "tagged", now)
	tagged.Tag = DiscussionTag(12)
	s.Require().NoError(s.store.Create(s.ctx, tagged))

	n, err := s.store.CountByAuthor(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.store.CountPrivateByAuthor(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.store.CountByTag(s.ctx, DiscussionTag(12))
	s.Require().NoError(err)
	s.Equal(1, n)
}

type CommentStoreSuite struct {
	suite.Suite
	posts    *InMemoryPostStore
	comments *InMemoryCommentStore
	ctx      context.Context
}

func (s *CommentStoreSuite) SetupTest() {
	s.posts = NewInMemoryPostStore()
	s.comments = NewInMemoryCommentStore(s.posts)
	s.ctx = context.Background()
}

func TestCommentStoreSuite(t *testing.T) {
	suite.Run(t, new(CommentStoreSuite))
}

func (s *CommentStoreSuite) TestListingOrder() {
	post := &Post{Body: "p", AuthorID: 1, Timestamp: time.Now()}
	s.Require().NoError(s.posts.Create(s.ctx, post))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c := &Comment{Body: "c", AuthorID: 2, PostID: post.ID, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.comments.Create(s.ctx, c))
	}

	comments, total, err := s.comments.ListByPost(s.ctx, post.ID, 1, 10)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(comments, 3)
	s.True(comments[0].Timestamp.Before(comments[2].Timestamp), "comments list oldest first")
}

func (s *CommentStoreSuite) TestCountOnAuthor() {
	mine := &Post{Body: "mine", AuthorID: 1, Timestamp: time.Now()}
	s.Require().NoError(s.posts.Create(s.ctx, mine))
	theirs := &Post{Body: "theirs", AuthorID: 2, Timestamp: time.Now()}
	s.Require().NoError(s.posts.Create(s.ctx, theirs))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	onMine := &Comment{Body: "a", AuthorID: 2, PostID: mine.ID, Timestamp: base}
	s.Require().NoError(s.comments.Create(s.ctx, onMine))
	onMineLater := &Comment{Body: "b", AuthorID: 2, PostID: mine.ID, Timestamp: base.Add(time.Hour)}
	s.Require().NoError(s.comments.Create(s.ctx, onMineLater))
	onTheirs := &Comment{Body: "c", AuthorID: 1, PostID: theirs.ID, Timestamp: base}
	s.Require().NoError(s.comments.Create(s.ctx, onTheirs))

	n, err := s.comments.CountOnAuthor(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.comments.CountOnAuthorSince(s.ctx, 1, base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}

type LetterStoreSuite struct {
	suite.Suite
	store *InMemoryLetterStore
	ctx   context.Context
}

func (s *LetterStoreSuite) SetupTest() {
	s.store = NewInMemoryLetterStore()
	s.ctx = context.Background()
}

func TestLetterStoreSuite(t *testing.T) {
	suite.Run(t, new(LetterStoreSuite))
}

func (s *LetterStoreSuite) TestMailboxes() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l := &Letter{Body: "hi", SenderName: "alice", ReceiverName: "bob", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.store.Create(s.ctx, l))
	}
	reply := &Letter{Body: "re", SenderName: "bob", ReceiverName: "alice", Timestamp: base}
	s.Require().NoError(s.store.Create(s.ctx, reply))

	inbox, total, err := s.store.ListByReceiver(s.ctx, "bob", 1, 10)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(inbox, 3)
	s.True(inbox[0].Timestamp.After(inbox[2].Timestamp), "inbox lists newest first")

	outbox, total, err := s.store.ListBySender(s.ctx, "bob", 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Len(outbox, 1)

	n, err := s.store.CountByReceiver(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, n)
}

type CollectStoreSuite struct {
	suite.Suite
	store *InMemoryCollectStore
	ctx   context.Context
}

func (s *CollectStoreSuite) SetupTest() {
	s.store = NewInMemoryCollectStore()
	s.ctx = context.Background()
}

func TestCollectStoreSuite(t *testing.T) {
	suite.Run(t, new(CollectStoreSuite))
}

func (s *CollectStoreSuite) TestEdgeSemantics() {
	edge := CollectPost{UserID: 1, PostID: 10, Timestamp: time.Now()}

	s.Run("duplicate create conflicts", func() {
		s.Require().NoError(s.store.Create(s.ctx, edge))
		s.Require().ErrorIs(s.store.Create(s.ctx, edge), sentinel.ErrConflict)
	})

	s.Run("exists and count see the edge", func() {
		ok, err := s.store.Exists(s.ctx, 1, 10)
		s.Require().NoError(err)
		s.True(ok)

		n, err := s.store.CountByUser(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("delete of missing edge is ErrNotFound", func() {
		s.Require().NoError(s.store.Delete(s.ctx, 1, 10))
		s.Require().ErrorIs(s.store.Delete(s.ctx, 1, 10), sentinel.ErrNotFound)
	})
}
