package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classhub/internal/markup"
	dErrors "classhub/pkg/domain-errors"
	"classhub/pkg/requestcontext"
)

type fakeDirectory struct {
	known map[string]bool
}

func (d *fakeDirectory) UsernameExists(_ context.Context, username string) (bool, error) {
	return d.known[username], nil
}

type fakeFollowGraph struct {
	followed map[int64][]int64
}

func (g *fakeFollowGraph) FollowedIDs(_ context.Context, userID int64) ([]int64, error) {
	return g.followed[userID], nil
}

type serviceFixture struct {
	svc   *Service
	posts *InMemoryPostStore
	atmes *InMemoryAtMeStore
	dir   *fakeDirectory
	graph *fakeFollowGraph
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	posts := NewInMemoryPostStore()
	atmes := NewInMemoryAtMeStore()
	dir := &fakeDirectory{known: map[string]bool{}}
	graph := &fakeFollowGraph{followed: map[int64][]int64{}}
	svc := NewService(
		posts,
		NewInMemoryCommentStore(posts),
		NewInMemoryLetterStore(),
		atmes,
		NewInMemoryCollectStore(),
		markup.NewRenderer(),
		dir,
		graph,
	)
	return &serviceFixture{svc: svc, posts: posts, atmes: atmes, dir: dir, graph: graph}
}

func TestCreatePostRendersHTML(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", post.BodyHTML)
	assert.NotZero(t, post.ID)
}

func TestCreatePostRequiresBody(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreatePost(context.Background(), 1, PostInput{Body: "   "})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "post body required", dErrors.MessageOf(err))
}

func TestCreatePostRejectsUnknownFileType(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreatePost(context.Background(), 1, PostInput{
		Body:  "see attachment",
		Files: []Attachment{{File: "uploads/run.exe", Name: "run.exe"}},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "file type not allowed: run.exe", dErrors.MessageOf(err))
}

func TestUpdatePostBodyRegeneratesHTML(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "first"})
	require.NoError(t, err)

	updated, err := f.svc.UpdatePostBody(ctx, post.ID, "**second**")
	require.NoError(t, err)
	assert.Equal(t, "**second**", updated.Body)
	assert.Equal(t, "<p><strong>second</strong></p>", updated.BodyHTML)
}

func TestListTimelineUsesFollowGraph(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "mine"})
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, 2, PostInput{Body: "followed"})
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, 3, PostInput{Body: "stranger"})
	require.NoError(t, err)

	f.graph.followed[1] = []int64{1, 2}

	posts, total, err := f.svc.ListTimeline(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.NotEqual(t, int64(3), p.AuthorID)
	}
}

func TestCreateCommentRecordsMentions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.dir.known["bob"] = true

	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "hello"})
	require.NoError(t, err)

	comment, err := f.svc.CreateComment(ctx, 2, "alice", post.ID, "ping @bob and @ghost")
	require.NoError(t, err)
	require.NotZero(t, comment.ID)

	mentions, err := f.svc.Mentions(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "alice", mentions[0].FromUsername)
	assert.Equal(t, comment.ID, mentions[0].CommentID)

	ghost, err := f.svc.Mentions(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, ghost, "unknown usernames do not produce notifications")
}

func TestCreateCommentRejectsMissingPost(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateComment(context.Background(), 2, "alice", 999, "body")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol"}, ExtractMentions("hi @bob, also @carol and @bob again"))
	assert.Empty(t, ExtractMentions("no mentions here"))
}

func TestSendLetterRequiresKnownReceiver(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.dir.known["bob"] = true

	letter, err := f.svc.SendLetter(ctx, "alice", "bob", "hi", "how are you")
	require.NoError(t, err)
	assert.Equal(t, "alice", letter.SenderName)

	_, err = f.svc.SendLetter(ctx, "alice", "nobody", "hi", "hello?")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCollectIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "keep"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Collect(ctx, 2, post.ID))
	require.NoError(t, f.svc.Collect(ctx, 2, post.ID), "re-collecting is a no-op")

	ok, err := f.svc.IsCollected(ctx, 2, post.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.Uncollect(ctx, 2, post.ID))
	require.NoError(t, f.svc.Uncollect(ctx, 2, post.ID), "re-uncollecting is a no-op")

	ok, err = f.svc.IsCollected(ctx, 2, post.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountersFor(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.dir.known["alice"] = true
	f.dir.known["bob"] = true

	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "public"})
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, 1, PostInput{Body: "secret", Private: true})
	require.NoError(t, err)

	_, err = f.svc.CreateComment(ctx, 2, "bob", post.ID, "nice @alice")
	require.NoError(t, err)
	_, err = f.svc.SendLetter(ctx, "bob", "alice", "hi", "hello")
	require.NoError(t, err)
	require.NoError(t, f.svc.Collect(ctx, 1, post.ID))

	counters, err := f.svc.CountersFor(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Posts)
	assert.Equal(t, 1, counters.PrivatePosts)
	assert.Equal(t, 1, counters.CommentsOnMe)
	assert.Equal(t, 1, counters.Mentions)
	assert.Equal(t, 1, counters.Bookmarks)
	assert.Equal(t, 1, counters.LettersGot)
	assert.Equal(t, 0, counters.LettersSent)
}

func TestNewBadgeCounts(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.known["alice"] = true

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), base)
	post, err := f.svc.CreatePost(ctx, 1, PostInput{Body: "hello"})
	require.NoError(t, err)

	later := requestcontext.WithTime(context.Background(), base.Add(time.Hour))
	_, err = f.svc.CreateComment(later, 2, "bob", post.ID, "late @alice")
	require.NoError(t, err)

	n, err := f.svc.NewCommentsOnAuthorSince(ctx, 1, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.NewMentionsSince(ctx, "alice", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
