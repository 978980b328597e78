package forum

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"classhub/internal/audit"
	"classhub/internal/platform/metrics"
	"classhub/internal/uploads"
	dErrors "classhub/pkg/domain-errors"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/platform/tx"
	"classhub/pkg/requestcontext"
)

// mentionPattern matches @username tokens inside comment bodies.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Renderer converts author markup to sanitized HTML.
type Renderer interface {
	ToHTML(src string) string
}

// MemberDirectory answers username questions without importing the accounts
// package directly.
type MemberDirectory interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// FollowGraph supplies the author set feeding a user's timeline.
type FollowGraph interface {
	FollowedIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service owns posts, comments, letters, mentions and bookmarks.
type Service struct {
	posts    PostStore
	comments CommentStore
	letters  LetterStore
	atmes    AtMeStore
	collects CollectStore
	renderer Renderer
	members  MemberDirectory
	follows  FollowGraph
	tx       tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  *audit.Publisher
}

type serviceConfig struct {
	tx      tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor *audit.Publisher
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

func NewService(
	posts PostStore,
	comments CommentStore,
	letters LetterStore,
	atmes AtMeStore,
	collects CollectStore,
	renderer Renderer,
	members MemberDirectory,
	follows FollowGraph,
	opts ...Option,
) *Service {
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
		posts:    posts,
		comments: comments,
		letters:  letters,
		atmes:    atmes,
		collects: collects,
		renderer: renderer,
		members:  members,
		follows:  follows,
		tx:       cfg.tx,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		auditor:  cfg.auditor,
	}
}

// PostInput carries the author-supplied fields of a new post.
type PostInput struct {
	Topic   string
	Body    string
	Private bool
	Tag     string
	Images  []string
	Files   []Attachment
}

// CreatePost stores a post with its body rendered to sanitized HTML.
func (s *Service) CreatePost(ctx context.Context, authorID int64, in PostInput) (*Post, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "post body required")
	}
	for _, f := range in.Files {
		if !uploads.Allowed(f.Name) {
			return nil, dErrors.New(dErrors.CodeValidation, "file type not allowed: "+f.Name)
		}
	}
	post := &Post{
		Topic:     in.Topic,
		Body:      in.Body,
		BodyHTML:  s.renderer.ToHTML(in.Body),
		Private:   in.Private,
		Tag:       in.Tag,
		Timestamp: requestcontext.Now(ctx),
		AuthorID:  authorID,
		Images:    in.Images,
		Files:     in.Files,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.posts.Create(txCtx, post); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create post")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementPostsCreated()
	s.auditor.Emit(ctx, audit.Event{ActorID: authorID, Action: "post.created"})
	return post, nil
}

// GetPost fetches a post by ID.
func (s *Service) GetPost(ctx context.Context, id int64) (*Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "post not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load post")
	}
	return post, nil
}

// UpdatePostBody replaces a post's body, regenerating its HTML.
func (s *Service) UpdatePostBody(ctx context.Context, id int64, body string) (*Post, error) {
	if strings.TrimSpace(body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "post body required")
	}
	var post *Post
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.GetPost(txCtx, id)
		if err != nil {
			return err
		}
		p.Body = body
		p.BodyHTML = s.renderer.ToHTML(body)
		if err := s.posts.Update(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update post")
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	err := s.posts.Delete(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "post not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete post")
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: requestcontext.UserID(ctx), Action: "post.deleted"})
	return nil
}

// ListPostsByAuthor pages through an author's posts, newest first.
func (s *Service) ListPostsByAuthor(ctx context.Context, authorID int64, page, perPage int) ([]*Post, int, error) {
	posts, total, err := s.posts.ListByAuthor(ctx, authorID, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list posts")
	}
	return posts, total, nil
}

// ListPostsByTag pages through a tag's posts, newest first.
func (s *Service) ListPostsByTag(ctx context.Context, tag string, page, perPage int) ([]*Post, int, error) {
	posts, total, err := s.posts.ListByTag(ctx, tag, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list posts")
	}
	return posts, total, nil
}

// ListTimeline pages through the posts of everyone the user follows. The self
// edge created at registration keeps the user's own posts in the result.
func (s *Service) ListTimeline(ctx context.Context, userID int64, page, perPage int) ([]*Post, int, error) {
	authorIDs, err := s.follows.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve followed authors")
	}
	if len(authorIDs) == 0 {
		return []*Post{}, 0, nil
	}
	posts, total, err := s.posts.ListByAuthors(ctx, authorIDs, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list timeline")
	}
	return posts, total, nil
}

// CreateComment stores a comment on a post and records a mention notification
// for every @username in the body that names a registered user, all in one
// transaction.
func (s *Service) CreateComment(ctx context.Context, authorID int64, authorUsername string, postID int64, body string) (*Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "comment body required")
	}
	now := requestcontext.Now(ctx)
	comment := &Comment{
		Body:      body,
		BodyHTML:  s.renderer.ToHTML(body),
		Timestamp: now,
		AuthorID:  authorID,
		PostID:    postID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetPost(txCtx, postID); err != nil {
			return err
		}
		if err := s.comments.Create(txCtx, comment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create comment")
		}
		for _, username := range ExtractMentions(body) {
			ok, err := s.members.UsernameExists(txCtx, username)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve mention")
			}
			if !ok {
				continue
			}
			atme := &AtMe{
				Timestamp:    now,
				CommentID:    comment.ID,
				FromUsername: authorUsername,
				Username:     username,
			}
			if err := s.atmes.Create(txCtx, atme); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record mention")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCommentsCreated()
	s.auditor.Emit(ctx, audit.Event{ActorID: authorID, Action: "comment.created"})
	return comment, nil
}

// ExtractMentions returns the deduplicated @usernames in body, in order of
// first appearance.
func ExtractMentions(body string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// GetComment fetches a comment by ID.
func (s *Service) GetComment(ctx context.Context, id int64) (*Comment, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "comment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comment")
	}
	return comment, nil
}

// SetCommentDisabled flips moderation state on a comment.
func (s *Service) SetCommentDisabled(ctx context.Context, id int64, disabled bool) (*Comment, error) {
	var comment *Comment
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.GetComment(txCtx, id)
		if err != nil {
			return err
		}
		c.Disabled = disabled
		if err := s.comments.Update(txCtx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update comment")
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments pages through a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID int64, page, perPage int) ([]*Comment, int, error) {
	comments, total, err := s.comments.ListByPost(ctx, postID, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list comments")
	}
	return comments, total, nil
}

// SendLetter stores a private message between two usernames. The receiver must
// exist.
func (s *Service) SendLetter(ctx context.Context, senderName, receiverName, topic, body string) (*Letter, error) {
	if strings.TrimSpace(body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "letter body required")
	}
	ok, err := s.members.UsernameExists(ctx, receiverName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve receiver")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "receiver not found")
	}
	letter := &Letter{
		Topic:        topic,
		Body:         body,
		BodyHTML:     s.renderer.ToHTML(body),
		Timestamp:    requestcontext.Now(ctx),
		SenderName:   senderName,
		ReceiverName: receiverName,
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.letters.Create(txCtx, letter); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create letter")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{Action: "letter.sent", Subject: receiverName})
	return letter, nil
}

// GetLetter fetches a letter by ID.
func (s *Service) GetLetter(ctx context.Context, id int64) (*Letter, error) {
	letter, err := s.letters.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "letter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load letter")
	}
	return letter, nil
}

// DeleteLetter removes a letter.
func (s *Service) DeleteLetter(ctx context.Context, id int64) error {
	err := s.letters.Delete(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "letter not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete letter")
	}
	return nil
}

// Inbox pages through letters addressed to a username, newest first.
func (s *Service) Inbox(ctx context.Context, username string, page, perPage int) ([]*Letter, int, error) {
	letters, total, err := s.letters.ListByReceiver(ctx, username, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list inbox")
	}
	return letters, total, nil
}

// Outbox pages through letters sent by a username, newest first.
func (s *Service) Outbox(ctx context.Context, username string, page, perPage int) ([]*Letter, int, error) {
	letters, total, err := s.letters.ListBySender(ctx, username, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list outbox")
	}
	return letters, total, nil
}

// Mentions lists notifications addressed to a username, newest first.
func (s *Service) Mentions(ctx context.Context, username string) ([]*AtMe, error) {
	atmes, err := s.atmes.ListByUsername(ctx, username)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list mentions")
	}
	return atmes, nil
}

// Collect bookmarks a post for a user. Collecting an already-collected post is
// a no-op; the post must exist.
func (s *Service) Collect(ctx context.Context, userID, postID int64) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetPost(txCtx, postID); err != nil {
			return err
		}
		err := s.collects.Create(txCtx, CollectPost{
			UserID:    userID,
			PostID:    postID,
			Timestamp: requestcontext.Now(txCtx),
		})
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bookmark")
		}
		return nil
	})
}

// Uncollect removes a bookmark. Removing a missing bookmark is a no-op.
func (s *Service) Uncollect(ctx context.Context, userID, postID int64) error {
	err := s.collects.Delete(ctx, userID, postID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete bookmark")
	}
	return nil
}

// IsCollected reports whether the user bookmarked the post.
func (s *Service) IsCollected(ctx context.Context, userID, postID int64) (bool, error) {
	return s.collects.Exists(ctx, userID, postID)
}

// ListCollected pages through a user's bookmarks, newest first.
func (s *Service) ListCollected(ctx context.Context, userID int64, page, perPage int) ([]CollectPost, int, error) {
	collects, total, err := s.collects.ListByUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bookmarks")
	}
	return collects, total, nil
}

// Counters bundles the derived per-user numbers the profile endpoints expose.
type Counters struct {
	Posts        int
	PrivatePosts int
	CommentsOnMe int
	Mentions     int
	Bookmarks    int
	LettersSent  int
	LettersGot   int
}

// CountersFor computes every derived counter for one user.
func (s *Service) CountersFor(ctx context.Context, userID int64, username string) (Counters, error) {
	var c Counters
	var err error
	if c.Posts, err = s.posts.CountByAuthor(ctx, userID); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count posts")
	}
	if c.PrivatePosts, err = s.posts.CountPrivateByAuthor(ctx, userID); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count private posts")
	}
	if c.CommentsOnMe, err = s.comments.CountOnAuthor(ctx, userID); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count comments")
	}
	if c.Mentions, err = s.atmes.CountByUsername(ctx, username); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count mentions")
	}
	if c.Bookmarks, err = s.collects.CountByUser(ctx, userID); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count bookmarks")
	}
	if c.LettersSent, err = s.letters.CountBySender(ctx, username); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sent letters")
	}
	if c.LettersGot, err = s.letters.CountByReceiver(ctx, username); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count received letters")
	}
	return c, nil
}

// PostCount returns the number of posts one author wrote.
func (s *Service) PostCount(ctx context.Context, authorID int64) (int, error) {
	return s.posts.CountByAuthor(ctx, authorID)
}

// CommentCount returns the number of comments on one post.
func (s *Service) CommentCount(ctx context.Context, postID int64) (int, error) {
	return s.comments.CountByPost(ctx, postID)
}

// NewCommentsOnAuthorSince counts comments landed on an author's posts after
// the given time, feeding the unread badge.
func (s *Service) NewCommentsOnAuthorSince(ctx context.Context, authorID int64, since time.Time) (int, error) {
	return s.comments.CountOnAuthorSince(ctx, authorID, since)
}

// NewMentionsSince counts mention notifications after the given time.
func (s *Service) NewMentionsSince(ctx context.Context, username string, since time.Time) (int, error) {
	return s.atmes.CountByUsernameSince(ctx, username, since)
}

// PostCountByTag counts posts tagged with tag. Discussion boards use this for
// their activity numbers.
func (s *Service) PostCountByTag(ctx context.Context, tag string) (int, error) {
	return s.posts.CountByTag(ctx, tag)
}
