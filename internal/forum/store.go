package forum

import (
	"context"
	"fmt"
	"time"
)

// DiscussionTag is the tag pattern binding posts to a lesson offering's
// discussion thread.
func DiscussionTag(newLessonID int64) string {
	return fmt.Sprintf("newlessons_%d", newLessonID)
}

// Paginated list queries take a 1-based page and a page size and return the
// page's items plus the total match count. Pages past the end return an empty
// slice, not an error.

type PostStore interface {
	Create(ctx context.Context, post *Post) error
	FindByID(ctx context.Context, id int64) (*Post, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id int64) error
	// ListByAuthor returns the author's posts, newest first.
	ListByAuthor(ctx context.Context, authorID int64, page, perPage int) ([]*Post, int, error)
	// ListByAuthors returns posts by any of the given authors, newest first.
	// Feeds the timeline through the follow graph.
	ListByAuthors(ctx context.Context, authorIDs []int64, page, perPage int) ([]*Post, int, error)
	// ListByTag returns discussion posts for an exact tag, newest first.
	ListByTag(ctx context.Context, tag string, page, perPage int) ([]*Post, int, error)
	CountByAuthor(ctx context.Context, authorID int64) (int, error)
	CountByTag(ctx context.Context, tag string) (int, error)
	CountPrivateByAuthor(ctx context.Context, authorID int64) (int, error)
}

type CommentStore interface {
	Create(ctx context.Context, comment *Comment) error
	FindByID(ctx context.Context, id int64) (*Comment, error)
	Update(ctx context.Context, comment *Comment) error
	Delete(ctx context.Context, id int64) error
	// ListByPost returns a post's comments, oldest first.
	ListByPost(ctx context.Context, postID int64, page, perPage int) ([]*Comment, int, error)
	CountByPost(ctx context.Context, postID int64) (int, error)
	// CountOnAuthor counts comments across all posts authored by the user.
	CountOnAuthor(ctx context.Context, authorID int64) (int, error)
	// CountOnAuthorSince counts only comments newer than since; feeds the
	// unread badge.
	CountOnAuthorSince(ctx context.Context, authorID int64, since time.Time) (int, error)
}

type LetterStore interface {
	Create(ctx context.Context, letter *Letter) error
	FindByID(ctx context.Context, id int64) (*Letter, error)
	Delete(ctx context.Context, id int64) error
	ListBySender(ctx context.Context, sender string, page, perPage int) ([]*Letter, int, error)
	ListByReceiver(ctx context.Context, receiver string, page, perPage int) ([]*Letter, int, error)
	CountBySender(ctx context.Context, sender string) (int, error)
	CountByReceiver(ctx context.Context, receiver string) (int, error)
}

type AtMeStore interface {
	Create(ctx context.Context, atme *AtMe) error
	ListByUsername(ctx context.Context, username string) ([]*AtMe, error)
	CountByUsername(ctx context.Context, username string) (int, error)
	CountByUsernameSince(ctx context.Context, username string, since time.Time) (int, error)
}

type CollectStore interface {
	// Create inserts a bookmark; duplicates return sentinel.ErrConflict.
	Create(ctx context.Context, collect CollectPost) error
	// Delete removes a bookmark; missing edges return sentinel.ErrNotFound.
	Delete(ctx context.Context, userID, postID int64) error
	Exists(ctx context.Context, userID, postID int64) (bool, error)
	// ListByUser returns bookmarks newest first.
	ListByUser(ctx context.Context, userID int64, page, perPage int) ([]CollectPost, int, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}
