package forum

import "time"

// Attachment is a stored file key paired with its user-facing name.
type Attachment struct {
	File string
	Name string
}

// Post is author-owned content. BodyHTML is derived from Body by the markup
// renderer on every write and is never set independently. Tag associates a
// post with a lesson-discussion thread (see DiscussionTag).
type Post struct {
	ID        int64
	Topic     string
	Body      string
	BodyHTML  string
	Private   bool
	Tag       string
	Timestamp time.Time
	AuthorID  int64
	Images    []string
	Files     []Attachment
}

// Comment belongs to a post and an author. Disabled comments stay stored but
// are hidden by moderation.
type Comment struct {
	ID        int64
	Body      string
	BodyHTML  string
	Disabled  bool
	Timestamp time.Time
	AuthorID  int64
	PostID    int64
}

// Letter is a private message. Sender and receiver are referenced by username,
// matching the legacy data model.
type Letter struct {
	ID           int64
	Topic        string
	Body         string
	BodyHTML     string
	Timestamp    time.Time
	SenderName   string
	ReceiverName string
}

// AtMe is an @-mention notification: a comment mentioned Username.
type AtMe struct {
	ID           int64
	Timestamp    time.Time
	CommentID    int64
	FromUsername string
	Username     string
}

// CollectPost is a bookmark edge; (UserID, PostID) is unique.
type CollectPost struct {
	UserID    int64
	PostID    int64
	Timestamp time.Time
}
