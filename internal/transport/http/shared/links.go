package shared

import (
	"fmt"
	"strings"
)

// Links builds the canonical external URLs embedded in JSON views.
type Links struct {
	base string
}

// NewLinks trims a trailing slash from the external base URL.
func NewLinks(baseURL string) *Links {
	return &Links{base: strings.TrimRight(baseURL, "/")}
}

func (l *Links) User(id int64) string    { return fmt.Sprintf("%s/api/v1/users/%d", l.base, id) }
func (l *Links) Post(id int64) string    { return fmt.Sprintf("%s/api/v1/posts/%d", l.base, id) }
func (l *Links) Comment(id int64) string { return fmt.Sprintf("%s/api/v1/comments/%d", l.base, id) }
func (l *Links) Letter(id int64) string  { return fmt.Sprintf("%s/api/v1/letters/%d", l.base, id) }
func (l *Links) Student(id int64) string { return fmt.Sprintf("%s/api/v1/students/%d", l.base, id) }
func (l *Links) Lesson(id int64) string  { return fmt.Sprintf("%s/api/v1/lessons/%d", l.base, id) }
func (l *Links) Teacher(id int64) string { return fmt.Sprintf("%s/api/v1/teachers/%d", l.base, id) }

func (l *Links) UserPosts(id int64) string {
	return fmt.Sprintf("%s/api/v1/users/%d/posts/", l.base, id)
}

func (l *Links) UserTimeline(id int64) string {
	return fmt.Sprintf("%s/api/v1/users/%d/timeline/", l.base, id)
}

func (l *Links) PostComments(id int64) string {
	return fmt.Sprintf("%s/api/v1/posts/%d/comments/", l.base, id)
}

func (l *Links) Inbox() string  { return l.base + "/api/v1/letters/inbox/" }
func (l *Links) Outbox() string { return l.base + "/api/v1/letters/outbox/" }

// Page appends a page query parameter to a collection URL.
func (l *Links) Page(collectionURL string, page int) string {
	return fmt.Sprintf("%s?page=%d", collectionURL, page)
}
