package httptransport

import (
	"time"

	"classhub/internal/accounts"
	"classhub/internal/classroom"
	"classhub/internal/forum"
	"classhub/internal/transport/http/shared"
	dErrors "classhub/pkg/domain-errors"
)

// UserView is the public JSON shape of a user.
type UserView struct {
	URL           string    `json:"url"`
	Username      string    `json:"username"`
	MemberSince   time.Time `json:"member_since"`
	LastSeen      time.Time `json:"last_seen"`
	Posts         string    `json:"posts"`
	FollowedPosts string    `json:"followed_posts"`
	PostCount     int       `json:"post_count"`
}

func userView(links *shared.Links, u *accounts.User, postCount int) UserView {
	return UserView{
		URL:           links.User(u.ID),
		Username:      u.Username,
		MemberSince:   u.MemberSince,
		LastSeen:      u.LastSeen,
		Posts:         links.UserPosts(u.ID),
		FollowedPosts: links.UserTimeline(u.ID),
		PostCount:     postCount,
	}
}

// PostView is the public JSON shape of a post.
type PostView struct {
	URL          string    `json:"url"`
	Topic        string    `json:"topic"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"body_html"`
	Timestamp    time.Time `json:"timestamp"`
	Author       string    `json:"author"`
	Comments     string    `json:"comments"`
	CommentCount int       `json:"comment_count"`
}

func postView(links *shared.Links, p *forum.Post, commentCount int) PostView {
	return PostView{
		URL:          links.Post(p.ID),
		Topic:        p.Topic,
		Body:         p.Body,
		BodyHTML:     p.BodyHTML,
		Timestamp:    p.Timestamp,
		Author:       links.User(p.AuthorID),
		Comments:     links.PostComments(p.ID),
		CommentCount: commentCount,
	}
}

// CommentView is the public JSON shape of a comment.
type CommentView struct {
	URL       string    `json:"url"`
	Post      string    `json:"post"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

func commentView(links *shared.Links, c *forum.Comment) CommentView {
	return CommentView{
		URL:       links.Comment(c.ID),
		Post:      links.Post(c.PostID),
		Body:      c.Body,
		BodyHTML:  c.BodyHTML,
		Timestamp: c.Timestamp,
		Author:    links.User(c.AuthorID),
	}
}

// LetterView is the public JSON shape of a private letter.
type LetterView struct {
	URL       string    `json:"url"`
	Topic     string    `json:"topic"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
}

func letterView(links *shared.Links, l *forum.Letter) LetterView {
	return LetterView{
		URL:       links.Letter(l.ID),
		Topic:     l.Topic,
		Body:      l.Body,
		BodyHTML:  l.BodyHTML,
		Timestamp: l.Timestamp,
		Sender:    l.SenderName,
		Receiver:  l.ReceiverName,
	}
}

// StudentView is the public JSON shape of an enrollment.
type StudentView struct {
	URL           string    `json:"url"`
	Score         *int      `json:"score"`
	Body          string    `json:"body"`
	BodyHTML      string    `json:"body_html"`
	Criticism     string    `json:"criticism"`
	CriticismHTML string    `json:"criticism_html"`
	Timestamp     time.Time `json:"timestamp"`
	Student       string    `json:"student"`
}

func studentView(links *shared.Links, st *classroom.Student) StudentView {
	return StudentView{
		URL:           links.Student(st.ID),
		Score:         st.Score,
		Body:          st.Body,
		BodyHTML:      st.BodyHTML,
		Criticism:     st.Criticism,
		CriticismHTML: st.CriticismHTML,
		Timestamp:     st.Timestamp,
		Student:       links.User(st.UserID),
	}
}

// LessonView is the public JSON shape of a course.
type LessonView struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	About     string    `json:"about"`
	AboutHTML string    `json:"about_html"`
	Timestamp time.Time `json:"timestamp"`
	Teacher   string    `json:"teacher"`
}

func lessonView(links *shared.Links, l *classroom.Lesson) LessonView {
	return LessonView{
		URL:       links.Lesson(l.ID),
		Name:      l.Name,
		About:     l.About,
		AboutHTML: l.AboutHTML,
		Timestamp: l.Timestamp,
		Teacher:   links.User(l.TeacherUserID),
	}
}

// TeacherView is the public JSON shape of a teaching profile.
type TeacherView struct {
	URL       string    `json:"url"`
	School    string    `json:"school"`
	Field     string    `json:"field"`
	About     string    `json:"about"`
	AboutHTML string    `json:"about_html"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

func teacherView(links *shared.Links, t *classroom.Teacher) TeacherView {
	return TeacherView{
		URL:       links.Teacher(t.ID),
		School:    t.School,
		Field:     t.Field,
		About:     t.About,
		AboutHTML: t.AboutHTML,
		Timestamp: t.Timestamp,
		User:      links.User(t.UserID),
	}
}

// PostRequest is the inbound shape for creating a post.
type PostRequest struct {
	Topic   string `json:"topic"`
	Body    string `json:"body"`
	Private bool   `json:"private"`
	Tag     string `json:"tag"`
}

// Validate enforces the required-field contract for client-submitted posts.
func (r PostRequest) Validate() error {
	if r.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "post body required")
	}
	return nil
}

// CommentRequest is the inbound shape for creating a comment.
type CommentRequest struct {
	Body string `json:"body"`
}

func (r CommentRequest) Validate() error {
	if r.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "comment body required")
	}
	return nil
}

// LetterRequest is the inbound shape for sending a letter.
type LetterRequest struct {
	Topic    string `json:"topic"`
	Body     string `json:"body"`
	Receiver string `json:"receiver"`
}

func (r LetterRequest) Validate() error {
	if r.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "letter body required")
	}
	return nil
}
