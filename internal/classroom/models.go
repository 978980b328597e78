package classroom

import "time"

// Attachment is an uploaded file plus the name it was uploaded under.
type Attachment struct {
	File string
	Name string
}

// Lesson is a course owned by a teaching user. Offerings of the course per
// term live in NewLesson.
type Lesson struct {
	ID            int64
	Name          string
	About         string
	AboutHTML     string
	Pic           string
	Files         []Attachment
	Timestamp     time.Time
	TeacherUserID int64
}

// NewLesson is a term offering of a lesson with a seating grid.
type NewLesson struct {
	ID          int64
	Year        string
	Season      string
	RoomRows    int
	RoomColumns int
	About       string
	Timestamp   time.Time
	LessonID    int64
}

// Student is one user's enrollment in an offering: seat, attendance, the
// submitted exercise and the teacher's grading of it.
type Student struct {
	ID            int64
	Seat          string
	Absence       int
	Confirmed     bool
	Topic         string
	Body          string
	BodyHTML      string
	Files         []Attachment
	Criticism     string
	CriticismHTML string
	Score         *int
	Timestamp     time.Time
	UserID        int64
	NewLessonID   int64
}

// Teacher is a user's teaching profile.
type Teacher struct {
	ID        int64
	School    string
	Field     string
	Pic       string
	About     string
	AboutHTML string
	Timestamp time.Time
	UserID    int64
}

// LessonFile is course material attached to a lesson.
type LessonFile struct {
	ID         int64
	FileType   string
	Visibility string
	File       string
	Filename   string
	About      string
	Timestamp  time.Time
	LessonID   int64
}
