package classroom

import "context"

// LessonStore persists lessons.
type LessonStore interface {
	Create(ctx context.Context, lesson *Lesson) error
	FindByID(ctx context.Context, id int64) (*Lesson, error)
	Update(ctx context.Context, lesson *Lesson) error
	Delete(ctx context.Context, id int64) error
	// ListByTeacher returns a teaching user's lessons, newest first.
	ListByTeacher(ctx context.Context, teacherUserID int64) ([]*Lesson, error)
	CountByTeacher(ctx context.Context, teacherUserID int64) (int, error)
}

// NewLessonStore persists term offerings.
type NewLessonStore interface {
	Create(ctx context.Context, offering *NewLesson) error
	FindByID(ctx context.Context, id int64) (*NewLesson, error)
	Update(ctx context.Context, offering *NewLesson) error
	Delete(ctx context.Context, id int64) error
	ListByLesson(ctx context.Context, lessonID int64) ([]*NewLesson, error)
	CountByLesson(ctx context.Context, lessonID int64) (int, error)
}

// StudentStore persists enrollments.
type StudentStore interface {
	Create(ctx context.Context, student *Student) error
	FindByID(ctx context.Context, id int64) (*Student, error)
	Update(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int64) error
	// FindByUserAndOffering locates a user's enrollment in one offering.
	FindByUserAndOffering(ctx context.Context, userID, newLessonID int64) (*Student, error)
	ListByOffering(ctx context.Context, newLessonID int64) ([]*Student, error)
	CountByOffering(ctx context.Context, newLessonID int64) (int, error)
	// CountSeated counts enrollments holding a seat.
	CountSeated(ctx context.Context, newLessonID int64) (int, error)
	// CountSubmitted counts enrollments with a submitted exercise.
	CountSubmitted(ctx context.Context, newLessonID int64) (int, error)
	// SeatTaken reports whether another enrollment in the offering already
	// holds the seat.
	SeatTaken(ctx context.Context, newLessonID int64, seat string, excludeID int64) (bool, error)
}

// TeacherStore persists teaching profiles.
type TeacherStore interface {
	Create(ctx context.Context, teacher *Teacher) error
	FindByID(ctx context.Context, id int64) (*Teacher, error)
	FindByUserID(ctx context.Context, userID int64) (*Teacher, error)
	Update(ctx context.Context, teacher *Teacher) error
	Delete(ctx context.Context, id int64) error
}

// LessonFileStore persists course material.
type LessonFileStore interface {
	Create(ctx context.Context, file *LessonFile) error
	FindByID(ctx context.Context, id int64) (*LessonFile, error)
	Delete(ctx context.Context, id int64) error
	ListByLesson(ctx context.Context, lessonID int64) ([]*LessonFile, error)
	CountByLesson(ctx context.Context, lessonID int64) (int, error)
}
