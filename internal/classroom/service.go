package classroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"classhub/internal/audit"
	"classhub/internal/uploads"
	dErrors "classhub/pkg/domain-errors"
	"classhub/pkg/platform/sentinel"
	"classhub/pkg/platform/tx"
	"classhub/pkg/requestcontext"
)

// Renderer converts author markup to sanitized HTML.
type Renderer interface {
	ToHTML(src string) string
}

// DiscussionCounter reports how many discussion posts an offering's board
// holds. The forum feature provides the implementation.
type DiscussionCounter interface {
	DiscussionCount(ctx context.Context, newLessonID int64) (int, error)
}

// Service owns teaching profiles, lessons, term offerings and enrollments.
type Service struct {
	lessons     LessonStore
	offerings   NewLessonStore
	students    StudentStore
	teachers    TeacherStore
	files       LessonFileStore
	renderer    Renderer
	discussions DiscussionCounter
	tx          tx.Runner
	logger      *slog.Logger
	auditor     *audit.Publisher
}

type serviceConfig struct {
	tx      tx.Runner
	logger  *slog.Logger
	auditor *audit.Publisher
}

type Option func(*serviceConfig)

func WithTxRunner(runner tx.Runner) Option {
	return func(c *serviceConfig) { c.tx = runner }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

func NewService(
	lessons LessonStore,
	offerings NewLessonStore,
	students StudentStore,
	teachers TeacherStore,
	files LessonFileStore,
	renderer Renderer,
	discussions DiscussionCounter,
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
		lessons:     lessons,
		offerings:   offerings,
		students:    students,
		teachers:    teachers,
		files:       files,
		renderer:    renderer,
		discussions: discussions,
		tx:          cfg.tx,
		logger:      cfg.logger,
		auditor:     cfg.auditor,
	}
}

// CreateTeacherProfile opens a teaching profile for a user. One per user.
func (s *Service) CreateTeacherProfile(ctx context.Context, userID int64, school, field, pic, about string) (*Teacher, error) {
	teacher := &Teacher{
		School:    school,
		Field:     field,
		Pic:       pic,
		About:     about,
		AboutHTML: s.renderer.ToHTML(about),
		Timestamp: requestcontext.Now(ctx),
		UserID:    userID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.teachers.Create(txCtx, teacher); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "teaching profile already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create teaching profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: userID, Action: "teacher.created"})
	return teacher, nil
}

// GetTeacher fetches a teaching profile by ID.
func (s *Service) GetTeacher(ctx context.Context, id int64) (*Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "teacher not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load teacher")
	}
	return teacher, nil
}

// GetTeacherByUser fetches the teaching profile of a user.
func (s *Service) GetTeacherByUser(ctx context.Context, userID int64) (*Teacher, error) {
	teacher, err := s.teachers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "teacher not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load teacher")
	}
	return teacher, nil
}

// UpdateTeacherAbout replaces the profile text, regenerating its HTML.
func (s *Service) UpdateTeacherAbout(ctx context.Context, id int64, about string) (*Teacher, error) {
	var teacher *Teacher
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.GetTeacher(txCtx, id)
		if err != nil {
			return err
		}
		t.About = about
		t.AboutHTML = s.renderer.ToHTML(about)
		if err := s.teachers.Update(txCtx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update teacher")
		}
		teacher = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return teacher, nil
}

// LessonInput carries the teacher-supplied fields of a new lesson.
type LessonInput struct {
	Name  string
	About string
	Pic   string
	Files []Attachment
}

// CreateLesson stores a course with its description rendered to sanitized HTML.
func (s *Service) CreateLesson(ctx context.Context, teacherUserID int64, in LessonInput) (*Lesson, error) {
	if strings.TrimSpace(in.About) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "lesson description required")
	}
	lesson := &Lesson{
		Name:          in.Name,
		About:         in.About,
		AboutHTML:     s.renderer.ToHTML(in.About),
		Pic:           in.Pic,
		Files:         in.Files,
		Timestamp:     requestcontext.Now(ctx),
		TeacherUserID: teacherUserID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.lessons.Create(txCtx, lesson); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: teacherUserID, Action: "lesson.created", Subject: in.Name})
	return lesson, nil
}

// GetLesson fetches a lesson by ID.
func (s *Service) GetLesson(ctx context.Context, id int64) (*Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lesson not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lesson")
	}
	return lesson, nil
}

// UpdateLessonAbout replaces the course description, regenerating its HTML.
func (s *Service) UpdateLessonAbout(ctx context.Context, id int64, about string) (*Lesson, error) {
	if strings.TrimSpace(about) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "lesson description required")
	}
	var lesson *Lesson
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.GetLesson(txCtx, id)
		if err != nil {
			return err
		}
		l.About = about
		l.AboutHTML = s.renderer.ToHTML(about)
		if err := s.lessons.Update(txCtx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lesson")
		}
		lesson = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// ListLessonsByTeacher lists a teaching user's courses, newest first.
func (s *Service) ListLessonsByTeacher(ctx context.Context, teacherUserID int64) ([]*Lesson, error) {
	lessons, err := s.lessons.ListByTeacher(ctx, teacherUserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list lessons")
	}
	return lessons, nil
}

// OpenOffering opens a term offering of a lesson with a seating grid.
func (s *Service) OpenOffering(ctx context.Context, lessonID int64, year, season string, roomRows, roomColumns int, about string) (*NewLesson, error) {
	if roomRows < 1 || roomColumns < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "room grid must have positive dimensions")
	}
	offering := &NewLesson{
		Year:        year,
		Season:      season,
		RoomRows:    roomRows,
		RoomColumns: roomColumns,
		About:       about,
		Timestamp:   requestcontext.Now(ctx),
		LessonID:    lessonID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetLesson(txCtx, lessonID); err != nil {
			return err
		}
		if err := s.offerings.Create(txCtx, offering); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create offering")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offering, nil
}

// GetOffering fetches a term offering by ID.
func (s *Service) GetOffering(ctx context.Context, id int64) (*NewLesson, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "offering not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load offering")
	}
	return offering, nil
}

// ListOfferings lists a lesson's term offerings, newest first.
func (s *Service) ListOfferings(ctx context.Context, lessonID int64) ([]*NewLesson, error) {
	offerings, err := s.offerings.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list offerings")
	}
	return offerings, nil
}

// Enroll creates a Student record tying a user to an offering. A user enrolls
// at most once per offering.
func (s *Service) Enroll(ctx context.Context, userID, newLessonID int64) (*Student, error) {
	student := &Student{
		Timestamp:   requestcontext.Now(ctx),
		UserID:      userID,
		NewLessonID: newLessonID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetOffering(txCtx, newLessonID); err != nil {
			return err
		}
		if err := s.students.Create(txCtx, student); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "already enrolled")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: userID, Action: "student.enrolled"})
	return student, nil
}

// GetStudent fetches an enrollment by ID.
func (s *Service) GetStudent(ctx context.Context, id int64) (*Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	return student, nil
}

// GetEnrollment fetches a user's enrollment in one offering.
func (s *Service) GetEnrollment(ctx context.Context, userID, newLessonID int64) (*Student, error) {
	student, err := s.students.FindByUserAndOffering(ctx, userID, newLessonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	return student, nil
}

// ListStudents lists an offering's enrollments.
func (s *Service) ListStudents(ctx context.Context, newLessonID int64) ([]*Student, error) {
	students, err := s.students.ListByOffering(ctx, newLessonID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list students")
	}
	return students, nil
}

// SeatLabel renders a grid position as the stored seat string.
func SeatLabel(row, column int) string {
	return fmt.Sprintf("%d-%d", row, column)
}

// AssignSeat places a student on the offering's grid. The position must fall
// inside the grid, and no other student may hold it.
func (s *Service) AssignSeat(ctx context.Context, studentID int64, row, column int) (*Student, error) {
	var student *Student
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.GetStudent(txCtx, studentID)
		if err != nil {
			return err
		}
		offering, err := s.GetOffering(txCtx, st.NewLessonID)
		if err != nil {
			return err
		}
		if row < 1 || row > offering.RoomRows || column < 1 || column > offering.RoomColumns {
			return dErrors.New(dErrors.CodeValidation, "seat outside room grid")
		}
		seat := SeatLabel(row, column)
		taken, err := s.students.SeatTaken(txCtx, st.NewLessonID, seat, st.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check seat")
		}
		if taken {
			return dErrors.New(dErrors.CodeConflict, "seat already taken")
		}
		st.Seat = seat
		if err := s.students.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign seat")
		}
		student = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// SubmitExercise records a student's exercise, rendering the body to HTML.
func (s *Service) SubmitExercise(ctx context.Context, studentID int64, topic, body string, files []Attachment) (*Student, error) {
	if strings.TrimSpace(body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "exercise body required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "exercise topic required")
	}
	for _, f := range files {
		if !uploads.Allowed(f.Name) {
			return nil, dErrors.New(dErrors.CodeValidation, "file type not allowed: "+f.Name)
		}
	}
	var student *Student
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.GetStudent(txCtx, studentID)
		if err != nil {
			return err
		}
		st.Topic = topic
		st.Body = body
		st.BodyHTML = s.renderer.ToHTML(body)
		st.Files = files
		if err := s.students.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit exercise")
		}
		student = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{ActorID: student.UserID, Action: "exercise.submitted"})
	return student, nil
}

// Grade records the teacher's criticism and score for a submission.
func (s *Service) Grade(ctx context.Context, studentID int64, criticism string, score int) (*Student, error) {
	var student *Student
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.GetStudent(txCtx, studentID)
		if err != nil {
			return err
		}
		st.Criticism = criticism
		st.CriticismHTML = s.renderer.ToHTML(criticism)
		st.Score = &score
		if err := s.students.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grade submission")
		}
		student = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// RecordAbsence bumps the student's absence counter.
func (s *Service) RecordAbsence(ctx context.Context, studentID int64) (*Student, error) {
	var student *Student
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.GetStudent(txCtx, studentID)
		if err != nil {
			return err
		}
		st.Absence++
		if err := s.students.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record absence")
		}
		student = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// ConfirmStudent marks an enrollment approved by the teacher.
func (s *Service) ConfirmStudent(ctx context.Context, studentID int64) (*Student, error) {
	var student *Student
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.GetStudent(txCtx, studentID)
		if err != nil {
			return err
		}
		st.Confirmed = true
		if err := s.students.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm student")
		}
		student = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// AddLessonFile attaches course material to a lesson.
func (s *Service) AddLessonFile(ctx context.Context, lessonID int64, fileType, visibility, file, filename, about string) (*LessonFile, error) {
	if !uploads.Allowed(filename) {
		return nil, dErrors.New(dErrors.CodeValidation, "file type not allowed: "+filename)
	}
	lf := &LessonFile{
		FileType:   fileType,
		Visibility: visibility,
		File:       file,
		Filename:   filename,
		About:      about,
		Timestamp:  requestcontext.Now(ctx),
		LessonID:   lessonID,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetLesson(txCtx, lessonID); err != nil {
			return err
		}
		if err := s.files.Create(txCtx, lf); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add lesson file")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lf, nil
}

// ListLessonFiles lists a lesson's course material.
func (s *Service) ListLessonFiles(ctx context.Context, lessonID int64) ([]*LessonFile, error) {
	files, err := s.files.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list lesson files")
	}
	return files, nil
}

// OfferingStats bundles the derived numbers of one term offering.
type OfferingStats struct {
	Students   int
	Seated     int
	Submitted  int
	Discussion int
}

// OfferingStatsFor computes every derived counter for one offering.
func (s *Service) OfferingStatsFor(ctx context.Context, newLessonID int64) (OfferingStats, error) {
	var stats OfferingStats
	var err error
	if stats.Students, err = s.students.CountByOffering(ctx, newLessonID); err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count students")
	}
	if stats.Seated, err = s.students.CountSeated(ctx, newLessonID); err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count seats")
	}
	if stats.Submitted, err = s.students.CountSubmitted(ctx, newLessonID); err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count exercises")
	}
	if s.discussions != nil {
		if stats.Discussion, err = s.discussions.DiscussionCount(ctx, newLessonID); err != nil {
			return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count discussion")
		}
	}
	return stats, nil
}

// LessonStats bundles the derived numbers of one lesson, aggregated across its
// offerings.
type LessonStats struct {
	Offerings  int
	Files      int
	Students   int
	Discussion int
}

// LessonStatsFor computes the lesson-level aggregates.
func (s *Service) LessonStatsFor(ctx context.Context, lessonID int64) (LessonStats, error) {
	var stats LessonStats
	var err error
	if stats.Offerings, err = s.offerings.CountByLesson(ctx, lessonID); err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count offerings")
	}
	if stats.Files, err = s.files.CountByLesson(ctx, lessonID); err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count files")
	}
	offerings, err := s.offerings.ListByLesson(ctx, lessonID)
	if err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list offerings")
	}
	for _, o := range offerings {
		n, err := s.students.CountByOffering(ctx, o.ID)
		if err != nil {
			return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count students")
		}
		stats.Students += n
		if s.discussions != nil {
			d, err := s.discussions.DiscussionCount(ctx, o.ID)
			if err != nil {
				return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count discussion")
			}
			stats.Discussion += d
		}
	}
	return stats, nil
}

// TeacherStats bundles the derived numbers of one teaching user, aggregated
// across every owned lesson.
type TeacherStats struct {
	Lessons    int
	Files      int
	Students   int
	Discussion int
}

// TeacherStatsFor computes the teacher-level aggregates.
func (s *Service) TeacherStatsFor(ctx context.Context, teacherUserID int64) (TeacherStats, error) {
	var stats TeacherStats
	lessons, err := s.lessons.ListByTeacher(ctx, teacherUserID)
	if err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list lessons")
	}
	stats.Lessons = len(lessons)
	for _, l := range lessons {
		ls, err := s.LessonStatsFor(ctx, l.ID)
		if err != nil {
			return stats, err
		}
		stats.Files += ls.Files
		stats.Students += ls.Students
		stats.Discussion += ls.Discussion
	}
	return stats, nil
}
