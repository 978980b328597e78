package classroom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classhub/internal/markup"
	dErrors "classhub/pkg/domain-errors"
)

type fakeDiscussions struct {
	counts map[int64]int
}

func (d *fakeDiscussions) DiscussionCount(_ context.Context, newLessonID int64) (int, error) {
	return d.counts[newLessonID], nil
}

type classroomFixture struct {
	svc         *Service
	discussions *fakeDiscussions
}

func newFixture(t *testing.T) *classroomFixture {
	t.Helper()
	discussions := &fakeDiscussions{counts: map[int64]int{}}
	svc := NewService(
		NewInMemoryLessonStore(),
		NewInMemoryNewLessonStore(),
		NewInMemoryStudentStore(),
		NewInMemoryTeacherStore(),
		NewInMemoryLessonFileStore(),
		markup.NewRenderer(),
		discussions,
	)
	return &classroomFixture{svc: svc, discussions: discussions}
}

func (f *classroomFixture) openOffering(t *testing.T, rows, cols int) *NewLesson {
	t.Helper()
	ctx := context.Background()
	lesson, err := f.svc.CreateLesson(ctx, 1, LessonInput{Name: "Algebra", About: "intro"})
	require.NoError(t, err)
	offering, err := f.svc.OpenOffering(ctx, lesson.ID, "2024", "fall", rows, cols, "first term")
	require.NoError(t, err)
	return offering
}

func TestCreateLessonRendersHTML(t *testing.T) {
	f := newFixture(t)

	lesson, err := f.svc.CreateLesson(context.Background(), 1, LessonInput{Name: "Algebra", About: "**basics**"})
	require.NoError(t, err)
	assert.Equal(t, "<p><strong>basics</strong></p>", lesson.AboutHTML)
}

func TestCreateLessonRequiresDescription(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLesson(context.Background(), 1, LessonInput{Name: "Algebra"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "lesson description required", dErrors.MessageOf(err))
}

func TestOpenOfferingValidatesGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson, err := f.svc.CreateLesson(ctx, 1, LessonInput{Name: "Algebra", About: "intro"})
	require.NoError(t, err)

	_, err = f.svc.OpenOffering(ctx, lesson.ID, "2024", "fall", 0, 5, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.OpenOffering(ctx, 999, "2024", "fall", 4, 5, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestEnrollOncePerOffering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offering := f.openOffering(t, 4, 5)

	student, err := f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)
	assert.Empty(t, student.Seat, "seat starts unassigned")
	assert.False(t, student.Confirmed)

	_, err = f.svc.Enroll(ctx, 10, offering.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestAssignSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offering := f.openOffering(t, 2, 3)

	first, err := f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)
	second, err := f.svc.Enroll(ctx, 11, offering.ID)
	require.NoError(t, err)

	seated, err := f.svc.AssignSeat(ctx, first.ID, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "2-3", seated.Seat)

	_, err = f.svc.AssignSeat(ctx, second.ID, 2, 3)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, "seat already taken", dErrors.MessageOf(err))

	_, err = f.svc.AssignSeat(ctx, second.ID, 3, 1)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "seat outside room grid", dErrors.MessageOf(err))

	// Moving to another seat frees nothing else but is allowed.
	moved, err := f.svc.AssignSeat(ctx, first.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "1-1", moved.Seat)
}

func TestSubmitAndGradeExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offering := f.openOffering(t, 2, 2)
	student, err := f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitExercise(ctx, student.ID, "hw1", "", nil)
	require.Error(t, err)
	assert.Equal(t, "exercise body required", dErrors.MessageOf(err))

	submitted, err := f.svc.SubmitExercise(ctx, student.ID, "hw1", "my *answer*", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>my <em>answer</em></p>", submitted.BodyHTML)
	assert.Nil(t, submitted.Score, "ungraded submission has no score")

	graded, err := f.svc.Grade(ctx, student.ID, "well done", 95)
	require.NoError(t, err)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 95, *graded.Score)
	assert.Equal(t, "<p>well done</p>", graded.CriticismHTML)
}

func TestRecordAbsenceAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offering := f.openOffering(t, 2, 2)
	student, err := f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)

	st, err := f.svc.RecordAbsence(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Absence)
	st, err = f.svc.RecordAbsence(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Absence)

	st, err = f.svc.ConfirmStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
}

func TestOfferingStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offering := f.openOffering(t, 2, 2)

	first, err := f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, 11, offering.ID)
	require.NoError(t, err)

	_, err = f.svc.AssignSeat(ctx, first.ID, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.SubmitExercise(ctx, first.ID, "hw1", "answer", nil)
	require.NoError(t, err)

	f.discussions.counts[offering.ID] = 3

	stats, err := f.svc.OfferingStatsFor(ctx, offering.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Students)
	assert.Equal(t, 1, stats.Seated)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 3, stats.Discussion)
}

func TestTeacherStatsAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.svc.CreateLesson(ctx, 1, LessonInput{Name: "Algebra", About: "intro"})
	require.NoError(t, err)
	other, err := f.svc.CreateLesson(ctx, 1, LessonInput{Name: "Geometry", About: "shapes"})
	require.NoError(t, err)

	offering, err := f.svc.OpenOffering(ctx, lesson.ID, "2024", "fall", 2, 2, "")
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, 10, offering.ID)
	require.NoError(t, err)
	_, err = f.svc.AddLessonFile(ctx, other.ID, "pdf", "public", "uploads/notes.pdf", "notes.pdf", "")
	require.NoError(t, err)
	f.discussions.counts[offering.ID] = 2

	stats, err := f.svc.TeacherStatsFor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Lessons)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Students)
	assert.Equal(t, 2, stats.Discussion)
}

func TestAddLessonFileRejectsUnknownExtension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.svc.CreateLesson(ctx, 1, LessonInput{Name: "Algebra", About: "intro"})
	require.NoError(t, err)

	_, err = f.svc.AddLessonFile(ctx, lesson.ID, "bin", "public", "uploads/tool.exe", "tool.exe", "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestTeacherProfileUniquePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	teacher, err := f.svc.CreateTeacherProfile(ctx, 1, "MIT", "math", "", "I teach *math*")
	require.NoError(t, err)
	assert.Equal(t, "<p>I teach <em>math</em></p>", teacher.AboutHTML)

	_, err = f.svc.CreateTeacherProfile(ctx, 1, "MIT", "math", "", "again")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	found, err := f.svc.GetTeacherByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, found.ID)
}
