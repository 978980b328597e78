package classroom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"classhub/pkg/platform/sentinel"
	"classhub/pkg/platform/tx"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func encodeAttachments(files []Attachment) ([]byte, error) {
	if files == nil {
		files = []Attachment{}
	}
	return json.Marshal(files)
}

const lessonColumns = `id, name, about, about_html, pic, files, created_at, teacher_user_id`

type PostgresLessonStore struct {
	db *sql.DB
}

func NewPostgresLessonStore(db *sql.DB) *PostgresLessonStore {
	return &PostgresLessonStore{db: db}
}

func scanLesson(row interface{ Scan(...any) error }) (*Lesson, error) {
	var l Lesson
	var filesJSON []byte
	if err := row.Scan(
		&l.ID, &l.Name, &l.About, &l.AboutHTML, &l.Pic, &filesJSON,
		&l.Timestamp, &l.TeacherUserID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lesson: %w", err)
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &l.Files); err != nil {
			return nil, fmt.Errorf("decode lesson files: %w", err)
		}
	}
	return &l, nil
}

func (s *PostgresLessonStore) Create(ctx context.Context, lesson *Lesson) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeAttachments(lesson.Files)
	if err != nil {
		return fmt.Errorf("encode lesson files: %w", err)
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO lessons (name, about, about_html, pic, files, created_at, teacher_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		lesson.Name, lesson.About, lesson.AboutHTML, lesson.Pic, files,
		lesson.Timestamp, lesson.TeacherUserID,
	).Scan(&lesson.ID)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (s *PostgresLessonStore) FindByID(ctx context.Context, id int64) (*Lesson, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanLesson(q.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id))
}

func (s *PostgresLessonStore) Update(ctx context.Context, lesson *Lesson) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeAttachments(lesson.Files)
	if err != nil {
		return fmt.Errorf("encode lesson files: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE lessons
		SET name = $2, about = $3, about_html = $4, pic = $5, files = $6
		WHERE id = $1`,
		lesson.ID, lesson.Name, lesson.About, lesson.AboutHTML, lesson.Pic, files,
	)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresLessonStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresLessonStore) ListByTeacher(ctx context.Context, teacherUserID int64) ([]*Lesson, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_user_id = $1
		ORDER BY created_at DESC, id DESC`, teacherUserID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	lessons := []*Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

func (s *PostgresLessonStore) CountByTeacher(ctx context.Context, teacherUserID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessons WHERE teacher_user_id = $1`, teacherUserID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return n, nil
}

const newLessonColumns = `id, year, season, room_rows, room_columns, about, created_at, lesson_id`

type PostgresNewLessonStore struct {
	db *sql.DB
}

func NewPostgresNewLessonStore(db *sql.DB) *PostgresNewLessonStore {
	return &PostgresNewLessonStore{db: db}
}

func scanNewLesson(row interface{ Scan(...any) error }) (*NewLesson, error) {
	var o NewLesson
	if err := row.Scan(
		&o.ID, &o.Year, &o.Season, &o.RoomRows, &o.RoomColumns, &o.About,
		&o.Timestamp, &o.LessonID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan offering: %w", err)
	}
	return &o, nil
}

func (s *PostgresNewLessonStore) Create(ctx context.Context, offering *NewLesson) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO newlessons (year, season, room_rows, room_columns, about, created_at, lesson_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		offering.Year, offering.Season, offering.RoomRows, offering.RoomColumns,
		offering.About, offering.Timestamp, offering.LessonID,
	).Scan(&offering.ID)
	if err != nil {
		return fmt.Errorf("insert offering: %w", err)
	}
	return nil
}

func (s *PostgresNewLessonStore) FindByID(ctx context.Context, id int64) (*NewLesson, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanNewLesson(q.QueryRowContext(ctx,
		`SELECT `+newLessonColumns+` FROM newlessons WHERE id = $1`, id))
}

func (s *PostgresNewLessonStore) Update(ctx context.Context, offering *NewLesson) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE newlessons
		SET year = $2, season = $3, room_rows = $4, room_columns = $5, about = $6
		WHERE id = $1`,
		offering.ID, offering.Year, offering.Season, offering.RoomRows,
		offering.RoomColumns, offering.About,
	)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresNewLessonStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM newlessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresNewLessonStore) ListByLesson(ctx context.Context, lessonID int64) ([]*NewLesson, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+newLessonColumns+` FROM newlessons
		WHERE lesson_id = $1
		ORDER BY created_at DESC, id DESC`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()
	offerings := []*NewLesson{}
	for rows.Next() {
		o, err := scanNewLesson(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return offerings, nil
}

func (s *PostgresNewLessonStore) CountByLesson(ctx context.Context, lessonID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM newlessons WHERE lesson_id = $1`, lessonID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count offerings: %w", err)
	}
	return n, nil
}

const studentColumns = `id, seat, absence, confirmed, topic, body, body_html, files,
	criticism, criticism_html, score, created_at, user_id, newlesson_id`

type PostgresStudentStore struct {
	db *sql.DB
}

func NewPostgresStudentStore(db *sql.DB) *PostgresStudentStore {
	return &PostgresStudentStore{db: db}
}

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	var st Student
	var filesJSON []byte
	var score sql.NullInt64
	if err := row.Scan(
		&st.ID, &st.Seat, &st.Absence, &st.Confirmed, &st.Topic, &st.Body,
		&st.BodyHTML, &filesJSON, &st.Criticism, &st.CriticismHTML, &score,
		&st.Timestamp, &st.UserID, &st.NewLessonID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &st.Files); err != nil {
			return nil, fmt.Errorf("decode student files: %w", err)
		}
	}
	if score.Valid {
		v := int(score.Int64)
		st.Score = &v
	}
	return &st, nil
}

func nullScore(score *int) sql.NullInt64 {
	if score == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*score), Valid: true}
}

func (s *PostgresStudentStore) Create(ctx context.Context, student *Student) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeAttachments(student.Files)
	if err != nil {
		return fmt.Errorf("encode student files: %w", err)
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO students (seat, absence, confirmed, topic, body, body_html, files,
			criticism, criticism_html, score, created_at, user_id, newlesson_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		student.Seat, student.Absence, student.Confirmed, student.Topic,
		student.Body, student.BodyHTML, files, student.Criticism,
		student.CriticismHTML, nullScore(student.Score), student.Timestamp,
		student.UserID, student.NewLessonID,
	).Scan(&student.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (s *PostgresStudentStore) FindByID(ctx context.Context, id int64) (*Student, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanStudent(q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

func (s *PostgresStudentStore) Update(ctx context.Context, student *Student) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeAttachments(student.Files)
	if err != nil {
		return fmt.Errorf("encode student files: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE students
		SET seat = $2, absence = $3, confirmed = $4, topic = $5, body = $6,
			body_html = $7, files = $8, criticism = $9, criticism_html = $10, score = $11
		WHERE id = $1`,
		student.ID, student.Seat, student.Absence, student.Confirmed,
		student.Topic, student.Body, student.BodyHTML, files,
		student.Criticism, student.CriticismHTML, nullScore(student.Score),
	)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStudentStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStudentStore) FindByUserAndOffering(ctx context.Context, userID, newLessonID int64) (*Student, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanStudent(q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE user_id = $1 AND newlesson_id = $2`,
		userID, newLessonID))
}

func (s *PostgresStudentStore) ListByOffering(ctx context.Context, newLessonID int64) ([]*Student, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE newlesson_id = $1
		ORDER BY id ASC`, newLessonID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()
	students := []*Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (s *PostgresStudentStore) countWhere(ctx context.Context, where string, newLessonID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE newlesson_id = $1`+where, newLessonID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

func (s *PostgresStudentStore) CountByOffering(ctx context.Context, newLessonID int64) (int, error) {
	return s.countWhere(ctx, "", newLessonID)
}

func (s *PostgresStudentStore) CountSeated(ctx context.Context, newLessonID int64) (int, error) {
	return s.countWhere(ctx, ` AND seat <> ''`, newLessonID)
}

func (s *PostgresStudentStore) CountSubmitted(ctx context.Context, newLessonID int64) (int, error) {
	return s.countWhere(ctx, ` AND topic <> ''`, newLessonID)
}

func (s *PostgresStudentStore) SeatTaken(ctx context.Context, newLessonID int64, seat string, excludeID int64) (bool, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var taken bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM students
			WHERE newlesson_id = $1 AND seat = $2 AND id <> $3
		)`, newLessonID, seat, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("seat taken: %w", err)
	}
	return taken, nil
}

const teacherColumns = `id, school, field, pic, about, about_html, created_at, user_id`

type PostgresTeacherStore struct {
	db *sql.DB
}

func NewPostgresTeacherStore(db *sql.DB) *PostgresTeacherStore {
	return &PostgresTeacherStore{db: db}
}

func scanTeacher(row interface{ Scan(...any) error }) (*Teacher, error) {
	var t Teacher
	if err := row.Scan(
		&t.ID, &t.School, &t.Field, &t.Pic, &t.About, &t.AboutHTML,
		&t.Timestamp, &t.UserID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan teacher: %w", err)
	}
	return &t, nil
}

func (s *PostgresTeacherStore) Create(ctx context.Context, teacher *Teacher) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO teachers (school, field, pic, about, about_html, created_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		teacher.School, teacher.Field, teacher.Pic, teacher.About,
		teacher.AboutHTML, teacher.Timestamp, teacher.UserID,
	).Scan(&teacher.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert teacher: %w", err)
	}
	return nil
}

func (s *PostgresTeacherStore) FindByID(ctx context.Context, id int64) (*Teacher, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanTeacher(q.QueryRowContext(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
}

func (s *PostgresTeacherStore) FindByUserID(ctx context.Context, userID int64) (*Teacher, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanTeacher(q.QueryRowContext(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE user_id = $1`, userID))
}

func (s *PostgresTeacherStore) Update(ctx context.Context, teacher *Teacher) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE teachers
		SET school = $2, field = $3, pic = $4, about = $5, about_html = $6
		WHERE id = $1`,
		teacher.ID, teacher.School, teacher.Field, teacher.Pic,
		teacher.About, teacher.AboutHTML,
	)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresTeacherStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return requireRowAffected(res)
}

const lessonFileColumns = `id, filetype, visibility, file, filename, about, created_at, lesson_id`

type PostgresLessonFileStore struct {
	db *sql.DB
}

func NewPostgresLessonFileStore(db *sql.DB) *PostgresLessonFileStore {
	return &PostgresLessonFileStore{db: db}
}

func scanLessonFile(row interface{ Scan(...any) error }) (*LessonFile, error) {
	var f LessonFile
	if err := row.Scan(
		&f.ID, &f.FileType, &f.Visibility, &f.File, &f.Filename, &f.About,
		&f.Timestamp, &f.LessonID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lesson file: %w", err)
	}
	return &f, nil
}

func (s *PostgresLessonFileStore) Create(ctx context.Context, file *LessonFile) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO lessonfiles (filetype, visibility, file, filename, about, created_at, lesson_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		file.FileType, file.Visibility, file.File, file.Filename, file.About,
		file.Timestamp, file.LessonID,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("insert lesson file: %w", err)
	}
	return nil
}

func (s *PostgresLessonFileStore) FindByID(ctx context.Context, id int64) (*LessonFile, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanLessonFile(q.QueryRowContext(ctx,
		`SELECT `+lessonFileColumns+` FROM lessonfiles WHERE id = $1`, id))
}

func (s *PostgresLessonFileStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM lessonfiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson file: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresLessonFileStore) ListByLesson(ctx context.Context, lessonID int64) ([]*LessonFile, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+lessonFileColumns+` FROM lessonfiles
		WHERE lesson_id = $1
		ORDER BY id ASC`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list lesson files: %w", err)
	}
	defer rows.Close()
	files := []*LessonFile{}
	for rows.Next() {
		f, err := scanLessonFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lesson files: %w", err)
	}
	return files, nil
}

func (s *PostgresLessonFileStore) CountByLesson(ctx context.Context, lessonID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessonfiles WHERE lesson_id = $1`, lessonID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count lesson files: %w", err)
	}
	return n, nil
}
