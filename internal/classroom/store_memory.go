package classroom

import (
	"context"
	"sort"
	"sync"

	"classhub/pkg/platform/sentinel"
)

// InMemoryLessonStore is a mutex-guarded map store for tests and the
// zero-config deployment path.
type InMemoryLessonStore struct {
	mu      sync.RWMutex
	nextID  int64
	lessons map[int64]*Lesson
}

func NewInMemoryLessonStore() *InMemoryLessonStore {
	return &InMemoryLessonStore{lessons: make(map[int64]*Lesson)}
}

func (s *InMemoryLessonStore) Create(_ context.Context, lesson *Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	lesson.ID = s.nextID
	clone := *lesson
	s.lessons[lesson.ID] = &clone
	return nil
}

func (s *InMemoryLessonStore) FindByID(_ context.Context, id int64) (*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (s *InMemoryLessonStore) Update(_ context.Context, lesson *Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *lesson
	s.lessons[lesson.ID] = &clone
	return nil
}

func (s *InMemoryLessonStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.lessons, id)
	return nil
}

func (s *InMemoryLessonStore) ListByTeacher(_ context.Context, teacherUserID int64) ([]*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Lesson
	for _, l := range s.lessons {
		if l.TeacherUserID == teacherUserID {
			clone := *l
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryLessonStore) CountByTeacher(_ context.Context, teacherUserID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.lessons {
		if l.TeacherUserID == teacherUserID {
			n++
		}
	}
	return n, nil
}

// InMemoryNewLessonStore holds term offerings.
type InMemoryNewLessonStore struct {
	mu        sync.RWMutex
	nextID    int64
	offerings map[int64]*NewLesson
}

func NewInMemoryNewLessonStore() *InMemoryNewLessonStore {
	return &InMemoryNewLessonStore{offerings: make(map[int64]*NewLesson)}
}

func (s *InMemoryNewLessonStore) Create(_ context.Context, offering *NewLesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	offering.ID = s.nextID
	clone := *offering
	s.offerings[offering.ID] = &clone
	return nil
}

func (s *InMemoryNewLessonStore) FindByID(_ context.Context, id int64) (*NewLesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offerings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *InMemoryNewLessonStore) Update(_ context.Context, offering *NewLesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[offering.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *offering
	s.offerings[offering.ID] = &clone
	return nil
}

func (s *InMemoryNewLessonStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.offerings, id)
	return nil
}

func (s *InMemoryNewLessonStore) ListByLesson(_ context.Context, lessonID int64) ([]*NewLesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*NewLesson
	for _, o := range s.offerings {
		if o.LessonID == lessonID {
			clone := *o
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryNewLessonStore) CountByLesson(_ context.Context, lessonID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.offerings {
		if o.LessonID == lessonID {
			n++
		}
	}
	return n, nil
}

// InMemoryStudentStore holds enrollments.
type InMemoryStudentStore struct {
	mu       sync.RWMutex
	nextID   int64
	students map[int64]*Student
}

func NewInMemoryStudentStore() *InMemoryStudentStore {
	return &InMemoryStudentStore{students: make(map[int64]*Student)}
}

func cloneStudent(st *Student) *Student {
	clone := *st
	if st.Score != nil {
		score := *st.Score
		clone.Score = &score
	}
	return &clone
}

func (s *InMemoryStudentStore) Create(_ context.Context, student *Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.students {
		if existing.UserID == student.UserID && existing.NewLessonID == student.NewLessonID {
			return sentinel.ErrConflict
		}
	}
	s.nextID++
	student.ID = s.nextID
	s.students[student.ID] = cloneStudent(student)
	return nil
}

func (s *InMemoryStudentStore) FindByID(_ context.Context, id int64) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneStudent(st), nil
}

func (s *InMemoryStudentStore) Update(_ context.Context, student *Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.students[student.ID] = cloneStudent(student)
	return nil
}

func (s *InMemoryStudentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.students, id)
	return nil
}

func (s *InMemoryStudentStore) FindByUserAndOffering(_ context.Context, userID, newLessonID int64) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.UserID == userID && st.NewLessonID == newLessonID {
			return cloneStudent(st), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStudentStore) ListByOffering(_ context.Context, newLessonID int64) ([]*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Student
	for _, st := range s.students {
		if st.NewLessonID == newLessonID {
			out = append(out, cloneStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStudentStore) count(newLessonID int64, match func(*Student) bool) int {
	n := 0
	for _, st := range s.students {
		if st.NewLessonID == newLessonID && match(st) {
			n++
		}
	}
	return n
}

func (s *InMemoryStudentStore) CountByOffering(_ context.Context, newLessonID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(newLessonID, func(*Student) bool { return true }), nil
}

func (s *InMemoryStudentStore) CountSeated(_ context.Context, newLessonID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(newLessonID, func(st *Student) bool { return st.Seat != "" }), nil
}

func (s *InMemoryStudentStore) CountSubmitted(_ context.Context, newLessonID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(newLessonID, func(st *Student) bool { return st.Topic != "" }), nil
}

func (s *InMemoryStudentStore) SeatTaken(_ context.Context, newLessonID int64, seat string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.NewLessonID == newLessonID && st.Seat == seat && st.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// InMemoryTeacherStore holds teaching profiles, one per user.
type InMemoryTeacherStore struct {
	mu       sync.RWMutex
	nextID   int64
	teachers map[int64]*Teacher
}

func NewInMemoryTeacherStore() *InMemoryTeacherStore {
	return &InMemoryTeacherStore{teachers: make(map[int64]*Teacher)}
}

func (s *InMemoryTeacherStore) Create(_ context.Context, teacher *Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teachers {
		if existing.UserID == teacher.UserID {
			return sentinel.ErrConflict
		}
	}
	s.nextID++
	teacher.ID = s.nextID
	clone := *teacher
	s.teachers[teacher.ID] = &clone
	return nil
}

func (s *InMemoryTeacherStore) FindByID(_ context.Context, id int64) (*Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *InMemoryTeacherStore) FindByUserID(_ context.Context, userID int64) (*Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teachers {
		if t.UserID == userID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryTeacherStore) Update(_ context.Context, teacher *Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[teacher.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *teacher
	s.teachers[teacher.ID] = &clone
	return nil
}

func (s *InMemoryTeacherStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.teachers, id)
	return nil
}

// InMemoryLessonFileStore holds course material.
type InMemoryLessonFileStore struct {
	mu     sync.RWMutex
	nextID int64
	files  map[int64]*LessonFile
}

func NewInMemoryLessonFileStore() *InMemoryLessonFileStore {
	return &InMemoryLessonFileStore{files: make(map[int64]*LessonFile)}
}

func (s *InMemoryLessonFileStore) Create(_ context.Context, file *LessonFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	file.ID = s.nextID
	clone := *file
	s.files[file.ID] = &clone
	return nil
}

func (s *InMemoryLessonFileStore) FindByID(_ context.Context, id int64) (*LessonFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *f
	return &clone, nil
}

func (s *InMemoryLessonFileStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *InMemoryLessonFileStore) ListByLesson(_ context.Context, lessonID int64) ([]*LessonFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*LessonFile
	for _, f := range s.files {
		if f.LessonID == lessonID {
			clone := *f
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryLessonFileStore) CountByLesson(_ context.Context, lessonID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.files {
		if f.LessonID == lessonID {
			n++
		}
	}
	return n, nil
}
