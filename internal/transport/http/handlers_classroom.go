package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"classhub/internal/classroom"
	"classhub/internal/transport/http/shared"
)

// ClassroomService is the slice of the classroom feature the read endpoints use.
type ClassroomService interface {
	GetStudent(ctx context.Context, id int64) (*classroom.Student, error)
	GetLesson(ctx context.Context, id int64) (*classroom.Lesson, error)
	GetTeacher(ctx context.Context, id int64) (*classroom.Teacher, error)
}

// ClassroomHandler serves the classroom read endpoints.
type ClassroomHandler struct {
	classroom ClassroomService
	links     *shared.Links
	logger    *slog.Logger
}

func NewClassroomHandler(classroom ClassroomService, links *shared.Links, logger *slog.Logger) *ClassroomHandler {
	return &ClassroomHandler{classroom: classroom, links: links, logger: logger}
}

// Register mounts the public classroom routes.
func (h *ClassroomHandler) Register(r chi.Router) {
	r.Get("/students/{id}", h.handleGetStudent)
	r.Get("/lessons/{id}", h.handleGetLesson)
	r.Get("/teachers/{id}", h.handleGetTeacher)
}

func (h *ClassroomHandler) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	student, err := h.classroom.GetStudent(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, studentView(h.links, student))
}

func (h *ClassroomHandler) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	lesson, err := h.classroom.GetLesson(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, lessonView(h.links, lesson))
}

func (h *ClassroomHandler) handleGetTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	teacher, err := h.classroom.GetTeacher(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, teacherView(h.links, teacher))
}
