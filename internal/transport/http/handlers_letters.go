package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"classhub/internal/forum"
	"classhub/internal/transport/http/shared"
	"classhub/pkg/requestcontext"
)

// LetterForumService is the slice of the forum feature the letter endpoints use.
type LetterForumService interface {
	GetLetter(ctx context.Context, id int64) (*forum.Letter, error)
	SendLetter(ctx context.Context, senderName, receiverName, topic, body string) (*forum.Letter, error)
	Inbox(ctx context.Context, username string, page, perPage int) ([]*forum.Letter, int, error)
	Outbox(ctx context.Context, username string, page, perPage int) ([]*forum.Letter, int, error)
}

// LetterHandler serves private letters.
type LetterHandler struct {
	forum   LetterForumService
	authors AuthorDirectory
	links   *shared.Links
	logger  *slog.Logger
	perPage int
}

func NewLetterHandler(forum LetterForumService, authors AuthorDirectory, links *shared.Links, logger *slog.Logger, perPage int) *LetterHandler {
	return &LetterHandler{
		forum:   forum,
		authors: authors,
		links:   links,
		logger:  logger,
		perPage: perPage,
	}
}

// Register mounts the public letter routes.
func (h *LetterHandler) Register(r chi.Router) {
	r.Get("/letters/{id}", h.handleGetLetter)
}

// RegisterProtected mounts the mailbox routes of the authenticated user.
func (h *LetterHandler) RegisterProtected(r chi.Router) {
	r.Post("/letters/", h.handleSendLetter)
	r.Get("/letters/inbox/", h.handleInbox)
	r.Get("/letters/outbox/", h.handleOutbox)
}

func (h *LetterHandler) handleGetLetter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	letter, err := h.forum.GetLetter(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, letterView(h.links, letter))
}

func (h *LetterHandler) handleSendLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LetterRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		shared.WriteError(w, err)
		return
	}
	sender, err := h.authors.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	letter, err := h.forum.SendLetter(ctx, sender.Username, req.Receiver, req.Topic, req.Body)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Location", h.links.Letter(letter.ID))
	shared.WriteJSON(w, http.StatusCreated, letterView(h.links, letter))
}

func (h *LetterHandler) mailbox(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, username string, page, perPage int) ([]*forum.Letter, int, error), collectionURL string) {
	ctx := r.Context()
	user, err := h.authors.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	page := shared.PageParam(r)
	letters, total, err := list(ctx, user.Username, page, h.perPage)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]LetterView, 0, len(letters))
	for _, l := range letters {
		views = append(views, letterView(h.links, l))
	}
	shared.WriteJSON(w, http.StatusOK,
		shared.Envelope("letters", views, h.links, collectionURL, page, h.perPage, total))
}

func (h *LetterHandler) handleInbox(w http.ResponseWriter, r *http.Request) {
	h.mailbox(w, r, h.forum.Inbox, h.links.Inbox())
}

func (h *LetterHandler) handleOutbox(w http.ResponseWriter, r *http.Request) {
	h.mailbox(w, r, h.forum.Outbox, h.links.Outbox())
}
