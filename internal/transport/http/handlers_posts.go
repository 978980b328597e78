package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"classhub/internal/accounts"
	"classhub/internal/forum"
	"classhub/internal/platform/middleware"
	"classhub/internal/transport/http/shared"
	"classhub/pkg/requestcontext"
)

// PostForumService is the slice of the forum feature the post endpoints use.
type PostForumService interface {
	GetPost(ctx context.Context, id int64) (*forum.Post, error)
	CreatePost(ctx context.Context, authorID int64, in forum.PostInput) (*forum.Post, error)
	CommentCount(ctx context.Context, postID int64) (int, error)
	GetComment(ctx context.Context, id int64) (*forum.Comment, error)
	ListComments(ctx context.Context, postID int64, page, perPage int) ([]*forum.Comment, int, error)
	CreateComment(ctx context.Context, authorID int64, authorUsername string, postID int64, body string) (*forum.Comment, error)
}

// AuthorDirectory resolves the acting user for comment attribution.
type AuthorDirectory interface {
	GetUser(ctx context.Context, id int64) (*accounts.User, error)
}

// PostHandler serves posts and their comments.
type PostHandler struct {
	forum   PostForumService
	authors AuthorDirectory
	links   *shared.Links
	logger  *slog.Logger
	perPage int
}

func NewPostHandler(forum PostForumService, authors AuthorDirectory, links *shared.Links, logger *slog.Logger, perPage int) *PostHandler {
	return &PostHandler{
		forum:   forum,
		authors: authors,
		links:   links,
		logger:  logger,
		perPage: perPage,
	}
}

// Register mounts the public post routes.
func (h *PostHandler) Register(r chi.Router) {
	r.Get("/posts/{id}", h.handleGetPost)
	r.Get("/posts/{id}/comments/", h.handleGetComments)
	r.Get("/comments/{id}", h.handleGetComment)
}

// RegisterProtected mounts the routes that write as the authenticated user.
func (h *PostHandler) RegisterProtected(r chi.Router) {
	r.Post("/posts/", h.handleCreatePost)
	r.Post("/posts/{id}/comments/", h.handleCreateComment)
}

func (h *PostHandler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	post, err := h.forum.GetPost(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	n, err := h.forum.CommentCount(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, postView(h.links, post, n))
}

func (h *PostHandler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req PostRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		shared.WriteError(w, err)
		return
	}
	authorID := requestcontext.UserID(ctx)
	post, err := h.forum.CreatePost(ctx, authorID, forum.PostInput{
		Topic:   req.Topic,
		Body:    req.Body,
		Private: req.Private,
		Tag:     req.Tag,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create post",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", authorID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Location", h.links.Post(post.ID))
	shared.WriteJSON(w, http.StatusCreated, postView(h.links, post, 0))
}

func (h *PostHandler) handleGetComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.forum.GetPost(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	page := shared.PageParam(r)
	comments, total, err := h.forum.ListComments(ctx, id, page, h.perPage)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(h.links, c))
	}
	shared.WriteJSON(w, http.StatusOK,
		shared.Envelope("comments", views, h.links, h.links.PostComments(id), page, h.perPage, total))
}

func (h *PostHandler) handleGetComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	comment, err := h.forum.GetComment(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, commentView(h.links, comment))
}

func (h *PostHandler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req CommentRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		shared.WriteError(w, err)
		return
	}
	authorID := requestcontext.UserID(ctx)
	author, err := h.authors.GetUser(ctx, authorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	comment, err := h.forum.CreateComment(ctx, authorID, author.Username, postID, req.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create comment",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", authorID,
			"post_id", postID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Location", h.links.Comment(comment.ID))
	shared.WriteJSON(w, http.StatusCreated, commentView(h.links, comment))
}
