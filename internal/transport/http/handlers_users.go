package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"classhub/internal/accounts"
	"classhub/internal/forum"
	"classhub/internal/platform/middleware"
	"classhub/internal/transport/http/shared"
	dErrors "classhub/pkg/domain-errors"
	"classhub/pkg/requestcontext"
)

// AccountsService is the slice of the accounts feature the user endpoints use.
type AccountsService interface {
	GetUser(ctx context.Context, id int64) (*accounts.User, error)
	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
}

// UserForumService supplies the post listings embedded in user responses.
type UserForumService interface {
	PostCount(ctx context.Context, authorID int64) (int, error)
	CommentCount(ctx context.Context, postID int64) (int, error)
	ListPostsByAuthor(ctx context.Context, authorID int64, page, perPage int) ([]*forum.Post, int, error)
	ListTimeline(ctx context.Context, userID int64, page, perPage int) ([]*forum.Post, int, error)
}

// UserHandler serves the user endpoints: profile JSON, the user's posts, the
// timeline of followed authors and the follow/unfollow edges.
type UserHandler struct {
	accounts AccountsService
	forum    UserForumService
	links    *shared.Links
	logger   *slog.Logger
	perPage  int
}

func NewUserHandler(accounts AccountsService, forum UserForumService, links *shared.Links, logger *slog.Logger, perPage int) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		forum:    forum,
		links:    links,
		logger:   logger,
		perPage:  perPage,
	}
}

// Register mounts the public user routes. Follow routes require auth and are
// registered separately via RegisterProtected.
func (h *UserHandler) Register(r chi.Router) {
	r.Get("/users/{id}", h.handleGetUser)
	r.Get("/users/{id}/posts/", h.handleGetUserPosts)
	r.Get("/users/{id}/timeline/", h.handleGetUserTimeline)
}

// RegisterProtected mounts the routes that act as the authenticated user.
func (h *UserHandler) RegisterProtected(r chi.Router) {
	r.Post("/users/{id}/follow", h.handleFollow)
	r.Delete("/users/{id}/follow", h.handleUnfollow)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, dErrors.New(dErrors.CodeNotFound, "not found")
	}
	return id, nil
}

func (h *UserHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.accounts.GetUser(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	postCount, err := h.forum.PostCount(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count posts",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", id,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, userView(h.links, user, postCount))
}

func (h *UserHandler) handleGetUserPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.accounts.GetUser(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	page := shared.PageParam(r)
	posts, total, err := h.forum.ListPostsByAuthor(ctx, id, page, h.perPage)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views, err := h.postViews(r, posts)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK,
		shared.Envelope("posts", views, h.links, h.links.UserPosts(id), page, h.perPage, total))
}

func (h *UserHandler) handleGetUserTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.accounts.GetUser(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	page := shared.PageParam(r)
	posts, total, err := h.forum.ListTimeline(ctx, id, page, h.perPage)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views, err := h.postViews(r, posts)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK,
		shared.Envelope("posts", views, h.links, h.links.UserTimeline(id), page, h.perPage, total))
}

func (h *UserHandler) postViews(r *http.Request, posts []*forum.Post) ([]PostView, error) {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		n, err := h.forum.CommentCount(r.Context(), p.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, postView(h.links, p, n))
	}
	return views, nil
}

func (h *UserHandler) handleFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	followerID := requestcontext.UserID(ctx)
	if err := h.accounts.Follow(ctx, followerID, targetID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	followerID := requestcontext.UserID(ctx)
	if err := h.accounts.Unfollow(ctx, followerID, targetID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
