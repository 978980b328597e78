package forum

import (
	"context"
	"sort"
	"sync"
	"time"

	"classhub/pkg/platform/sentinel"
)

// paginate slices a 1-based page out of items. Pages past the end yield an
// empty slice.
func paginate[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage < 1 {
		return nil
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// InMemoryPostStore is a mutex-guarded map store for tests and the
// zero-config deployment path.
type InMemoryPostStore struct {
	mu     sync.RWMutex
	nextID int64
	posts  map[int64]*Post
}

func NewInMemoryPostStore() *InMemoryPostStore {
	return &InMemoryPostStore{posts: make(map[int64]*Post)}
}

func (s *InMemoryPostStore) Create(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	post.ID = s.nextID
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *InMemoryPostStore) FindByID(_ context.Context, id int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryPostStore) Update(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *InMemoryPostStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *InMemoryPostStore) matching(filter func(*Post) bool) []*Post {
	var out []*Post
	for _, p := range s.posts {
		if filter(p) {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *InMemoryPostStore) ListByAuthor(_ context.Context, authorID int64, page, perPage int) ([]*Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.matching(func(p *Post) bool { return p.AuthorID == authorID })
	return paginate(all, page, perPage), len(all), nil
}

func (s *InMemoryPostStore) ListByAuthors(_ context.Context, authorIDs []int64, page, perPage int) ([]*Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]bool, len(authorIDs))
	for _, id := range authorIDs {
		ids[id] = true
	}
	all := s.matching(func(p *Post) bool { return ids[p.AuthorID] })
	return paginate(all, page, perPage), len(all), nil
}

func (s *InMemoryPostStore) ListByTag(_ context.Context, tag string, page, perPage int) ([]*Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.matching(func(p *Post) bool { return p.Tag == tag })
	return paginate(all, page, perPage), len(all), nil
}

func (s *InMemoryPostStore) CountByAuthor(_ context.Context, authorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryPostStore) CountByTag(_ context.Context, tag string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.Tag == tag {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryPostStore) CountPrivateByAuthor(_ context.Context, authorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.AuthorID == authorID && p.Private {
			n++
		}
	}
	return n, nil
}

// InMemoryCommentStore holds comments. It keeps a reference to the post store
// for the cross-entity author counts, which Postgres answers with a join.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	nextID   int64
	comments map[int64]*Comment
	posts    *InMemoryPostStore
}

func NewInMemoryCommentStore(posts *InMemoryPostStore) *InMemoryCommentStore {
	return &InMemoryCommentStore{comments: make(map[int64]*Comment), posts: posts}
}

func (s *InMemoryCommentStore) Create(_ context.Context, comment *Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	comment.ID = s.nextID
	clone := *comment
	s.comments[comment.ID] = &clone
	return nil
}

func (s *InMemoryCommentStore) FindByID(_ context.Context, id int64) (*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *InMemoryCommentStore) Update(_ context.Context, comment *Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[comment.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *comment
	s.comments[comment.ID] = &clone
	return nil
}

func (s *InMemoryCommentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *InMemoryCommentStore) ListByPost(_ context.Context, postID int64, page, perPage int) ([]*Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			clone := *c
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID < all[j].ID
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return paginate(all, page, perPage), len(all), nil
}

func (s *InMemoryCommentStore) CountByPost(_ context.Context, postID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryCommentStore) authorPostIDs(authorID int64) map[int64]bool {
	s.posts.mu.RLock()
	defer s.posts.mu.RUnlock()
	ids := make(map[int64]bool)
	for _, p := range s.posts.posts {
		if p.AuthorID == authorID {
			ids[p.ID] = true
		}
	}
	return ids
}

func (s *InMemoryCommentStore) CountOnAuthor(_ context.Context, authorID int64) (int, error) {
	postIDs := s.authorPostIDs(authorID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.comments {
		if postIDs[c.PostID] {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryCommentStore) CountOnAuthorSince(_ context.Context, authorID int64, since time.Time) (int, error) {
	postIDs := s.authorPostIDs(authorID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.comments {
		if postIDs[c.PostID] && c.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

// InMemoryLetterStore holds private messages.
type InMemoryLetterStore struct {
	mu      sync.RWMutex
	nextID  int64
	letters map[int64]*Letter
}

func NewInMemoryLetterStore() *InMemoryLetterStore {
	return &InMemoryLetterStore{letters: make(map[int64]*Letter)}
}

func (s *InMemoryLetterStore) Create(_ context.Context, letter *Letter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	letter.ID = s.nextID
	clone := *letter
	s.letters[letter.ID] = &clone
	return nil
}

func (s *InMemoryLetterStore) FindByID(_ context.Context, id int64) (*Letter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.letters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (s *InMemoryLetterStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.letters, id)
	return nil
}

func (s *InMemoryLetterStore) list(filter func(*Letter) bool, page, perPage int) ([]*Letter, int) {
	var all []*Letter
	for _, l := range s.letters {
		if filter(l) {
			clone := *l
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID > all[j].ID
		}
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return paginate(all, page, perPage), len(all)
}

func (s *InMemoryLetterStore) ListBySender(_ context.Context, sender string, page, perPage int) ([]*Letter, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, total := s.list(func(l *Letter) bool { return l.SenderName == sender }, page, perPage)
	return items, total, nil
}

func (s *InMemoryLetterStore) ListByReceiver(_ context.Context, receiver string, page, perPage int) ([]*Letter, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, total := s.list(func(l *Letter) bool { return l.ReceiverName == receiver }, page, perPage)
	return items, total, nil
}

func (s *InMemoryLetterStore) CountBySender(_ context.Context, sender string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.letters {
		if l.SenderName == sender {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryLetterStore) CountByReceiver(_ context.Context, receiver string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.letters {
		if l.ReceiverName == receiver {
			n++
		}
	}
	return n, nil
}

// InMemoryAtMeStore holds mention notifications.
type InMemoryAtMeStore struct {
	mu     sync.RWMutex
	nextID int64
	atmes  map[int64]*AtMe
}

func NewInMemoryAtMeStore() *InMemoryAtMeStore {
	return &InMemoryAtMeStore{atmes: make(map[int64]*AtMe)}
}

func (s *InMemoryAtMeStore) Create(_ context.Context, atme *AtMe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	atme.ID = s.nextID
	clone := *atme
	s.atmes[atme.ID] = &clone
	return nil
}

func (s *InMemoryAtMeStore) ListByUsername(_ context.Context, username string) ([]*AtMe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AtMe
	for _, a := range s.atmes {
		if a.Username == username {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryAtMeStore) CountByUsername(_ context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.atmes {
		if a.Username == username {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryAtMeStore) CountByUsernameSince(_ context.Context, username string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.atmes {
		if a.Username == username && a.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

type collectKey struct {
	user int64
	post int64
}

// InMemoryCollectStore holds bookmark edges keyed by the composite pair.
type InMemoryCollectStore struct {
	mu    sync.RWMutex
	edges map[collectKey]CollectPost
}

func NewInMemoryCollectStore() *InMemoryCollectStore {
	return &InMemoryCollectStore{edges: make(map[collectKey]CollectPost)}
}

func (s *InMemoryCollectStore) Create(_ context.Context, collect CollectPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := collectKey{collect.UserID, collect.PostID}
	if _, ok := s.edges[key]; ok {
		return sentinel.ErrConflict
	}
	s.edges[key] = collect
	return nil
}

func (s *InMemoryCollectStore) Delete(_ context.Context, userID, postID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := collectKey{userID, postID}
	if _, ok := s.edges[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.edges, key)
	return nil
}

func (s *InMemoryCollectStore) Exists(_ context.Context, userID, postID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[collectKey{userID, postID}]
	return ok, nil
}

func (s *InMemoryCollectStore) ListByUser(_ context.Context, userID int64, page, perPage int) ([]CollectPost, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []CollectPost
	for key, c := range s.edges {
		if key.user == userID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].PostID > all[j].PostID
		}
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return paginate(all, page, perPage), len(all), nil
}

func (s *InMemoryCollectStore) CountByUser(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.edges {
		if key.user == userID {
			n++
		}
	}
	return n, nil
}
