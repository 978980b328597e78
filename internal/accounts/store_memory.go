package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"classhub/pkg/platform/sentinel"
)

// InMemoryUserStore is a mutex-guarded map store for tests and the
// zero-config deployment path.
type InMemoryUserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[int64]*User)}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return sentinel.ErrConflict
		}
	}
	s.nextID++
	user.ID = s.nextID
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return sentinel.ErrConflict
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *InMemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InMemoryRoleStore holds the seeded roles.
type InMemoryRoleStore struct {
	mu     sync.RWMutex
	nextID int64
	roles  map[int64]*Role
}

func NewInMemoryRoleStore() *InMemoryRoleStore {
	return &InMemoryRoleStore{roles: make(map[int64]*Role)}
}

func (s *InMemoryRoleStore) Seed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seed := range SeedRoles() {
		var existing *Role
		for _, r := range s.roles {
			if r.Name == seed.Name {
				existing = r
				break
			}
		}
		if existing == nil {
			s.nextID++
			seed.ID = s.nextID
			clone := seed
			s.roles[seed.ID] = &clone
			continue
		}
		existing.Default = seed.Default
		existing.Permissions = seed.Permissions
	}
	return nil
}

func (s *InMemoryRoleStore) FindByID(_ context.Context, id int64) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *InMemoryRoleStore) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRoleStore) FindDefault(_ context.Context) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Default {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

type followKey struct {
	follower int64
	followed int64
}

// InMemoryFollowStore keeps follow edges keyed by the composite pair.
type InMemoryFollowStore struct {
	mu    sync.RWMutex
	edges map[followKey]Follow
}

func NewInMemoryFollowStore() *InMemoryFollowStore {
	return &InMemoryFollowStore{edges: make(map[followKey]Follow)}
}

func (s *InMemoryFollowStore) Create(_ context.Context, follow Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := followKey{follow.FollowerID, follow.FollowedID}
	if _, ok := s.edges[key]; ok {
		return sentinel.ErrConflict
	}
	s.edges[key] = follow
	return nil
}

func (s *InMemoryFollowStore) Delete(_ context.Context, followerID, followedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := followKey{followerID, followedID}
	if _, ok := s.edges[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.edges, key)
	return nil
}

func (s *InMemoryFollowStore) Exists(_ context.Context, followerID, followedID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[followKey{followerID, followedID}]
	return ok, nil
}

func (s *InMemoryFollowStore) ListFollowers(_ context.Context, userID int64) ([]Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Follow
	for key, f := range s.edges {
		if key.followed == userID && key.follower != userID {
			out = append(out, f)
		}
	}
	sortFollows(out)
	return out, nil
}

func (s *InMemoryFollowStore) ListFollowed(_ context.Context, userID int64) ([]Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Follow
	for key, f := range s.edges {
		if key.follower == userID && key.followed != userID {
			out = append(out, f)
		}
	}
	sortFollows(out)
	return out, nil
}

func (s *InMemoryFollowStore) FollowedIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for key := range s.edges {
		if key.follower == userID {
			out = append(out, key.followed)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryFollowStore) CountFollowers(ctx context.Context, userID int64) (int, error) {
	followers, err := s.ListFollowers(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(followers), nil
}

func (s *InMemoryFollowStore) CountFollowed(ctx context.Context, userID int64) (int, error) {
	followed, err := s.ListFollowed(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(followed), nil
}

func sortFollows(follows []Follow) {
	sort.Slice(follows, func(i, j int) bool {
		return follows[i].Timestamp.After(follows[j].Timestamp)
	})
}

type clickKey struct {
	user int64
	feed Feed
}

// InMemoryClickTimeStore tracks last-viewed times per user and feed.
type InMemoryClickTimeStore struct {
	mu     sync.RWMutex
	clicks map[clickKey]time.Time
}

func NewInMemoryClickTimeStore() *InMemoryClickTimeStore {
	return &InMemoryClickTimeStore{clicks: make(map[clickKey]time.Time)}
}

func (s *InMemoryClickTimeStore) Touch(_ context.Context, userID int64, feed Feed, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks[clickKey{userID, feed}] = at
	return nil
}

func (s *InMemoryClickTimeStore) LastViewed(_ context.Context, userID int64, feed Feed) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clicks[clickKey{userID, feed}], nil
}
