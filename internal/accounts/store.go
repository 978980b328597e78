package accounts

import (
	"context"
	"time"
)

// Stores are interface-driven so services stay testable and the in-memory and
// Postgres implementations remain swappable. Implementations return
// sentinel.ErrNotFound for missing entities and sentinel.ErrConflict for
// uniqueness violations; services translate those into domain errors.

type UserStore interface {
	// Create assigns the user's ID. Email and username are unique.
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*User, error)
}

type RoleStore interface {
	// Seed upserts the built-in roles; safe to run on every startup.
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, id int64) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	FindDefault(ctx context.Context) (*Role, error)
}

type FollowStore interface {
	// Create inserts an edge; duplicates return sentinel.ErrConflict.
	Create(ctx context.Context, follow Follow) error
	// Delete removes an edge; missing edges return sentinel.ErrNotFound.
	Delete(ctx context.Context, followerID, followedID int64) error
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	ListFollowers(ctx context.Context, userID int64) ([]Follow, error)
	ListFollowed(ctx context.Context, userID int64) ([]Follow, error)
	// FollowedIDs lists the IDs a user follows, self-follow included, for
	// timeline queries.
	FollowedIDs(ctx context.Context, userID int64) ([]int64, error)
	// Counts exclude the self-follow edge.
	CountFollowers(ctx context.Context, userID int64) (int, error)
	CountFollowed(ctx context.Context, userID int64) (int, error)
}

type ClickTimeStore interface {
	Touch(ctx context.Context, userID int64, feed Feed, at time.Time) error
	// LastViewed returns the zero time when the user never opened the feed.
	LastViewed(ctx context.Context, userID int64, feed Feed) (time.Time, error)
}
