package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"classhub/pkg/platform/sentinel"
	"classhub/pkg/platform/tx"
)

// PostgresUserStore persists users in PostgreSQL. All methods honour a
// context-carried transaction.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, email, username, student_no, role_id, password_hash, confirmed,
	is_teacher, name, location, tel, about_me, member_since, last_seen, avatar_hash, avatar_file`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.StudentNo, &u.RoleID, &u.PasswordHash,
		&u.Confirmed, &u.IsTeacher, &u.Name, &u.Location, &u.Tel, &u.AboutMe,
		&u.MemberSince, &u.LastSeen, &u.AvatarHash, &u.AvatarFile)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PostgresUserStore) Create(ctx context.Context, user *User) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (email, username, student_no, role_id, password_hash, confirmed,
			is_teacher, name, location, tel, about_me, member_since, last_seen, avatar_hash, avatar_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, user.Email, user.Username, user.StudentNo, user.RoleID, user.PasswordHash, user.Confirmed,
		user.IsTeacher, user.Name, user.Location, user.Tel, user.AboutMe,
		user.MemberSince, user.LastSeen, user.AvatarHash, user.AvatarFile).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id int64) (*User, error) {
	q := tx.QuerierFrom(ctx, s.db)
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	q := tx.QuerierFrom(ctx, s.db)
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	q := tx.QuerierFrom(ctx, s.db)
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *User) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE users SET email = $2, username = $3, student_no = $4, role_id = $5,
			password_hash = $6, confirmed = $7, is_teacher = $8, name = $9, location = $10,
			tel = $11, about_me = $12, last_seen = $13, avatar_hash = $14, avatar_file = $15
		WHERE id = $1
	`, user.ID, user.Email, user.Username, user.StudentNo, user.RoleID, user.PasswordHash,
		user.Confirmed, user.IsTeacher, user.Name, user.Location, user.Tel, user.AboutMe,
		user.LastSeen, user.AvatarHash, user.AvatarFile)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresUserStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresUserStore) List(ctx context.Context) ([]*User, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresRoleStore persists the role catalogue.
type PostgresRoleStore struct {
	db *sql.DB
}

func NewPostgresRoleStore(db *sql.DB) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

func (s *PostgresRoleStore) Seed(ctx context.Context) error {
	q := tx.QuerierFrom(ctx, s.db)
	for _, role := range SeedRoles() {
		_, err := q.ExecContext(ctx, `
			INSERT INTO roles (name, is_default, permissions)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET is_default = EXCLUDED.is_default, permissions = EXCLUDED.permissions
		`, role.Name, role.Default, int(role.Permissions))
		if err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

func scanRole(row interface{ Scan(...any) error }) (*Role, error) {
	var r Role
	var perms int
	if err := row.Scan(&r.ID, &r.Name, &r.Default, &perms); err != nil {
		return nil, err
	}
	r.Permissions = Permission(perms)
	return &r, nil
}

func (s *PostgresRoleStore) FindByID(ctx context.Context, id int64) (*Role, error) {
	q := tx.QuerierFrom(ctx, s.db)
	role, err := scanRole(q.QueryRowContext(ctx, `SELECT id, name, is_default, permissions FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role by id: %w", err)
	}
	return role, nil
}

func (s *PostgresRoleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	q := tx.QuerierFrom(ctx, s.db)
	role, err := scanRole(q.QueryRowContext(ctx, `SELECT id, name, is_default, permissions FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

func (s *PostgresRoleStore) FindDefault(ctx context.Context) (*Role, error) {
	q := tx.QuerierFrom(ctx, s.db)
	role, err := scanRole(q.QueryRowContext(ctx, `SELECT id, name, is_default, permissions FROM roles WHERE is_default LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find default role: %w", err)
	}
	return role, nil
}

// PostgresFollowStore persists follow edges.
type PostgresFollowStore struct {
	db *sql.DB
}

func NewPostgresFollowStore(db *sql.DB) *PostgresFollowStore {
	return &PostgresFollowStore{db: db}
}

func (s *PostgresFollowStore) Create(ctx context.Context, follow Follow) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followed_id, created_at) VALUES ($1, $2, $3)
	`, follow.FollowerID, follow.FollowedID, follow.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

func (s *PostgresFollowStore) Delete(ctx context.Context, followerID, followedID int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2
	`, followerID, followedID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresFollowStore) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)
	`, followerID, followedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("follow exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresFollowStore) listEdges(ctx context.Context, query string, userID int64) ([]Follow, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Follow
	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.FollowerID, &f.FollowedID, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresFollowStore) ListFollowers(ctx context.Context, userID int64) ([]Follow, error) {
	return s.listEdges(ctx, `
		SELECT follower_id, followed_id, created_at FROM follows
		WHERE followed_id = $1 AND follower_id <> followed_id
		ORDER BY created_at DESC
	`, userID)
}

func (s *PostgresFollowStore) ListFollowed(ctx context.Context, userID int64) ([]Follow, error) {
	return s.listEdges(ctx, `
		SELECT follower_id, followed_id, created_at FROM follows
		WHERE follower_id = $1 AND follower_id <> followed_id
		ORDER BY created_at DESC
	`, userID)
}

func (s *PostgresFollowStore) FollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT followed_id FROM follows WHERE follower_id = $1 ORDER BY followed_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("followed ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan followed id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresFollowStore) CountFollowers(ctx context.Context, userID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM follows WHERE followed_id = $1 AND follower_id <> followed_id
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return n, nil
}

func (s *PostgresFollowStore) CountFollowed(ctx context.Context, userID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM follows WHERE follower_id = $1 AND follower_id <> followed_id
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count followed: %w", err)
	}
	return n, nil
}

// PostgresClickTimeStore persists per-feed last-viewed timestamps.
type PostgresClickTimeStore struct {
	db *sql.DB
}

func NewPostgresClickTimeStore(db *sql.DB) *PostgresClickTimeStore {
	return &PostgresClickTimeStore{db: db}
}

func (s *PostgresClickTimeStore) Touch(ctx context.Context, userID int64, feed Feed, at time.Time) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO clicktimes (user_id, feed, clicked_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, feed) DO UPDATE SET clicked_at = EXCLUDED.clicked_at
	`, userID, string(feed), at)
	if err != nil {
		return fmt.Errorf("touch clicktime: %w", err)
	}
	return nil
}

func (s *PostgresClickTimeStore) LastViewed(ctx context.Context, userID int64, feed Feed) (time.Time, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var at time.Time
	err := q.QueryRowContext(ctx, `
		SELECT clicked_at FROM clicktimes WHERE user_id = $1 AND feed = $2
	`, userID, string(feed)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last viewed: %w", err)
	}
	return at, nil
}
