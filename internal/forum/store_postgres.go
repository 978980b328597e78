package forum

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

const postColumns = `id, topic, body, body_html, private, tag, created_at, author_id, images, files`

// PostgresPostStore persists posts. Attachment lists are stored as JSONB and
// image paths as a text array.
type PostgresPostStore struct {
	db *sql.DB
}

func NewPostgresPostStore(db *sql.DB) *PostgresPostStore {
	return &PostgresPostStore{db: db}
}

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	var filesJSON []byte
	if err := row.Scan(
		&p.ID, &p.Topic, &p.Body, &p.BodyHTML, &p.Private, &p.Tag,
		&p.Timestamp, &p.AuthorID, pq.Array(&p.Images), &filesJSON,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &p.Files); err != nil {
			return nil, fmt.Errorf("decode post files: %w", err)
		}
	}
	return &p, nil
}

func encodeFiles(files []Attachment) ([]byte, error) {
	if files == nil {
		files = []Attachment{}
	}
	return json.Marshal(files)
}

func (s *PostgresPostStore) Create(ctx context.Context, post *Post) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeFiles(post.Files)
	if err != nil {
		return fmt.Errorf("encode post files: %w", err)
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO posts (topic, body, body_html, private, tag, created_at, author_id, images, files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		post.Topic, post.Body, post.BodyHTML, post.Private, post.Tag,
		post.Timestamp, post.AuthorID, pq.Array(post.Images), files,
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresPostStore) FindByID(ctx context.Context, id int64) (*Post, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanPost(q.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (s *PostgresPostStore) Update(ctx context.Context, post *Post) error {
	q := tx.QuerierFrom(ctx, s.db)
	files, err := encodeFiles(post.Files)
	if err != nil {
		return fmt.Errorf("encode post files: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE posts
		SET topic = $2, body = $3, body_html = $4, private = $5, tag = $6, images = $7, files = $8
		WHERE id = $1`,
		post.ID, post.Topic, post.Body, post.BodyHTML, post.Private, post.Tag,
		pq.Array(post.Images), files,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresPostStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresPostStore) listPosts(ctx context.Context, where string, countWhere string, args []any, page, perPage int) ([]*Post, int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts `+countWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	offset := (page - 1) * perPage
	listArgs := append(append([]any{}, args...), perPage, offset)
	n := len(args)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM posts %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		postColumns, where, n+1, n+2), listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	posts := []*Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

func (s *PostgresPostStore) ListByAuthor(ctx context.Context, authorID int64, page, perPage int) ([]*Post, int, error) {
	where := `WHERE author_id = $1`
	return s.listPosts(ctx, where, where, []any{authorID}, page, perPage)
}

func (s *PostgresPostStore) ListByAuthors(ctx context.Context, authorIDs []int64, page, perPage int) ([]*Post, int, error) {
	where := `WHERE author_id = ANY($1)`
	return s.listPosts(ctx, where, where, []any{pq.Array(authorIDs)}, page, perPage)
}

func (s *PostgresPostStore) ListByTag(ctx context.Context, tag string, page, perPage int) ([]*Post, int, error) {
	where := `WHERE tag = $1`
	return s.listPosts(ctx, where, where, []any{tag}, page, perPage)
}

func (s *PostgresPostStore) CountByAuthor(ctx context.Context, authorID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE author_id = $1`, authorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts by author: %w", err)
	}
	return n, nil
}

func (s *PostgresPostStore) CountByTag(ctx context.Context, tag string) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE tag = $1`, tag).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts by tag: %w", err)
	}
	return n, nil
}

func (s *PostgresPostStore) CountPrivateByAuthor(ctx context.Context, authorID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE author_id = $1 AND private`, authorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count private posts: %w", err)
	}
	return n, nil
}

const commentColumns = `id, body, body_html, disabled, created_at, author_id, post_id`

type PostgresCommentStore struct {
	db *sql.DB
}

func NewPostgresCommentStore(db *sql.DB) *PostgresCommentStore {
	return &PostgresCommentStore{db: db}
}

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var c Comment
	if err := row.Scan(
		&c.ID, &c.Body, &c.BodyHTML, &c.Disabled, &c.Timestamp, &c.AuthorID, &c.PostID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}

func (s *PostgresCommentStore) Create(ctx context.Context, comment *Comment) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO comments (body, body_html, disabled, created_at, author_id, post_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		comment.Body, comment.BodyHTML, comment.Disabled, comment.Timestamp,
		comment.AuthorID, comment.PostID,
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresCommentStore) FindByID(ctx context.Context, id int64) (*Comment, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanComment(q.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
}

func (s *PostgresCommentStore) Update(ctx context.Context, comment *Comment) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE comments SET body = $2, body_html = $3, disabled = $4 WHERE id = $1`,
		comment.ID, comment.Body, comment.BodyHTML, comment.Disabled,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresCommentStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresCommentStore) ListByPost(ctx context.Context, postID int64, page, perPage int) ([]*Comment, int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE post_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`,
		postID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	comments := []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

func (s *PostgresCommentStore) CountByPost(ctx context.Context, postID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments by post: %w", err)
	}
	return n, nil
}

func (s *PostgresCommentStore) CountOnAuthor(ctx context.Context, authorID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comments c
		JOIN posts p ON p.id = c.post_id
		WHERE p.author_id = $1`, authorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments on author: %w", err)
	}
	return n, nil
}

func (s *PostgresCommentStore) CountOnAuthorSince(ctx context.Context, authorID int64, since time.Time) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comments c
		JOIN posts p ON p.id = c.post_id
		WHERE p.author_id = $1 AND c.created_at > $2`, authorID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments on author since: %w", err)
	}
	return n, nil
}

const letterColumns = `id, topic, body, body_html, created_at, sender_name, receiver_name`

type PostgresLetterStore struct {
	db *sql.DB
}

func NewPostgresLetterStore(db *sql.DB) *PostgresLetterStore {
	return &PostgresLetterStore{db: db}
}

func scanLetter(row interface{ Scan(...any) error }) (*Letter, error) {
	var l Letter
	if err := row.Scan(
		&l.ID, &l.Topic, &l.Body, &l.BodyHTML, &l.Timestamp, &l.SenderName, &l.ReceiverName,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan letter: %w", err)
	}
	return &l, nil
}

func (s *PostgresLetterStore) Create(ctx context.Context, letter *Letter) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO letters (topic, body, body_html, created_at, sender_name, receiver_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		letter.Topic, letter.Body, letter.BodyHTML, letter.Timestamp,
		letter.SenderName, letter.ReceiverName,
	).Scan(&letter.ID)
	if err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

func (s *PostgresLetterStore) FindByID(ctx context.Context, id int64) (*Letter, error) {
	q := tx.QuerierFrom(ctx, s.db)
	return scanLetter(q.QueryRowContext(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE id = $1`, id))
}

func (s *PostgresLetterStore) Delete(ctx context.Context, id int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM letters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete letter: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresLetterStore) listLetters(ctx context.Context, column, name string, page, perPage int) ([]*Letter, int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var total int
	if err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM letters WHERE %s = $1`, column), name).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count letters: %w", err)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM letters
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, letterColumns, column),
		name, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()
	letters := []*Letter{}
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, 0, err
		}
		letters = append(letters, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list letters: %w", err)
	}
	return letters, total, nil
}

func (s *PostgresLetterStore) ListBySender(ctx context.Context, sender string, page, perPage int) ([]*Letter, int, error) {
	return s.listLetters(ctx, "sender_name", sender, page, perPage)
}

func (s *PostgresLetterStore) ListByReceiver(ctx context.Context, receiver string, page, perPage int) ([]*Letter, int, error) {
	return s.listLetters(ctx, "receiver_name", receiver, page, perPage)
}

func (s *PostgresLetterStore) countLetters(ctx context.Context, column, name string) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM letters WHERE %s = $1`, column), name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count letters: %w", err)
	}
	return n, nil
}

func (s *PostgresLetterStore) CountBySender(ctx context.Context, sender string) (int, error) {
	return s.countLetters(ctx, "sender_name", sender)
}

func (s *PostgresLetterStore) CountByReceiver(ctx context.Context, receiver string) (int, error) {
	return s.countLetters(ctx, "receiver_name", receiver)
}

type PostgresAtMeStore struct {
	db *sql.DB
}

func NewPostgresAtMeStore(db *sql.DB) *PostgresAtMeStore {
	return &PostgresAtMeStore{db: db}
}

func (s *PostgresAtMeStore) Create(ctx context.Context, atme *AtMe) error {
	q := tx.QuerierFrom(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO atmes (created_at, comment_id, from_username, username)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		atme.Timestamp, atme.CommentID, atme.FromUsername, atme.Username,
	).Scan(&atme.ID)
	if err != nil {
		return fmt.Errorf("insert mention: %w", err)
	}
	return nil
}

func (s *PostgresAtMeStore) ListByUsername(ctx context.Context, username string) ([]*AtMe, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, created_at, comment_id, from_username, username
		FROM atmes
		WHERE username = $1
		ORDER BY created_at DESC, id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()
	atmes := []*AtMe{}
	for rows.Next() {
		var a AtMe
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.CommentID, &a.FromUsername, &a.Username); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		atmes = append(atmes, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	return atmes, nil
}

func (s *PostgresAtMeStore) CountByUsername(ctx context.Context, username string) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM atmes WHERE username = $1`, username).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mentions: %w", err)
	}
	return n, nil
}

func (s *PostgresAtMeStore) CountByUsernameSince(ctx context.Context, username string, since time.Time) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM atmes WHERE username = $1 AND created_at > $2`,
		username, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mentions since: %w", err)
	}
	return n, nil
}

type PostgresCollectStore struct {
	db *sql.DB
}

func NewPostgresCollectStore(db *sql.DB) *PostgresCollectStore {
	return &PostgresCollectStore{db: db}
}

func (s *PostgresCollectStore) Create(ctx context.Context, collect CollectPost) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO collect_posts (user_id, post_id, created_at)
		VALUES ($1, $2, $3)`,
		collect.UserID, collect.PostID, collect.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

func (s *PostgresCollectStore) Delete(ctx context.Context, userID, postID int64) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`DELETE FROM collect_posts WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresCollectStore) Exists(ctx context.Context, userID, postID int64) (bool, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM collect_posts WHERE user_id = $1 AND post_id = $2)`,
		userID, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("bookmark exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresCollectStore) ListByUser(ctx context.Context, userID int64, page, perPage int) ([]CollectPost, int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collect_posts WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookmarks: %w", err)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, post_id, created_at
		FROM collect_posts
		WHERE user_id = $1
		ORDER BY created_at DESC, post_id DESC
		LIMIT $2 OFFSET $3`,
		userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()
	collects := []CollectPost{}
	for rows.Next() {
		var c CollectPost
		if err := rows.Scan(&c.UserID, &c.PostID, &c.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan bookmark: %w", err)
		}
		collects = append(collects, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookmarks: %w", err)
	}
	return collects, total, nil
}

func (s *PostgresCollectStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collect_posts WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return n, nil
}
