package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clubhouse/internal/domain"
)

type PostRepo struct {
	db dbtx
}

func NewPostRepo(db dbtx) *PostRepo {
	return &PostRepo{db: db}
}

var _ domain.PostRepository = (*PostRepo)(nil)

func (r *PostRepo) Create(ctx context.Context, p *domain.Post) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (title, content, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Title, p.Content, p.AuthorID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return nil
}

func (r *PostRepo) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	p := &domain.Post{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, content, author_id, created_at, updated_at FROM posts WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (r *PostRepo) List(ctx context.Context) ([]*domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, content, author_id, created_at, updated_at
		FROM posts ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var res []*domain.Post
	for rows.Next() {
		p := &domain.Post{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *PostRepo) Update(ctx context.Context, p *domain.Post) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?
	`, p.Title, p.Content, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireAffected(res, "update post")
}

func (r *PostRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(res, "delete post")
}

func (r *PostRepo) CreateComment(ctx context.Context, c *domain.Comment) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, author_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.PostID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *PostRepo) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	c := &domain.Comment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, post_id, author_id, content, created_at, updated_at FROM comments WHERE id = ?
	`, id).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (r *PostRepo) ListComments(ctx context.Context, postID int64) ([]*domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, content, created_at, updated_at
		FROM comments WHERE post_id = ?
		ORDER BY created_at ASC, id ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var res []*domain.Comment
	for rows.Next() {
		c := &domain.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *PostRepo) UpdateComment(ctx context.Context, c *domain.Comment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE comments SET content = ?, updated_at = ? WHERE id = ?
	`, c.Content, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireAffected(res, "update comment")
}

func (r *PostRepo) DeleteComment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(res, "delete comment")
}
