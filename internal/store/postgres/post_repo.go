package postgres

import (
	"context"
	"database/sql"
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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO posts (title, content, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Title, p.Content, p.AuthorID, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepo) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	p := &domain.Post{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, content, author_id, created_at, updated_at FROM posts WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
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
		UPDATE posts SET title=$1, content=$2, updated_at=$3 WHERE id=$4
	`, p.Title, p.Content, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireAffected(res, "update post")
}

func (r *PostRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(res, "delete post")
}

func (r *PostRepo) CreateComment(ctx context.Context, c *domain.Comment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.PostID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *PostRepo) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	c := &domain.Comment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, post_id, author_id, content, created_at, updated_at FROM comments WHERE id = $1
	`, id).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
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
		FROM comments WHERE post_id = $1
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
		UPDATE comments SET content=$1, updated_at=$2 WHERE id=$3
	`, c.Content, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireAffected(res, "update comment")
}

func (r *PostRepo) DeleteComment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(res, "delete comment")
}
