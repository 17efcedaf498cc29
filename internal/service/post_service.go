package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubhouse/internal/domain"
)

const maxTitleLength = 200

// PostService manages admin posts and member comments.
type PostService struct {
	store domain.Store
	now   func() time.Time
}

func NewPostService(store domain.Store) *PostService {
	return &PostService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (in *PostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return fmt.Errorf("%w: title and content are required", domain.ErrInvalidInput)
	}
	if len([]rune(in.Title)) > maxTitleLength {
		return fmt.Errorf("%w: title is limited to %d characters", domain.ErrInvalidInput, maxTitleLength)
	}
	return nil
}

type PostDetail struct {
	Post     *domain.Post      `json:"post"`
	Comments []*domain.Comment `json:"comments"`
}

func (s *PostService) List(ctx context.Context) ([]*domain.Post, error) {
	posts, err := s.store.Repos().Posts.List(ctx)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*domain.Post{}
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (*PostDetail, error) {
	repos := s.store.Repos()
	p, err := repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := repos.Posts.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*domain.Comment{}
	}
	return &PostDetail{Post: p, Comments: comments}, nil
}

func (s *PostService) Create(ctx context.Context, author *domain.User, in PostInput) (*domain.Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	p := &domain.Post{Title: in.Title, Content: in.Content, AuthorID: author.ID, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Repos().Posts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostService) Update(ctx context.Context, id int64, in PostInput) (*domain.Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	posts := s.store.Repos().Posts
	p, err := posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Title, p.Content, p.UpdatedAt = in.Title, in.Content, s.now()
	if err := posts.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostService) Delete(ctx context.Context, id int64) error {
	return s.store.Repos().Posts.Delete(ctx, id)
}

func (s *PostService) AddComment(ctx context.Context, author *domain.User, postID int64, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment cannot be empty", domain.ErrInvalidInput)
	}
	posts := s.store.Repos().Posts
	if _, err := posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	now := s.now()
	c := &domain.Comment{PostID: postID, AuthorID: author.ID, Content: content, CreatedAt: now, UpdatedAt: now}
	if err := posts.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EditComment changes a comment. Only its author may edit it.
func (s *PostService) EditComment(ctx context.Context, viewer *domain.User, id int64, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment cannot be empty", domain.ErrInvalidInput)
	}
	posts := s.store.Repos().Posts
	c, err := posts.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != viewer.ID {
		return nil, fmt.Errorf("%w: you can only edit your own comments", domain.ErrForbidden)
	}
	c.Content, c.UpdatedAt = content, s.now()
	if err := posts.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes a comment. Its author and admins may delete it.
func (s *PostService) DeleteComment(ctx context.Context, viewer *domain.User, id int64) error {
	posts := s.store.Repos().Posts
	c, err := posts.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != viewer.ID && !viewer.IsAdmin() {
		return fmt.Errorf("%w: you do not have permission to delete this comment", domain.ErrForbidden)
	}
	return posts.DeleteComment(ctx, id)
}
