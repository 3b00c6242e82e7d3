// Package posts owns post lifecycle rules: who may edit or delete a post and
// what happens to its image.
package posts

import (
	"context"
	"strings"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/google/uuid"
)

var logg = logger.New()

type Service struct {
	posts store.PostStore
	blobs blob.Store
	now   func() time.Time
}

func New(posts store.PostStore, blobs blob.Store) *Service {
	return &Service{posts: posts, blobs: blobs, now: time.Now}
}

// Create stores a new post. At least one of text and imageRef must be set.
// If the write fails the uploaded image is released.
func (s *Service) Create(ctx context.Context, authorID, text, imageRef string) (models.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" && imageRef == "" {
		return models.Post{}, apperr.ErrEmptyPost
	}

	p := models.Post{
		ID:       uuid.Must(uuid.NewV7()).String(),
		AuthorID: authorID,
		Text:     text,
		ImageRef: imageRef,
		// Cassandra timestamps keep milliseconds
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.posts.CreatePost(ctx, p); err != nil {
		_ = blob.Release(ctx, s.blobs, imageRef)
		return models.Post{}, err
	}

	p.Likes, p.Comments = []string{}, []models.Comment{}
	blob.ResolvePost(s.blobs, &p)
	logg.Info("posts", "Post created by user_id="+authorID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Post, error) {
	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	blob.ResolvePost(s.blobs, &p)
	return p, nil
}

// ListAll returns every post, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Post, error) {
	return s.resolve(s.posts.ListAllPosts(ctx))
}

// ListByAuthors returns the posts of the given authors, newest first.
func (s *Service) ListByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error) {
	if len(authorIDs) == 0 {
		return []models.Post{}, nil
	}
	return s.resolve(s.posts.ListPostsByAuthors(ctx, authorIDs))
}

func (s *Service) resolve(list []models.Post, err error) ([]models.Post, error) {
	if err != nil {
		return nil, err
	}
	for i := range list {
		blob.ResolvePost(s.blobs, &list[i])
	}
	return list, nil
}

// UpdateText replaces the text of a post owned by callerID. The image is kept.
func (s *Service) UpdateText(ctx context.Context, postID, callerID, text string) (models.Post, error) {
	p, err := s.owned(ctx, postID, callerID)
	if err != nil {
		return models.Post{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" && p.ImageRef == "" {
		return models.Post{}, apperr.ErrEmptyPost
	}
	if err := s.posts.UpdatePostText(ctx, postID, text); err != nil {
		return models.Post{}, err
	}
	return s.Get(ctx, postID)
}

// Delete removes a post owned by callerID with its likes and comments, then
// releases its image. A failed release is logged only.
func (s *Service) Delete(ctx context.Context, postID, callerID string) error {
	p, err := s.owned(ctx, postID, callerID)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, p); err != nil {
		return err
	}
	_ = blob.Release(ctx, s.blobs, p.ImageRef)
	logg.Info("posts", "Post deleted by user_id="+callerID)
	return nil
}

func (s *Service) owned(ctx context.Context, postID, callerID string) (models.Post, error) {
	p, err := s.posts.GetPostRow(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if p.AuthorID != callerID {
		return models.Post{}, apperr.ErrForbidden
	}
	return p, nil
}
