package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"github.com/gocql/gocql"
	"github.com/sourcegraph/conc/pool"
)

// --- Post operations ---

// CreatePost writes the post row and its author-timeline entry in one logged batch.
func (s *Store) CreatePost(ctx context.Context, p models.Post) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO posts (post_id, author_id, text, image_ref, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, p.Text, p.ImageRef, p.CreatedAt)
	batch.Query(`INSERT INTO posts_by_author (author_id, created_at, post_id) VALUES (?, ?, ?)`,
		p.AuthorID, p.CreatedAt, p.ID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add post", err)
		return fmt.Errorf("create post: %w", err)
	}

	logg.Info("store", "Post added to posts table (post content anonymized)")
	return nil
}

func (s *Store) GetPostRow(ctx context.Context, id string) (models.Post, error) {
	if _, err := gocql.ParseUUID(id); err != nil {
		return models.Post{}, apperr.ErrPostNotFound
	}
	var p models.Post
	err := s.Session.Query(`
		SELECT post_id, author_id, text, image_ref, created_at
		FROM posts WHERE post_id = ?`, id,
	).WithContext(ctx).Scan(&p.ID, &p.AuthorID, &p.Text, &p.ImageRef, &p.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Post{}, apperr.ErrPostNotFound
		}
		logg.Error("store", "Failed to query post", err)
		return models.Post{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// GetPost returns the post with its likes and comments.
func (s *Store) GetPost(ctx context.Context, id string) (models.Post, error) {
	p, err := s.GetPostRow(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if p.Likes, err = s.GetLikes(ctx, id); err != nil {
		return models.Post{}, err
	}
	if p.Comments, err = s.GetComments(ctx, id); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

func (s *Store) ListAllPosts(ctx context.Context) ([]models.Post, error) {
	ids, err := s.scanIDs(ctx, `SELECT post_id FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return s.loadPosts(ctx, ids)
}

func (s *Store) ListPostsByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error) {
	var ids []string
	for _, author := range authorIDs {
		if _, err := gocql.ParseUUID(author); err != nil {
			continue
		}
		authorPosts, err := s.scanIDs(ctx, `SELECT post_id FROM posts_by_author WHERE author_id = ?`, author)
		if err != nil {
			return nil, fmt.Errorf("list posts by author: %w", err)
		}
		ids = append(ids, authorPosts...)
	}
	return s.loadPosts(ctx, ids)
}

// loadPosts hydrates ids in parallel and returns them newest first. Posts
// deleted between the index read and the row read are dropped.
func (s *Store) loadPosts(ctx context.Context, ids []string) ([]models.Post, error) {
	posts := make([]models.Post, len(ids))
	found := make([]bool, len(ids))

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(hydrateLimit)
	for i, id := range ids {
		p.Go(func(ctx context.Context) error {
			post, err := s.GetPost(ctx, id)
			if errors.Is(err, apperr.ErrPostNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			posts[i], found[i] = post, true
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Post, 0, len(posts))
	for i := range posts {
		if found[i] {
			out = append(out, posts[i])
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders posts by CreatedAt descending, ties broken by id.
func SortNewestFirst(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func (s *Store) UpdatePostText(ctx context.Context, id, text string) error {
	applied, err := s.Session.Query(`UPDATE posts SET text = ? WHERE post_id = ? IF EXISTS`, text, id).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to update post text", err)
		return fmt.Errorf("update post: %w", err)
	}
	if !applied {
		return apperr.ErrPostNotFound
	}
	return nil
}

// DeletePost drops the post row, its timeline entry and the whole likes and
// comments partitions in one logged batch.
func (s *Store) DeletePost(ctx context.Context, p models.Post) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, p.ID)
	batch.Query(`DELETE FROM posts_by_author WHERE author_id = ? AND created_at = ? AND post_id = ?`,
		p.AuthorID, p.CreatedAt, p.ID)
	batch.Query(`DELETE FROM post_likes WHERE post_id = ?`, p.ID)
	batch.Query(`DELETE FROM post_comments WHERE post_id = ?`, p.ID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return fmt.Errorf("delete post: %w", err)
	}
	logg.Info("store", "Post deleted with likes and comments (post ID anonymized)")
	return nil
}

// --- Like operations ---

// Likes are rows in the post's partition, so concurrent likes by different
// accounts never overwrite each other.

func (s *Store) AddLike(ctx context.Context, postID, accountID string) (bool, error) {
	applied, err := s.Session.Query(`
		INSERT INTO post_likes (post_id, account_id, created_at)
		VALUES (?, ?, ?) IF NOT EXISTS`,
		postID, accountID, time.Now().UTC(),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to add like", err)
		return false, fmt.Errorf("add like: %w", err)
	}
	return applied, nil
}

func (s *Store) RemoveLike(ctx context.Context, postID, accountID string) (bool, error) {
	applied, err := s.Session.Query(`
		DELETE FROM post_likes WHERE post_id = ? AND account_id = ? IF EXISTS`,
		postID, accountID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to remove like", err)
		return false, fmt.Errorf("remove like: %w", err)
	}
	return applied, nil
}

func (s *Store) GetLikes(ctx context.Context, postID string) ([]string, error) {
	likes, err := s.scanIDs(ctx, `SELECT account_id FROM post_likes WHERE post_id = ?`, postID)
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}
	return likes, nil
}

// --- Comment operations ---

const commentColumns = `post_id, comment_id, author_id, author_name, author_avatar, text, created_at`

func (s *Store) AddComment(ctx context.Context, c models.Comment) error {
	if err := s.Session.Query(`
		INSERT INTO post_comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.PostID, c.ID, c.AuthorID, c.AuthorName, c.AuthorAvatar, c.Text, c.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add comment", err)
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func scanComment(scan func(dest ...interface{}) bool) (models.Comment, bool) {
	var c models.Comment
	ok := scan(&c.PostID, &c.ID, &c.AuthorID, &c.AuthorName, &c.AuthorAvatar, &c.Text, &c.CreatedAt)
	return c, ok
}

func (s *Store) GetComment(ctx context.Context, postID, commentID string) (models.Comment, error) {
	if _, err := gocql.ParseUUID(commentID); err != nil {
		return models.Comment{}, apperr.ErrCommentNotFound
	}
	// comment_id is the last clustering column; filtering stays inside one partition
	iter := s.Session.Query(`
		SELECT `+commentColumns+` FROM post_comments
		WHERE post_id = ? AND comment_id = ? ALLOW FILTERING`,
		postID, commentID,
	).WithContext(ctx).Iter()
	c, ok := scanComment(iter.Scan)
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to query comment", err)
		return models.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	if !ok {
		return models.Comment{}, apperr.ErrCommentNotFound
	}
	return c, nil
}

func (s *Store) DeleteComment(ctx context.Context, c models.Comment) (bool, error) {
	applied, err := s.Session.Query(`
		DELETE FROM post_comments
		WHERE post_id = ? AND created_at = ? AND comment_id = ?
		IF author_id = ?`,
		c.PostID, c.CreatedAt, c.ID, c.AuthorID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to delete comment", err)
		return false, fmt.Errorf("delete comment: %w", err)
	}
	return applied, nil
}

// GetComments returns the post's comments newest first (clustering order).
func (s *Store) GetComments(ctx context.Context, postID string) ([]models.Comment, error) {
	iter := s.Session.Query(`SELECT `+commentColumns+` FROM post_comments WHERE post_id = ?`, postID).
		WithContext(ctx).Iter()
	res := []models.Comment{}
	for {
		c, ok := scanComment(iter.Scan)
		if !ok {
			break
		}
		res = append(res, c)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to get comments", err)
		return nil, fmt.Errorf("get comments: %w", err)
	}
	return res, nil
}
