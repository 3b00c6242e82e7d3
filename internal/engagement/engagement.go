// Package engagement applies likes and comments to posts.
package engagement

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

// Accounts resolves commenter snapshots.
type Accounts interface {
	GetAccounts(ctx context.Context, ids []string) (map[string]models.Account, error)
}

type Engine struct {
	posts    store.PostStore
	accounts Accounts
	blobs    blob.Store
	now      func() time.Time
}

func New(posts store.PostStore, accounts Accounts, blobs blob.Store) *Engine {
	return &Engine{posts: posts, accounts: accounts, blobs: blobs, now: time.Now}
}

// Like adds accountID to the post's likes and returns the new like set.
func (e *Engine) Like(ctx context.Context, postID, accountID string) ([]string, error) {
	if _, err := e.posts.GetPostRow(ctx, postID); err != nil {
		return nil, err
	}
	applied, err := e.posts.AddLike(ctx, postID, accountID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.ErrAlreadyLiked
	}
	logg.Debug("engagement", "Post liked by user_id="+accountID)
	return e.posts.GetLikes(ctx, postID)
}

// Unlike removes accountID from the post's likes and returns the new like set.
func (e *Engine) Unlike(ctx context.Context, postID, accountID string) ([]string, error) {
	if _, err := e.posts.GetPostRow(ctx, postID); err != nil {
		return nil, err
	}
	applied, err := e.posts.RemoveLike(ctx, postID, accountID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.ErrNotLiked
	}
	logg.Debug("engagement", "Post unliked by user_id="+accountID)
	return e.posts.GetLikes(ctx, postID)
}

// AddComment stores a comment carrying the commenter's current name and avatar
// and returns it with the post's comments, newest first.
func (e *Engine) AddComment(ctx context.Context, postID, accountID, text string) (models.Comment, []models.Comment, error) {
	if _, err := e.posts.GetPostRow(ctx, postID); err != nil {
		return models.Comment{}, nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, nil, apperr.ErrEmptyComment
	}

	byID, err := e.accounts.GetAccounts(ctx, []string{accountID})
	if err != nil {
		return models.Comment{}, nil, err
	}
	author, ok := byID[accountID]
	if !ok {
		return models.Comment{}, nil, apperr.ErrAccountNotFound
	}

	c := models.Comment{
		ID:           uuid.Must(uuid.NewV7()).String(),
		PostID:       postID,
		AuthorID:     accountID,
		AuthorName:   author.Name,
		AuthorAvatar: author.AvatarRef,
		Text:         text,
		CreatedAt:    e.now().UTC().Truncate(time.Millisecond),
	}
	if err := e.posts.AddComment(ctx, c); err != nil {
		return models.Comment{}, nil, err
	}
	c.AvatarURL = blob.URLOf(e.blobs, c.AuthorAvatar)

	comments, err := e.comments(ctx, postID)
	if err != nil {
		return models.Comment{}, nil, err
	}
	logg.Debug("engagement", "Comment added by user_id="+accountID)
	return c, comments, nil
}

// DeleteComment removes a comment written by callerID and returns the
// remaining comments, order unchanged.
func (e *Engine) DeleteComment(ctx context.Context, postID, commentID, callerID string) ([]models.Comment, error) {
	if _, err := e.posts.GetPostRow(ctx, postID); err != nil {
		return nil, err
	}
	c, err := e.posts.GetComment(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != callerID {
		return nil, apperr.ErrForbidden
	}
	applied, err := e.posts.DeleteComment(ctx, c)
	if err != nil {
		return nil, err
	}
	if !applied {
		// removed concurrently, e.g. by a second delete of the same comment
		return nil, apperr.ErrCommentNotFound
	}
	return e.comments(ctx, postID)
}

func (e *Engine) comments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments, err := e.posts.GetComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	blob.ResolveComments(e.blobs, comments)
	return comments, nil
}
