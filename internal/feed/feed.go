// Package feed assembles the post lists shown to a viewer.
//
// Author snapshots are looked up on every call and never cached, so a profile
// edit shows up in the next feed read.
package feed

import (
	"context"
	"slices"

	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
)

// Posts is the read side of the post service.
type Posts interface {
	Get(ctx context.Context, id string) (models.Post, error)
	ListAll(ctx context.Context) ([]models.Post, error)
	ListByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error)
}

// Accounts is the subset of the account store the assembler reads.
type Accounts interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccounts(ctx context.Context, ids []string) (map[string]models.Account, error)
}

var _ Accounts = (store.AccountStore)(nil)

type Assembler struct {
	accounts Accounts
	posts    Posts
	blobs    blob.Store
}

func New(accounts Accounts, posts Posts, blobs blob.Store) *Assembler {
	return &Assembler{accounts: accounts, posts: posts, blobs: blobs}
}

// BuildFeed returns the posts of accountID and everyone it follows, newest first.
func (a *Assembler) BuildFeed(ctx context.Context, accountID string) ([]models.Post, error) {
	acc, err := a.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	authors := append([]string{accountID}, acc.Following...)
	slices.Sort(authors)
	authors = slices.Compact(authors)

	list, err := a.posts.ListByAuthors(ctx, authors)
	if err != nil {
		return nil, err
	}
	return a.withAuthors(ctx, list)
}

// BuildGlobalFeed returns every post, newest first.
func (a *Assembler) BuildGlobalFeed(ctx context.Context) ([]models.Post, error) {
	list, err := a.posts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return a.withAuthors(ctx, list)
}

// BuildAuthorFeed returns the posts written by authorID, newest first.
func (a *Assembler) BuildAuthorFeed(ctx context.Context, authorID string) ([]models.Post, error) {
	if _, err := a.accounts.GetAccount(ctx, authorID); err != nil {
		return nil, err
	}
	list, err := a.posts.ListByAuthors(ctx, []string{authorID})
	if err != nil {
		return nil, err
	}
	return a.withAuthors(ctx, list)
}

func (a *Assembler) GetPost(ctx context.Context, id string) (models.Post, error) {
	p, err := a.posts.Get(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	list, err := a.withAuthors(ctx, []models.Post{p})
	if err != nil {
		return models.Post{}, err
	}
	return list[0], nil
}

// withAuthors attaches the current author snapshot to each post. The order of
// list is kept as the post service returned it.
func (a *Assembler) withAuthors(ctx context.Context, list []models.Post) ([]models.Post, error) {
	if len(list) == 0 {
		return []models.Post{}, nil
	}
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.AuthorID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	byID, err := a.accounts.GetAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		author := &models.Author{ID: list[i].AuthorID}
		if acc, ok := byID[author.ID]; ok {
			author.Name = acc.Name
			author.AvatarRef = acc.AvatarRef
			author.AvatarURL = blob.URLOf(a.blobs, acc.AvatarRef)
		}
		list[i].Author = author
	}
	return list, nil
}
