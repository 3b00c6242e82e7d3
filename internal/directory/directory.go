// Package directory holds account profiles and the follow graph.
//
// The graph is a single edge set in the store; an account's followers and
// following lists are both read from it, so a follow or unfollow is visible
// from both ends at once.
package directory

import (
	"context"
	"strings"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
)

var logg = logger.New()

var ErrNameRequired = apperr.New(apperr.Validation, "Name is required")

type Directory struct {
	accounts store.AccountStore
	blobs    blob.Store
}

func New(accounts store.AccountStore, blobs blob.Store) *Directory {
	return &Directory{accounts: accounts, blobs: blobs}
}

func (d *Directory) GetAccount(ctx context.Context, id string) (models.Account, error) {
	acc, err := d.accounts.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	blob.ResolveAccount(d.blobs, &acc)
	return acc, nil
}

// ListAccounts returns every account in registration order.
func (d *Directory) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accs, err := d.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accs {
		blob.ResolveAccount(d.blobs, &accs[i])
	}
	return accs, nil
}

// Search filters ListAccounts by a case-insensitive substring of name or email.
// An empty query matches everyone.
func (d *Directory) Search(ctx context.Context, q string) ([]models.Account, error) {
	accs, err := d.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return accs, nil
	}
	out := make([]models.Account, 0, len(accs))
	for _, a := range accs {
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(a.Email), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateProfile applies upd to the account. A replaced avatar is released
// once the new one is stored.
func (d *Directory) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.Account, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Account{}, ErrNameRequired
		}
		upd.Name = &name
	}

	before, err := d.accounts.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	acc, err := d.accounts.UpdateProfile(ctx, id, upd)
	if err != nil {
		return models.Account{}, err
	}

	if upd.AvatarRef != nil && before.AvatarRef != "" && before.AvatarRef != *upd.AvatarRef {
		// the profile already points at the new avatar; a leftover blob is only logged
		_ = blob.Release(ctx, d.blobs, before.AvatarRef)
	}
	blob.ResolveAccount(d.blobs, &acc)
	logg.Info("directory", "Profile updated for user_id="+id)
	return acc, nil
}

// Follow makes followerID follow targetID and returns the follower's account.
func (d *Directory) Follow(ctx context.Context, followerID, targetID string) (models.Account, error) {
	if err := d.checkPair(ctx, followerID, targetID); err != nil {
		return models.Account{}, err
	}
	applied, err := d.accounts.AddFollow(ctx, followerID, targetID)
	if err != nil {
		return models.Account{}, err
	}
	if !applied {
		return models.Account{}, apperr.ErrAlreadyFollowing
	}
	logg.Info("directory", "user_id="+followerID+" followed user_id="+targetID)
	return d.GetAccount(ctx, followerID)
}

// Unfollow removes the edge followerID -> targetID and returns the follower's account.
func (d *Directory) Unfollow(ctx context.Context, followerID, targetID string) (models.Account, error) {
	if err := d.checkPair(ctx, followerID, targetID); err != nil {
		return models.Account{}, err
	}
	applied, err := d.accounts.RemoveFollow(ctx, followerID, targetID)
	if err != nil {
		return models.Account{}, err
	}
	if !applied {
		return models.Account{}, apperr.ErrNotFollowing
	}
	logg.Info("directory", "user_id="+followerID+" unfollowed user_id="+targetID)
	return d.GetAccount(ctx, followerID)
}

func (d *Directory) checkPair(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return apperr.ErrSelfFollow
	}
	if _, err := d.accounts.GetAccount(ctx, targetID); err != nil {
		return err
	}
	_, err := d.accounts.GetAccount(ctx, followerID)
	return err
}
