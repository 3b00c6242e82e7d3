package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

const accountColumns = `account_id, name, email, password_hash, bio, avatar_ref, created_at`

// --- Account operations ---

// CreateAccount claims the email with a lightweight transaction, then writes
// the account row. The returned account carries the generated id.
func (s *Store) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	a.ID = uuid.Must(uuid.NewV7()).String()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = registrationTime()
	}

	applied, err := s.Session.Query(`
		INSERT INTO accounts_by_email (email, account_id)
		VALUES (?, ?) IF NOT EXISTS`,
		a.Email, a.ID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to claim email", err)
		return models.Account{}, fmt.Errorf("claim email: %w", err)
	}
	if !applied {
		return models.Account{}, apperr.ErrEmailTaken
	}

	if err := s.Session.Query(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Bio, a.AvatarRef, a.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to create account row", err)
		s.releaseEmail(ctx, a.Email, a.ID)
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}

	logg.Info("store", "Account created successfully (email anonymized)")
	a.Followers, a.Following = []string{}, []string{}
	return a, nil
}

// releaseEmail undoes the email claim of an account whose row was never
// written, so the address can be registered again.
func (s *Store) releaseEmail(ctx context.Context, email, accountID string) {
	if _, err := s.Session.Query(`DELETE FROM accounts_by_email WHERE email = ? IF account_id = ?`,
		email, accountID).WithContext(ctx).MapScanCAS(map[string]interface{}{}); err != nil {
		logg.Error("store", "Failed to release email claim", err)
	}
}

// registrationTime is now at the millisecond precision Cassandra keeps.
func registrationTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func scanAccount(scan func(dest ...interface{}) bool) (models.Account, bool) {
	var a models.Account
	ok := scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Bio, &a.AvatarRef, &a.CreatedAt)
	return a, ok
}

func (s *Store) getAccountRow(ctx context.Context, id string) (models.Account, error) {
	var a models.Account
	err := s.Session.Query(`SELECT `+accountColumns+` FROM accounts WHERE account_id = ?`, id).
		WithContext(ctx).
		Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Bio, &a.AvatarRef, &a.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Account{}, apperr.ErrAccountNotFound
		}
		logg.Error("store", "Failed to query account", err)
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// withEdges fills Followers and Following from the edge table.
func (s *Store) withEdges(ctx context.Context, a models.Account) (models.Account, error) {
	var err error
	if a.Following, err = s.GetFollowing(ctx, a.ID); err != nil {
		return models.Account{}, err
	}
	if a.Followers, err = s.GetFollowers(ctx, a.ID); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.Account, error) {
	if _, err := gocql.ParseUUID(id); err != nil {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	a, err := s.getAccountRow(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	return s.withEdges(ctx, a)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	var id string
	err := s.Session.Query(`SELECT account_id FROM accounts_by_email WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).WithContext(ctx).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Account{}, apperr.ErrAccountNotFound
		}
		logg.Error("store", "Failed to query account by email", err)
		return models.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return s.GetAccount(ctx, id)
}

// GetAccounts resolves profile rows only; follow edges are left empty.
// Unknown ids are absent from the result.
func (s *Store) GetAccounts(ctx context.Context, ids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	iter := s.Session.Query(`SELECT `+accountColumns+` FROM accounts WHERE account_id IN ?`, ids).
		WithContext(ctx).Iter()
	for {
		a, ok := scanAccount(iter.Scan)
		if !ok {
			break
		}
		out[a.ID] = a
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to resolve accounts", err)
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	return out, nil
}

// ListAccounts returns every account in registration order.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	iter := s.Session.Query(`SELECT ` + accountColumns + ` FROM accounts`).WithContext(ctx).Iter()
	var rows []models.Account
	for {
		a, ok := scanAccount(iter.Scan)
		if !ok {
			break
		}
		rows = append(rows, a)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list accounts", err)
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(hydrateLimit)
	for i := range rows {
		p.Go(func(ctx context.Context) error {
			a, err := s.withEdges(ctx, rows[i])
			if err != nil {
				return err
			}
			rows[i] = a
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	sortByRegistration(rows)
	return rows, nil
}

// sortByRegistration orders by created_at. Ties within one millisecond fall
// back to the id, which follows creation order because v7 ids are monotonic
// within one process.
func sortByRegistration(rows []models.Account) {
	slices.SortStableFunc(rows, func(a, b models.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.Account, error) {
	a, err := s.getAccountRow(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	applyProfile(&a, upd)

	applied, err := s.Session.Query(`
		UPDATE accounts SET name = ?, bio = ?, avatar_ref = ?
		WHERE account_id = ? IF EXISTS`,
		a.Name, a.Bio, a.AvatarRef, a.ID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to update profile", err)
		return models.Account{}, fmt.Errorf("update profile: %w", err)
	}
	if !applied {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	return s.withEdges(ctx, a)
}

func applyProfile(a *models.Account, upd models.ProfileUpdate) {
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Bio != nil {
		a.Bio = *upd.Bio
	}
	if upd.AvatarRef != nil {
		a.AvatarRef = *upd.AvatarRef
	}
}

// --- Follow operations ---

// The follow graph is one edge table keyed by (follower_id, target_id). Both
// views are read from it, so an edge appears or disappears on both sides at
// once. The conditional write serializes concurrent edits of the same pair.

func (s *Store) AddFollow(ctx context.Context, followerID, targetID string) (bool, error) {
	applied, err := s.Session.Query(`
		INSERT INTO follows (follower_id, target_id, created_at)
		VALUES (?, ?, ?) IF NOT EXISTS`,
		followerID, targetID, time.Now().UTC(),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to create follow edge", err)
		return false, fmt.Errorf("add follow: %w", err)
	}
	if applied {
		logg.Info("store", "Follow edge created (user IDs anonymized)")
	}
	return applied, nil
}

func (s *Store) RemoveFollow(ctx context.Context, followerID, targetID string) (bool, error) {
	applied, err := s.Session.Query(`
		DELETE FROM follows WHERE follower_id = ? AND target_id = ? IF EXISTS`,
		followerID, targetID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to delete follow edge", err)
		return false, fmt.Errorf("remove follow: %w", err)
	}
	if applied {
		logg.Info("store", "Follow edge removed (user IDs anonymized)")
	}
	return applied, nil
}

func (s *Store) GetFollowing(ctx context.Context, id string) ([]string, error) {
	return s.scanIDs(ctx, `SELECT target_id FROM follows WHERE follower_id = ?`, id)
}

func (s *Store) GetFollowers(ctx context.Context, id string) ([]string, error) {
	return s.scanIDs(ctx, `SELECT follower_id FROM follows WHERE target_id = ?`, id)
}

func (s *Store) scanIDs(ctx context.Context, stmt string, values ...interface{}) ([]string, error) {
	iter := s.Session.Query(stmt, values...).WithContext(ctx).Iter()

	var id string
	res := []string{}
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to read id list", err)
		return nil, err
	}
	return res, nil
}
