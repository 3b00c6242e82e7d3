package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Directory, *store.MockStore, *blob.Memory) {
	t.Helper()
	st := store.NewMock()
	mem := blob.NewMemory()
	return New(st, mem), st, mem
}

func register(t *testing.T, st *store.MockStore, name, email string, at time.Time) models.Account {
	t.Helper()
	acc, err := st.CreateAccount(context.Background(), models.Account{Name: name, Email: email, CreatedAt: at})
	require.NoError(t, err)
	return acc
}

func TestFollowUnfollow_BothViews(t *testing.T) {
	ctx := context.Background()
	d, st, _ := setup(t)
	now := time.Now()
	a := register(t, st, "A", "a@example.com", now)
	b := register(t, st, "B", "b@example.com", now.Add(time.Second))

	follower, err := d.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, follower.Following)

	target, err := d.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, target.Followers)

	follower, err = d.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, follower.Following)

	target, err = d.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, target.Followers)
}

func TestFollow_Errors(t *testing.T) {
	ctx := context.Background()
	d, st, _ := setup(t)
	a := register(t, st, "A", "a@example.com", time.Now())
	b := register(t, st, "B", "b@example.com", time.Now())

	_, err := d.Follow(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrSelfFollow)

	_, err = d.Follow(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)

	_, err = d.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = d.Follow(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyFollowing)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = d.Unfollow(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFollowing)

	_, err = d.Unfollow(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrSelfFollow)
}

// Concurrent follow/unfollow on one pair must settle on one of the two outcomes
// with both views agreeing.
func TestFollow_ConcurrentPairStaysConsistent(t *testing.T) {
	ctx := context.Background()
	d, st, _ := setup(t)
	a := register(t, st, "A", "a@example.com", time.Now())
	b := register(t, st, "B", "b@example.com", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = d.Follow(ctx, a.ID, b.ID)
			} else {
				_, _ = d.Unfollow(ctx, a.ID, b.ID)
			}
		}(i)
	}
	wg.Wait()

	fa, err := d.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	fb, err := d.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, len(fa.Following), len(fb.Followers))
	assert.LessOrEqual(t, len(fa.Following), 1)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	d, st, _ := setup(t)
	now := time.Now()
	register(t, st, "Abebe Kebede", "abebe@example.com", now)
	register(t, st, "Sara", "sara@mail.org", now.Add(time.Second))
	register(t, st, "Kebede Two", "k2@example.com", now.Add(2*time.Second))

	all, err := d.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	hits, err := d.Search(ctx, "KEBEDE")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Abebe Kebede", hits[0].Name)
	assert.Equal(t, "Kebede Two", hits[1].Name)

	hits, err = d.Search(ctx, "mail.org")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Sara", hits[0].Name)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	d, st, mem := setup(t)
	a := register(t, st, "A", "a@example.com", time.Now())

	blank := "   "
	_, err := d.UpdateProfile(ctx, a.ID, models.ProfileUpdate{Name: &blank})
	assert.ErrorIs(t, err, ErrNameRequired)

	mem.Objects["avatars/old.png"] = []byte("x")
	oldRef := "avatars/old.png"
	_, err = d.UpdateProfile(ctx, a.ID, models.ProfileUpdate{AvatarRef: &oldRef})
	require.NoError(t, err)

	name, bio, newRef := " Almaz ", "hello", "avatars/new.png"
	mem.Objects[newRef] = []byte("y")
	acc, err := d.UpdateProfile(ctx, a.ID, models.ProfileUpdate{Name: &name, Bio: &bio, AvatarRef: &newRef})
	require.NoError(t, err)
	assert.Equal(t, "Almaz", acc.Name)
	assert.Equal(t, "hello", acc.Bio)
	assert.Equal(t, newRef, acc.AvatarRef)
	assert.Equal(t, mem.URL(newRef), acc.AvatarURL)
	assert.False(t, mem.Has(oldRef), "replaced avatar is released")
	assert.True(t, mem.Has(newRef))

	_, err = d.UpdateProfile(ctx, "missing", models.ProfileUpdate{Bio: &bio})
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
}

func TestStoreFailurePropagates(t *testing.T) {
	d := New(store.MockStoreFail{}, blob.NewMemory())
	_, err := d.ListAccounts(context.Background())
	assert.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}
