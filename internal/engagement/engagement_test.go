package engagement

import (
	"context"
	"fmt"
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

type fixture struct {
	st   *store.MockStore
	eng  *Engine
	post models.Post
	u1   models.Account
	u2   models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMock()
	f := &fixture{st: st, eng: New(st, st, blob.NewMemory())}

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	f.eng.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}

	var err error
	f.u1, err = st.CreateAccount(ctx, models.Account{Name: "U1", Email: "u1@example.com", AvatarRef: "avatars/u1.png"})
	require.NoError(t, err)
	f.u2, err = st.CreateAccount(ctx, models.Account{Name: "U2", Email: "u2@example.com"})
	require.NoError(t, err)

	f.post = models.Post{ID: "p1", AuthorID: f.u1.ID, Text: "hello", CreatedAt: base}
	require.NoError(t, st.CreatePost(ctx, f.post))
	return f
}

func TestLikeUnlike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	likes, err := f.eng.Like(ctx, f.post.ID, f.u2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.u2.ID}, likes)

	_, err = f.eng.Like(ctx, f.post.ID, f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyLiked)

	likes, err = f.eng.Unlike(ctx, f.post.ID, f.u2.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)

	_, err = f.eng.Unlike(ctx, f.post.ID, f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrNotLiked)
}

func TestLike_MissingPost(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Like(context.Background(), "nope", f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	_, err = f.eng.Unlike(context.Background(), "nope", f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
}

func TestLike_ConcurrentNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.Like(ctx, f.post.ID, fmt.Sprintf("acct-%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	likes, err := f.st.GetLikes(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Len(t, likes, 32)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.eng.AddComment(ctx, f.post.ID, f.u2.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrEmptyComment)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, _, err = f.eng.AddComment(ctx, "nope", f.u2.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)

	first, _, err := f.eng.AddComment(ctx, f.post.ID, f.u1.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, "U1", first.AuthorName)
	assert.Equal(t, "avatars/u1.png", first.AuthorAvatar)
	assert.Equal(t, "mem://avatars/u1.png", first.AvatarURL)

	second, comments, err := f.eng.AddComment(ctx, f.post.ID, f.u2.ID, "second")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID, "newest first")
	assert.Equal(t, first.ID, comments[1].ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestComment_SnapshotSurvivesRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.eng.AddComment(ctx, f.post.ID, f.u2.ID, "hi")
	require.NoError(t, err)

	name := "U2 renamed"
	_, err = f.st.UpdateProfile(ctx, f.u2.ID, models.ProfileUpdate{Name: &name})
	require.NoError(t, err)

	comments, err := f.st.GetComments(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "U2", comments[0].AuthorName)
}

func TestDeleteComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, _, err := f.eng.AddComment(ctx, f.post.ID, f.u1.ID, "a")
	require.NoError(t, err)
	b, _, err := f.eng.AddComment(ctx, f.post.ID, f.u2.ID, "b")
	require.NoError(t, err)
	c, _, err := f.eng.AddComment(ctx, f.post.ID, f.u1.ID, "c")
	require.NoError(t, err)

	_, err = f.eng.DeleteComment(ctx, f.post.ID, b.ID, f.u1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "the post author does not own other people's comments")

	_, err = f.eng.DeleteComment(ctx, f.post.ID, "missing", f.u1.ID)
	assert.ErrorIs(t, err, apperr.ErrCommentNotFound)

	_, err = f.eng.DeleteComment(ctx, "nope", b.ID, f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)

	left, err := f.eng.DeleteComment(ctx, f.post.ID, b.ID, f.u2.ID)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, c.ID, left[0].ID)
	assert.Equal(t, a.ID, left[1].ID)

	_, err = f.eng.DeleteComment(ctx, f.post.ID, b.ID, f.u2.ID)
	assert.ErrorIs(t, err, apperr.ErrCommentNotFound)
}

func TestStoreFailurePropagates(t *testing.T) {
	eng := New(store.MockStoreFail{}, store.MockStoreFail{}, blob.NewMemory())
	_, err := eng.Like(context.Background(), "p1", "u1")
	assert.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}
