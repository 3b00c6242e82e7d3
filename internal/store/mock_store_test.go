package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, m *MockStore, name string) models.Account {
	t.Helper()
	a, err := m.CreateAccount(context.Background(), models.Account{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return a
}

func TestMockStore_EmailUnique(t *testing.T) {
	m := NewMock()
	newAccount(t, m, "almaz")

	_, err := m.CreateAccount(context.Background(), models.Account{Name: "other", Email: " ALMAZ@example.com "})
	assert.ErrorIs(t, err, apperr.ErrEmailTaken)
}

func TestMockStore_FollowEdgeBothViews(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	a := newAccount(t, m, "a")
	b := newAccount(t, m, "b")

	applied, err := m.AddFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = m.AddFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, applied, "duplicate edge must not apply")

	gotA, _ := m.GetAccount(ctx, a.ID)
	gotB, _ := m.GetAccount(ctx, b.ID)
	assert.Equal(t, []string{b.ID}, gotA.Following)
	assert.Equal(t, []string{a.ID}, gotB.Followers)

	applied, err = m.RemoveFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	gotA, _ = m.GetAccount(ctx, a.ID)
	gotB, _ = m.GetAccount(ctx, b.ID)
	assert.Empty(t, gotA.Following)
	assert.Empty(t, gotB.Followers)
}

func TestMockStore_ConcurrentLikesNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	post := models.Post{ID: "p1", AuthorID: "u0", Text: "hi", CreatedAt: time.Now()}
	require.NoError(t, m.CreatePost(ctx, post))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			applied, err := m.AddLike(ctx, post.ID, fmt.Sprintf("u%02d", i))
			assert.NoError(t, err)
			assert.True(t, applied)
		}(i)
	}
	wg.Wait()

	likes, err := m.GetLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, likes, 50)
}

func TestMockStore_DeletePostDropsCommentsAndLikes(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	post := models.Post{ID: "p1", AuthorID: "u1", Text: "hi", CreatedAt: time.Now()}
	require.NoError(t, m.CreatePost(ctx, post))
	_, _ = m.AddLike(ctx, post.ID, "u2")
	require.NoError(t, m.AddComment(ctx, models.Comment{ID: "c1", PostID: post.ID, AuthorID: "u2", Text: "x", CreatedAt: time.Now()}))

	require.NoError(t, m.DeletePost(ctx, post))

	_, err := m.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	_, err = m.GetComment(ctx, post.ID, "c1")
	assert.ErrorIs(t, err, apperr.ErrCommentNotFound)
	likes, _ := m.GetLikes(ctx, post.ID)
	assert.Empty(t, likes)
}

func TestMockStore_CommentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, m.AddComment(ctx, models.Comment{
			ID: id, PostID: "p", AuthorID: "u", Text: id, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	comments, err := m.GetComments(ctx, "p")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "c3", comments[0].ID)
	assert.Equal(t, "c1", comments[2].ID)
}

func TestMockStore_DeleteCommentRequiresOwner(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	c := models.Comment{ID: "c1", PostID: "p", AuthorID: "owner", CreatedAt: time.Now()}
	require.NoError(t, m.AddComment(ctx, c))

	applied, err := m.DeleteComment(ctx, models.Comment{ID: "c1", PostID: "p", AuthorID: "someone"})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = m.DeleteComment(ctx, c)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(2 * time.Second)},
		{ID: "c", CreatedAt: base.Add(time.Second)},
		{ID: "d", CreatedAt: base.Add(2 * time.Second)},
	}
	SortNewestFirst(posts)

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids)
}

func TestMockStoreFail(t *testing.T) {
	var s StoreInterface = MockStoreFail{}
	_, err := s.GetPost(context.Background(), "x")
	assert.Error(t, err)
}

func TestCreateAccountTimestampMatchesStoredPrecision(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	created, err := m.CreateAccount(ctx, models.Account{Name: "a", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, created.CreatedAt.Truncate(time.Millisecond))

	got, err := m.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestSortByRegistrationTieBreaksOnID(t *testing.T) {
	at := registrationTime()
	first := models.Account{ID: uuid.Must(uuid.NewV7()).String(), CreatedAt: at}
	second := models.Account{ID: uuid.Must(uuid.NewV7()).String(), CreatedAt: at}
	earlier := models.Account{ID: "ffffffff-0000-7000-8000-000000000000", CreatedAt: at.Add(-time.Millisecond)}

	rows := []models.Account{second, first, earlier}
	sortByRegistration(rows)
	assert.Equal(t, []string{earlier.ID, first.ID, second.ID},
		[]string{rows[0].ID, rows[1].ID, rows[2].ID})
}
