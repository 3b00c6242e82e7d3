package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"github.com/google/uuid"
)

type followEdge struct {
	Follower string
	Target   string
}

// MockStore simulates the Cassandra store in memory for tests and local runs.
// A single mutex stands in for Cassandra's lightweight transactions.
type MockStore struct {
	mu            sync.Mutex
	Accounts      map[string]models.Account
	Emails        map[string]string
	Edges         []followEdge
	Posts         map[string]models.Post
	Likes         map[string]map[string]bool
	Comments      map[string][]models.Comment
	Notifications map[string][]models.Notification
	ShouldFail    bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Accounts:      make(map[string]models.Account),
		Emails:        make(map[string]string),
		Posts:         make(map[string]models.Post),
		Likes:         make(map[string]map[string]bool),
		Comments:      make(map[string][]models.Comment),
		Notifications: make(map[string][]models.Notification),
	}
}

var errMockFail = errors.New("mock: store failure")

func (m *MockStore) Close() {}

// --- Accounts ---

func (m *MockStore) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Account{}, errMockFail
	}
	a.ID = uuid.Must(uuid.NewV7()).String()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = registrationTime()
	}
	if _, taken := m.Emails[a.Email]; taken {
		return models.Account{}, apperr.ErrEmailTaken
	}
	m.Emails[a.Email] = a.ID
	a.Followers, a.Following = nil, nil
	m.Accounts[a.ID] = a
	return m.withEdges(a), nil
}

// withEdges must be called with mu held.
func (m *MockStore) withEdges(a models.Account) models.Account {
	a.Followers, a.Following = []string{}, []string{}
	for _, e := range m.Edges {
		if e.Target == a.ID {
			a.Followers = append(a.Followers, e.Follower)
		}
		if e.Follower == a.ID {
			a.Following = append(a.Following, e.Target)
		}
	}
	return a
}

func (m *MockStore) GetAccount(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Account{}, errMockFail
	}
	a, ok := m.Accounts[id]
	if !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	return m.withEdges(a), nil
}

func (m *MockStore) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	id, ok := m.Emails[strings.ToLower(strings.TrimSpace(email))]
	m.mu.Unlock()
	if !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	return m.GetAccount(ctx, id)
}

func (m *MockStore) GetAccounts(_ context.Context, ids []string) (map[string]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	out := make(map[string]models.Account, len(ids))
	for _, id := range ids {
		if a, ok := m.Accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *MockStore) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	rows := make([]models.Account, 0, len(m.Accounts))
	for _, a := range m.Accounts {
		rows = append(rows, m.withEdges(a))
	}
	sortByRegistration(rows)
	return rows, nil
}

func (m *MockStore) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Account{}, errMockFail
	}
	a, ok := m.Accounts[id]
	if !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	applyProfile(&a, upd)
	m.Accounts[id] = a
	return m.withEdges(a), nil
}

// --- Follow graph ---

func (m *MockStore) AddFollow(_ context.Context, followerID, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	edge := followEdge{Follower: followerID, Target: targetID}
	if slices.Contains(m.Edges, edge) {
		return false, nil
	}
	m.Edges = append(m.Edges, edge)
	return true, nil
}

func (m *MockStore) RemoveFollow(_ context.Context, followerID, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	edge := followEdge{Follower: followerID, Target: targetID}
	i := slices.Index(m.Edges, edge)
	if i < 0 {
		return false, nil
	}
	m.Edges = slices.Delete(m.Edges, i, i+1)
	return true, nil
}

func (m *MockStore) GetFollowing(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return m.withEdges(models.Account{ID: id}).Following, nil
}

func (m *MockStore) GetFollowers(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return m.withEdges(models.Account{ID: id}).Followers, nil
}

// --- Posts ---

func (m *MockStore) CreatePost(_ context.Context, p models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	p.Likes, p.Comments = nil, nil
	m.Posts[p.ID] = p
	return nil
}

// hydrate must be called with mu held.
func (m *MockStore) hydrate(p models.Post) models.Post {
	p.Likes = []string{}
	for id := range m.Likes[p.ID] {
		p.Likes = append(p.Likes, id)
	}
	slices.Sort(p.Likes)
	p.Comments = append([]models.Comment{}, m.Comments[p.ID]...)
	return p
}

func (m *MockStore) GetPost(_ context.Context, id string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, errMockFail
	}
	p, ok := m.Posts[id]
	if !ok {
		return models.Post{}, apperr.ErrPostNotFound
	}
	return m.hydrate(p), nil
}

func (m *MockStore) GetPostRow(_ context.Context, id string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, errMockFail
	}
	p, ok := m.Posts[id]
	if !ok {
		return models.Post{}, apperr.ErrPostNotFound
	}
	return p, nil
}

func (m *MockStore) ListAllPosts(_ context.Context) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	out := make([]models.Post, 0, len(m.Posts))
	for _, p := range m.Posts {
		out = append(out, m.hydrate(p))
	}
	SortNewestFirst(out)
	return out, nil
}

func (m *MockStore) ListPostsByAuthors(_ context.Context, authorIDs []string) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	out := []models.Post{}
	for _, p := range m.Posts {
		if slices.Contains(authorIDs, p.AuthorID) {
			out = append(out, m.hydrate(p))
		}
	}
	SortNewestFirst(out)
	return out, nil
}

func (m *MockStore) UpdatePostText(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	p, ok := m.Posts[id]
	if !ok {
		return apperr.ErrPostNotFound
	}
	p.Text = text
	m.Posts[id] = p
	return nil
}

func (m *MockStore) DeletePost(_ context.Context, p models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	delete(m.Posts, p.ID)
	delete(m.Likes, p.ID)
	delete(m.Comments, p.ID)
	return nil
}

// --- Likes ---

func (m *MockStore) AddLike(_ context.Context, postID, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	if m.Likes[postID] == nil {
		m.Likes[postID] = make(map[string]bool)
	}
	if m.Likes[postID][accountID] {
		return false, nil
	}
	m.Likes[postID][accountID] = true
	return true, nil
}

func (m *MockStore) RemoveLike(_ context.Context, postID, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	if !m.Likes[postID][accountID] {
		return false, nil
	}
	delete(m.Likes[postID], accountID)
	return true, nil
}

func (m *MockStore) GetLikes(_ context.Context, postID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return m.hydrate(models.Post{ID: postID}).Likes, nil
}

// --- Comments ---

func (m *MockStore) AddComment(_ context.Context, c models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	comments := append(m.Comments[c.PostID], c)
	slices.SortStableFunc(comments, func(a, b models.Comment) int {
		if d := b.CreatedAt.Compare(a.CreatedAt); d != 0 {
			return d
		}
		return strings.Compare(b.ID, a.ID)
	})
	m.Comments[c.PostID] = comments
	return nil
}

func (m *MockStore) GetComment(_ context.Context, postID, commentID string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Comment{}, errMockFail
	}
	for _, c := range m.Comments[postID] {
		if c.ID == commentID {
			return c, nil
		}
	}
	return models.Comment{}, apperr.ErrCommentNotFound
}

func (m *MockStore) DeleteComment(_ context.Context, c models.Comment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	comments := m.Comments[c.PostID]
	i := slices.IndexFunc(comments, func(x models.Comment) bool {
		return x.ID == c.ID && x.AuthorID == c.AuthorID
	})
	if i < 0 {
		return false, nil
	}
	m.Comments[c.PostID] = slices.Delete(comments, i, i+1)
	return true, nil
}

func (m *MockStore) GetComments(_ context.Context, postID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return append([]models.Comment{}, m.Comments[postID]...), nil
}

// --- Notifications ---

func (m *MockStore) AddNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	m.Notifications[n.RecipientID] = append([]models.Notification{n}, m.Notifications[n.RecipientID]...)
	return nil
}

func (m *MockStore) GetNotifications(_ context.Context, accountID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	list := m.Notifications[accountID]
	if len(list) > limit {
		list = list[:limit]
	}
	return append([]models.Notification{}, list...), nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errFail = errors.New("mock store failed")

func (MockStoreFail) Close() {}

func (MockStoreFail) CreateAccount(context.Context, models.Account) (models.Account, error) {
	return models.Account{}, errFail
}
func (MockStoreFail) GetAccount(context.Context, string) (models.Account, error) {
	return models.Account{}, errFail
}
func (MockStoreFail) GetAccountByEmail(context.Context, string) (models.Account, error) {
	return models.Account{}, errFail
}
func (MockStoreFail) GetAccounts(context.Context, []string) (map[string]models.Account, error) {
	return nil, errFail
}
func (MockStoreFail) ListAccounts(context.Context) ([]models.Account, error) { return nil, errFail }
func (MockStoreFail) UpdateProfile(context.Context, string, models.ProfileUpdate) (models.Account, error) {
	return models.Account{}, errFail
}
func (MockStoreFail) AddFollow(context.Context, string, string) (bool, error)    { return false, errFail }
func (MockStoreFail) RemoveFollow(context.Context, string, string) (bool, error) { return false, errFail }
func (MockStoreFail) GetFollowing(context.Context, string) ([]string, error)     { return nil, errFail }
func (MockStoreFail) GetFollowers(context.Context, string) ([]string, error)     { return nil, errFail }
func (MockStoreFail) CreatePost(context.Context, models.Post) error               { return errFail }
func (MockStoreFail) GetPost(context.Context, string) (models.Post, error) {
	return models.Post{}, errFail
}
func (MockStoreFail) GetPostRow(context.Context, string) (models.Post, error) {
	return models.Post{}, errFail
}
func (MockStoreFail) ListAllPosts(context.Context) ([]models.Post, error) { return nil, errFail }
func (MockStoreFail) ListPostsByAuthors(context.Context, []string) ([]models.Post, error) {
	return nil, errFail
}
func (MockStoreFail) UpdatePostText(context.Context, string, string) error     { return errFail }
func (MockStoreFail) DeletePost(context.Context, models.Post) error             { return errFail }
func (MockStoreFail) AddLike(context.Context, string, string) (bool, error)    { return false, errFail }
func (MockStoreFail) RemoveLike(context.Context, string, string) (bool, error) { return false, errFail }
func (MockStoreFail) GetLikes(context.Context, string) ([]string, error)       { return nil, errFail }
func (MockStoreFail) AddComment(context.Context, models.Comment) error         { return errFail }
func (MockStoreFail) GetComment(context.Context, string, string) (models.Comment, error) {
	return models.Comment{}, errFail
}
func (MockStoreFail) DeleteComment(context.Context, models.Comment) (bool, error) {
	return false, errFail
}
func (MockStoreFail) GetComments(context.Context, string) ([]models.Comment, error) {
	return nil, errFail
}
func (MockStoreFail) AddNotification(context.Context, models.Notification) error { return errFail }
func (MockStoreFail) GetNotifications(context.Context, string, int) ([]models.Notification, error) {
	return nil, errFail
}

var (
	_ StoreInterface = (*Store)(nil)
	_ StoreInterface = (*MockStore)(nil)
	_ StoreInterface = MockStoreFail{}
)
