package models

import "time"

// Account is a registered user. Followers and Following are derived from the
// follow edge set on read; they are never written through this struct.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	AvatarRef    string    `json:"avatarRef,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProfileUpdate carries the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name      *string
	Bio       *string
	AvatarRef *string
}

// Author is the read-time snapshot of a post's owner.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarRef string `json:"avatarRef,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Author    *Author   `json:"author,omitempty"`
	Text      string    `json:"text"`
	ImageRef  string    `json:"imageRef,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
}

// Comment keeps the commenter's name and avatar as they were when it was written.
type Comment struct {
	ID           string    `json:"id"`
	PostID       string    `json:"postId"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"name"`
	AuthorAvatar string    `json:"avatarRef,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ActivityType string

const (
	ActivityPostCreated     ActivityType = "post_created"
	ActivityPostLiked       ActivityType = "post_liked"
	ActivityPostCommented   ActivityType = "post_commented"
	ActivityAccountFollowed ActivityType = "account_followed"
)

// Activity is the event published to Kafka after a committed mutation.
type Activity struct {
	Type      ActivityType `json:"type"`
	ActorID   string       `json:"actor_id"`
	PostID    string       `json:"post_id,omitempty"`
	CommentID string       `json:"comment_id,omitempty"`
	TargetID  string       `json:"target_id,omitempty"`
	Created   time.Time    `json:"created"`
}

type Notification struct {
	ID          string       `json:"id"`
	RecipientID string       `json:"recipientId"`
	Type        ActivityType `json:"type"`
	ActorID     string       `json:"actorId"`
	PostID      string       `json:"postId,omitempty"`
	CommentID   string       `json:"commentId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}
