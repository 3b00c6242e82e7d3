package store

import (
	"context"
	"fmt"

	"example.com/socialfeed/internal/models"
)

// --- Notification operations ---

func (s *Store) AddNotification(ctx context.Context, n models.Notification) error {
	if err := s.Session.Query(`
		INSERT INTO notifications_by_account
			(account_id, created_at, notification_id, type, actor_id, post_id, comment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.RecipientID, n.CreatedAt, n.ID, string(n.Type), n.ActorID, n.PostID, n.CommentID,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add notification", err)
		return fmt.Errorf("add notification: %w", err)
	}
	return nil
}

func (s *Store) GetNotifications(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	iter := s.Session.Query(`
		SELECT notification_id, type, actor_id, post_id, comment_id, created_at
		FROM notifications_by_account WHERE account_id = ? LIMIT ?`,
		accountID, limit,
	).WithContext(ctx).Iter()

	res := []models.Notification{}
	var n models.Notification
	var typ string
	for iter.Scan(&n.ID, &typ, &n.ActorID, &n.PostID, &n.CommentID, &n.CreatedAt) {
		n.RecipientID = accountID
		n.Type = models.ActivityType(typ)
		res = append(res, n)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to retrieve notifications", err)
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	return res, nil
}
