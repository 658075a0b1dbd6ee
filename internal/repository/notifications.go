package repository

import (
	"context"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// CreateNotification inserts a notification
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO bank.notifications (user_id, title, message, category, priority,
			related_entity_type, related_entity_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Title, n.Message, n.Category, n.Priority,
		n.RelatedEntityType, n.RelatedEntityID, n.IsRead, n.CreatedAt).
		Scan(&n.ID)
	if err != nil {
		return wrap("failed to create notification", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, category, priority, related_entity_type,
			related_entity_id, is_read, read_at, created_at
		FROM bank.notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id DESC`, userID, unreadOnly)
	if err != nil {
		return nil, wrap("failed to list notifications", err)
	}
	defer rows.Close()

	list := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.Priority,
			&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
		if err != nil {
			return nil, wrap("failed to scan notification", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list notifications", err)
	}
	return list, nil
}

// MarkNotificationRead marks one of the user's notifications as read
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bank.notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return wrap("failed to mark notification read", err)
	}
	return expectOne("failed to mark notification read", res)
}

// MarkAllNotificationsRead marks all of the user's unread notifications as read
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bank.notifications
		SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read`, userID, at)
	if err != nil {
		return 0, wrap("failed to mark notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("failed to mark notifications read", err)
	}
	return n, nil
}
