package service

import (
	"context"

	"github.com/Dan9191/card-service/internal/models"
)

// ListNotifications returns the user's notifications, newest first
func (s *Service) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

// MarkNotificationRead marks one notification as read
func (s *Service) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	return s.store.MarkNotificationRead(ctx, userID, id, s.now())
}

// MarkAllNotificationsRead marks every unread notification as read and
// returns how many changed
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID, s.now())
}
