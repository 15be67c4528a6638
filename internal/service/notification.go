package service

import (
	"context"

	"github.com/google/uuid"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/repository"
)

type notificationService struct {
	noteRepo repository.NotificationRepository
}

func NewNotificationService(noteRepo repository.NotificationRepository) NotificationService {
	return &notificationService{noteRepo: noteRepo}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error) {
	offset := (page - 1) * pageSize
	return s.noteRepo.List(ctx, userID, pageSize, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	return s.noteRepo.MarkAsRead(ctx, notificationID, userID)
}

func (s *notificationService) Notify(ctx context.Context, userID, title, message string, attributes map[string]string) error {
	return s.noteRepo.Create(ctx, &domain.Notification{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      title,
		Message:    message,
		Attributes: attributes,
	})
}
