package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/store"
	"gorm.io/gorm"
)

// MessageService stores contact-form submissions and tells every admin
// about them through their notification mailbox.
type MessageService struct {
	db            *gorm.DB
	messages      *store.Table[model.Message]
	notifications *store.Table[model.Notification]
}

func NewMessageService(db *gorm.DB, messages *store.Table[model.Message], notifications *store.Table[model.Notification]) *MessageService {
	return &MessageService{db: db, messages: messages, notifications: notifications}
}

func (s *MessageService) Submit(ctx context.Context, req model.ContactRequest) (*model.Message, error) {
	m := &model.Message{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Body:  strings.TrimSpace(req.Message),
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, err
	}

	var admins []string
	if err := s.db.WithContext(ctx).Model(&model.Profile{}).
		Where("role = ?", model.RoleAdmin).Pluck("id", &admins).Error; err != nil {
		slog.Warn("message.notify.failed", "message", m.ID, "err", err)
		return m, nil
	}
	for _, uid := range admins {
		n := &model.Notification{
			Message: fmt.Sprintf("New message from %s", m.Name),
			Type:    model.NotificationInfo,
			UserID:  uid,
		}
		if err := s.notifications.Insert(ctx, n); err != nil {
			slog.Warn("message.notify.failed", "message", m.ID, "user", uid, "err", err)
		}
	}
	return m, nil
}

func (s *MessageService) List(ctx context.Context) ([]model.Message, error) {
	return s.messages.List(ctx, store.Query{OrderBy: "created_at", Desc: true})
}
