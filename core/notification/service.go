package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		QueryUserNotifications(ctx context.Context, userID string, ordering ...core.DBOrdering) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, id string) (Notification, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, userID, message string) (Notification, error) {
	return svc.repo.CreateNotification(ctx, Notification{
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

// QueryMine lists the acting user's own notifications.
func (svc *Service) QueryMine(ctx context.Context, actor user.User, ordering ...core.DBOrdering) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(ctx, actor.ID, ordering...)
}

// MarkRead flags a notification as read; only its owner (or an admin) may.
func (svc *Service) MarkRead(ctx context.Context, actor user.User, id string) (Notification, error) {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if !access.CanReadOwned(actor, notif.UserID) {
		return Notification{}, access.ErrPermissionDenied
	}
	return svc.repo.MarkNotificationRead(ctx, id)
}
