package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
)

const notificationColumns = "id, user_id, message, is_read, created_at"

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) unrow() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to notification.ErrNotFound
func (repo notificationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notification.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	q := `INSERT INTO notifications (id, user_id, message, is_read, created_at)
	      VALUES ($1, $2, $3, false, $4)`
	_, err := repo.db.ExecContext(ctx, q, notif.ID, notif.UserID, notif.Message, notif.CreatedAt)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "getting notification by ID")
	}
	return row.unrow(), nil
}

func (repo notificationRepository) QueryUserNotifications(ctx context.Context, userID string, ordering ...core.DBOrdering) ([]notification.Notification, error) {
	allowed := map[string]bool{"created_at": true, "is_read": true}
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1" +
		orderBy(ordering, allowed, "created_at DESC")

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.unrow())
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	q := "UPDATE notifications SET is_read = true WHERE id = $1 RETURNING " + notificationColumns
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "marking notification read")
	}
	return row.unrow(), nil
}
