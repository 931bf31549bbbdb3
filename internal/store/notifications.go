package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/model"
)

const notificationColumns = `id, recipient_phone, message, item_id, sent_by, created_at`

// CreateNotification records an outgoing SMS.
func CreateNotification(ctx context.Context, db *sqlx.DB, phone, message string, itemID *string, sentBy string) (*model.Notification, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO sms_notifications (recipient_phone, message, item_id, sent_by) VALUES (?, ?, ?, ?)`,
		phone, message, itemID, sentBy,
	)
	if err != nil {
		return nil, fmt.Errorf("recording notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}

	n := &model.Notification{}
	err = db.GetContext(ctx, n,
		`SELECT `+notificationColumns+` FROM sms_notifications WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns recorded notifications, newest first.
func ListNotifications(ctx context.Context, db *sqlx.DB, limit int) ([]model.Notification, error) {
	var ns []model.Notification
	err := db.SelectContext(ctx, &ns,
		`SELECT `+notificationColumns+` FROM sms_notifications ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return ns, nil
}
