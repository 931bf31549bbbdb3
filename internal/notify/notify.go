// Package notify records and sends SMS messages to clients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// MaxMessageLength caps a message at what fits in a few concatenated SMS.
const MaxMessageLength = 480

// DefaultListLimit is how many notifications List returns by default.
const DefaultListLimit = 100

var (
	// ErrInvalidPhone is returned for a missing or malformed recipient.
	ErrInvalidPhone = errors.New("invalid recipient phone")
	// ErrEmptyMessage is returned when there is nothing to send.
	ErrEmptyMessage = errors.New("message is required")
	// ErrMessageTooLong is returned for messages over MaxMessageLength.
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	// ErrUnknownItem is returned when ItemCode names no item.
	ErrUnknownItem = errors.New("unknown item")
)

// Sender delivers a recorded notification.
type Sender interface {
	Send(ctx context.Context, n *model.Notification) error
}

// LogSender writes notifications to the log instead of a gateway.
type LogSender struct{}

// Send logs n.
func (LogSender) Send(_ context.Context, n *model.Notification) error {
	slog.Info("sms", "to", n.RecipientPhone, "message", n.Message, "id", n.ID)
	return nil
}

// Request is a message to send.
type Request struct {
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	ItemCode string `json:"item_code,omitempty"`
}

// Service records notifications and hands them to a Sender.
type Service struct {
	DB         *sqlx.DB
	Sender     Sender
	ValidPhone func(string) bool
}

// NewService returns a Service delivering through sender.
func NewService(db *sqlx.DB, sender Sender, validPhone func(string) bool) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	return &Service{DB: db, Sender: sender, ValidPhone: validPhone}
}

// Send validates req, records it and delivers it. The record is kept even
// when delivery fails.
func (s *Service) Send(ctx context.Context, req Request, sentBy string) (*model.Notification, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || (s.ValidPhone != nil && !s.ValidPhone(phone)) {
		return nil, ErrInvalidPhone
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	var itemID *string
	if req.ItemCode != "" {
		item, err := store.GetItemByQRCode(ctx, s.DB, req.ItemCode)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, ErrUnknownItem
		}
		itemID = &item.ID
	}

	n, err := store.CreateNotification(ctx, s.DB, phone, message, itemID, sentBy)
	if err != nil {
		return nil, err
	}

	if err := s.Sender.Send(ctx, n); err != nil {
		return n, fmt.Errorf("sending notification %d: %w", n.ID, err)
	}
	return n, nil
}

// List returns the most recent notifications, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ns, err := store.ListNotifications(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	return ns, nil
}
