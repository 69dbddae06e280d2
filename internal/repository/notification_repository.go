package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Recipient string
	Subject   string
	Status    NotificationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewNotification(orderID uuid.UUID, recipient, subject string) *Notification {
	now := time.Now()
	return &Notification{
		ID:        uuid.New(),
		OrderID:   orderID,
		Recipient: recipient,
		Subject:   subject,
		Status:    NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, order_id, recipient, subject, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query, n.ID, n.OrderID, n.Recipient, n.Subject, n.Status, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("notification creation error: %v", err)
	}
	return nil
}

func (r *NotificationRepository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status NotificationStatus) error {
	query := `
		UPDATE notifications
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now()); err != nil {
		return fmt.Errorf("notification status update error: %v", err)
	}
	return nil
}
