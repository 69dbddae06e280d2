// Package notify sends the order-confirmation email. Delivery is
// best-effort: the orchestrator logs failures and never lets them touch
// the order.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/repository"
	"gopkg.in/gomail.v2"
)

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *repository.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status repository.NotificationStatus) error
}

type Dispatcher struct {
	sender MailSender
	store  NotificationStore
	from   string
}

// NewDispatcher accepts a nil sender, in which case emails are skipped
// (SMTP credentials absent); the notification row still records the
// attempt as failed.
func NewDispatcher(sender MailSender, store NotificationStore, from string) *Dispatcher {
	return &Dispatcher{sender: sender, store: store, from: from}
}

// SendOrderConfirmation builds and sends the confirmation email and
// records a notification row either way.
func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	recipient := order.Address.Email
	if recipient == "" {
		return fmt.Errorf("order %s has no customer email", order.ID)
	}

	subject := fmt.Sprintf("Order Confirmation #%s - NPlusOne Fashion", shortID(order.ID))
	notification := repository.NewNotification(order.ID, recipient, subject)
	if err := d.store.CreateNotification(ctx, notification); err != nil {
		log.Printf("[notify] notification record error for order %s: %v", order.ID, err)
	}

	if d.sender == nil {
		d.markStatus(ctx, notification.ID, repository.NotificationStatusFailed)
		return fmt.Errorf("mail transport not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", confirmationBody(order))

	if err := d.sender.DialAndSend(m); err != nil {
		d.markStatus(ctx, notification.ID, repository.NotificationStatusFailed)
		return fmt.Errorf("confirmation email send error: %v", err)
	}

	d.markStatus(ctx, notification.ID, repository.NotificationStatusSent)
	log.Printf("[notify] order confirmation sent to %s for order %s", recipient, order.ID)
	return nil
}

func (d *Dispatcher) markStatus(ctx context.Context, id uuid.UUID, status repository.NotificationStatus) {
	if err := d.store.UpdateNotificationStatus(ctx, id, status); err != nil {
		log.Printf("[notify] notification status update error: %v", err)
	}
}

func confirmationBody(order *domain.Order) string {
	var items strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&items, `
			<div style="margin-bottom: 10px; border-bottom: 1px solid #eee; padding-bottom: 10px;">
				<p style="margin: 0; font-weight: bold; font-size: 14px;">%s</p>
				<p style="margin: 4px 0; font-size: 12px; color: #555;">Size: %s | Qty: %d</p>
				<p style="margin: 0; font-weight: bold; font-size: 13px;">&#8377;%.2f</p>
			</div>`,
			item.ProductName, item.SelectedSize, item.Quantity, item.PricePerUnit)
	}

	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #333;">Order Confirmed!</h2>
			<p style="color: #555;">Hi %s,</p>
			<p style="color: #555;">Thank you for your order. We've received it and are getting it ready.</p>
			<div style="background-color: #f9f9f9; padding: 15px; border-radius: 6px; margin: 20px 0;">
				<p style="margin: 0; font-size: 14px;"><strong>Order ID:</strong> %s</p>
				<p style="margin: 5px 0 0; font-size: 14px;"><strong>Date:</strong> %s</p>
			</div>
			<h3 style="font-size: 16px;">Order Details</h3>
			%s
			<div style="margin-top: 20px; text-align: right;">
				<p style="font-size: 18px; font-weight: bold;">Total: &#8377;%.2f</p>
			</div>
			<p style="font-size: 12px; color: #999; text-align: center;">Need help? Reply to this email or contact support.</p>
		</div>`,
		order.Address.FullName, order.ID, order.CreatedAt.Format("02 Jan 2006"), items.String(), order.TotalAmount)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
