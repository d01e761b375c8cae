// Package notify publishes checkout receipts for an external mailer.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/api/background"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Receipt struct {
	InvoiceID     string          `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	UserID        string          `json:"userId"`
	BillingEmail  string          `json:"billingEmail,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	CourseIDs     []string        `json:"courseIds"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Sender interface {
	Send(ctx context.Context, r Receipt) error
}

// Log is the Sender used when no broker is configured.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(ctx context.Context, r Receipt) error {
	l.log.WithFields(logrus.Fields{
		"invoice": r.InvoiceNumber,
		"account": r.UserID,
		"total":   r.TotalAmount.StringFixed(2),
		"courses": len(r.CourseIDs),
	}).Info("receipt")
	return nil
}

// Dispatcher hands receipts to a Sender on the background pool so a slow or
// failing sender never holds up a checkout response.
type Dispatcher struct {
	bg      *background.Background
	sender  Sender
	log     logrus.FieldLogger
	mt      *metrics.Metrics
	timeout time.Duration
}

func NewDispatcher(bg *background.Background, sender Sender, log logrus.FieldLogger, mt *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		bg:      bg,
		sender:  sender,
		log:     log,
		mt:      mt,
		timeout: 10 * time.Second,
	}
}

// Notify schedules r for delivery. It fails only when the pool no longer
// accepts work; delivery errors are logged and counted.
func (d *Dispatcher) Notify(ctx context.Context, r Receipt) error {
	ctx = context.WithoutCancel(ctx)

	err := d.bg.Add(func() {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, r); err != nil {
			d.mt.PostCommitFailure("receipt")
			d.log.WithFields(logrus.Fields{
				"invoice": r.InvoiceNumber,
				"account": r.UserID,
			}).Errorf("sending receipt: %v", err)
		}
	})

	if err != nil {
		return fmt.Errorf("scheduling receipt for invoice[%s]: %w", r.InvoiceNumber, err)
	}
	return nil
}
