package invoice

import (
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/random"
	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending Status = "pending"
	Paid    Status = "paid"
	Failed  Status = "failed"
)

type Invoice struct {
	ID               string          `json:"id" db:"invoice_id"`
	UserID           string          `json:"userId" db:"user_id"`
	Number           string          `json:"invoiceNumber" db:"invoice_number"`
	Subtotal         decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Currency         string          `json:"currency" db:"currency"`
	Status           Status          `json:"status" db:"status"`
	PaymentMethod    string          `json:"paymentMethod" db:"payment_method"`
	PaymentReference *string         `json:"paymentReference" db:"payment_reference"`
	PromoCode        *string         `json:"promoCode" db:"promo_code"`
	BillingName      *string         `json:"billingName" db:"billing_name"`
	BillingEmail     *string         `json:"billingEmail" db:"billing_email"`
	BillingPhone     *string         `json:"billingPhone" db:"billing_phone"`
	BillingAddress   *string         `json:"billingAddress" db:"billing_address"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}

type Detail struct {
	ID            string          `json:"id" db:"detail_id"`
	InvoiceID     string          `json:"invoiceId" db:"invoice_id"`
	CourseID      string          `json:"courseId" db:"course_id"`
	UserID        string          `json:"userId" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod string          `json:"paymentMethod" db:"payment_method"`
}

type Billing struct {
	Name    string `json:"name" validate:"omitempty,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

// Apply copies the non-empty billing fields onto the invoice.
func (b Billing) Apply(inv *Invoice) {
	inv.BillingName = optional(b.Name)
	inv.BillingEmail = optional(b.Email)
	inv.BillingPhone = optional(b.Phone)
	inv.BillingAddress = optional(b.Address)
}

// WithDetails is an invoice together with its line items.
type WithDetails struct {
	Invoice
	Details []Detail `json:"details"`
}

// NewNumber formats INV-YYYYMMDD-XXXXXXXX with a random suffix.
func NewNumber(at time.Time) (string, error) {
	suffix, err := random.Code(8)
	if err != nil {
		return "", fmt.Errorf("generating invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), suffix), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
