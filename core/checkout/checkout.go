// Package checkout turns a set of courses into a paid invoice and the
// matching enrollments in a single commit.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/core/enrollment"
	"github.com/irsalhamdi/lms/core/invoice"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/metrics"
	"github.com/irsalhamdi/lms/notify"
	"github.com/irsalhamdi/lms/payment"
	"github.com/irsalhamdi/lms/validate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Catalog interface {
	CoursesByID(ctx context.Context, ids []string) ([]course.Course, error)
}

type Ownership interface {
	OwnedCourseIDs(ctx context.Context, accountID string, courseIDs []string) ([]string, error)
}

type Promos interface {
	Resolve(ctx context.Context, code string, now time.Time) (promo.Promo, error)
}

// Ledger writes a batch atomically: either every row lands or none does.
type Ledger interface {
	Commit(ctx context.Context, b Batch) (Committed, error)
}

type Records interface {
	InvoicesByAccount(ctx context.Context, accountID string) ([]invoice.Invoice, error)
	Invoice(ctx context.Context, id string) (invoice.WithDetails, error)
}

type Cart interface {
	CourseIDs(ctx context.Context, accountID string) ([]string, error)
	RemoveItems(ctx context.Context, accountID string, courseIDs []string) error
}

type Notifier interface {
	Notify(ctx context.Context, r notify.Receipt) error
}

type Config struct {
	Catalog   Catalog
	Ownership Ownership
	Promos    Promos
	Ledger    Ledger
	Records   Records
	Cart      Cart
	Notifier  Notifier
	Gateways  map[string]payment.Gateway
	// UnverifiedMethods are accepted without a gateway once any gateway is
	// registered. With no gateway at all every method is accepted.
	UnverifiedMethods []string
	Currency          string
	Log               logrus.FieldLogger
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

type Checkout struct {
	catalog    Catalog
	owned      Ownership
	promos     Promos
	ledger     Ledger
	records    Records
	cart       Cart
	notifier   Notifier
	gateways   map[string]payment.Gateway
	unverified map[string]bool
	currency   string
	log        logrus.FieldLogger
	mt         *metrics.Metrics
	now        func() time.Time
}

func New(cfg Config) *Checkout {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	unverified := make(map[string]bool, len(cfg.UnverifiedMethods))
	for _, m := range cfg.UnverifiedMethods {
		unverified[m] = true
	}

	return &Checkout{
		catalog:    cfg.Catalog,
		owned:      cfg.Ownership,
		promos:     cfg.Promos,
		ledger:     cfg.Ledger,
		records:    cfg.Records,
		cart:       cfg.Cart,
		notifier:   cfg.Notifier,
		gateways:   cfg.Gateways,
		unverified: unverified,
		currency:   cfg.Currency,
		log:        cfg.Log,
		mt:         cfg.Metrics,
		now:        now,
	}
}

type Line struct {
	CourseID string          `json:"courseId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
}

type Quote struct {
	Lines     []Line          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discountAmount"`
	Total     decimal.Decimal `json:"totalAmount"`
	Currency  string          `json:"currency"`
	PromoCode string          `json:"promoCode,omitempty"`
}

func (q Quote) CourseIDs() []string {
	ids := make([]string, len(q.Lines))
	for i, l := range q.Lines {
		ids[i] = l.CourseID
	}
	return ids
}

type Request struct {
	CourseIDs        []string         `json:"courseIds"`
	PaymentMethod    string           `json:"paymentMethod" validate:"required,max=32"`
	PaymentReference string           `json:"paymentReference" validate:"max=255"`
	PromoCode        string           `json:"promoCode" validate:"max=32"`
	Billing          *invoice.Billing `json:"billing"`
}

// Batch is everything one checkout writes.
type Batch struct {
	Invoice     invoice.Invoice
	Details     []invoice.Detail
	Enrollments []enrollment.Enrollment
}

type Committed struct {
	Invoice     invoice.Invoice
	Details     []invoice.Detail
	Enrollments []enrollment.Enrollment
}

type Result struct {
	Invoice           invoice.Invoice         `json:"invoice"`
	Details           []invoice.Detail        `json:"details"`
	Enrollments       []enrollment.Enrollment `json:"enrollments"`
	TotalAmount       decimal.Decimal         `json:"totalAmount"`
	EnrolledCourseIDs []string                `json:"enrolledCourseIds"`
}

// Summary prices a prospective checkout exactly as Complete would.
func (c *Checkout) Summary(ctx context.Context, accountID string, courseIDs []string, promoCode string) (Quote, error) {
	return c.quote(ctx, accountID, courseIDs, promoCode)
}

// CartCourseIDs returns the content of the account's cart, used when a
// checkout request names no courses.
func (c *Checkout) CartCourseIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := c.cart.CourseIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("reading cart of account[%s]: %w", accountID, err)
	}
	return ids, nil
}

func (c *Checkout) Complete(ctx context.Context, accountID string, req Request) (Result, error) {
	res, err := c.complete(ctx, accountID, req)
	c.mt.CheckoutOutcome(outcome(err))
	return res, err
}

func (c *Checkout) complete(ctx context.Context, accountID string, req Request) (Result, error) {
	q, err := c.quote(ctx, accountID, req.CourseIDs, req.PromoCode)
	if err != nil {
		return Result{}, err
	}

	confirmed, err := c.confirm(ctx, req, q)
	if err != nil {
		return Result{}, err
	}

	b := c.batch(accountID, req, q)

	cm, err := c.ledger.Commit(ctx, b)
	if err != nil {
		if confirmed {
			c.mt.PostCommitFailure("unreconciled_payment")
			c.log.WithFields(logrus.Fields{
				"account":           accountID,
				"payment_method":    req.PaymentMethod,
				"payment_reference": req.PaymentReference,
				"amount":            q.Total.StringFixed(2),
				"currency":          q.Currency,
			}).Errorf("payment confirmed but checkout not committed: %v", err)
		}
		return Result{}, fmt.Errorf("committing checkout for account[%s]: %w", accountID, err)
	}

	c.afterCommit(ctx, accountID, q, cm)

	return Result{
		Invoice:           cm.Invoice,
		Details:           cm.Details,
		Enrollments:       cm.Enrollments,
		TotalAmount:       cm.Invoice.TotalAmount,
		EnrolledCourseIDs: q.CourseIDs(),
	}, nil
}

// confirm asks the gateway of the payment method whether the quoted total
// was paid. It reports whether a gateway took part.
func (c *Checkout) confirm(ctx context.Context, req Request, q Quote) (bool, error) {
	gw, ok := c.gateways[req.PaymentMethod]
	if !ok {
		if len(c.gateways) > 0 && !c.unverified[req.PaymentMethod] {
			return false, fmt.Errorf("%w: method %q is not accepted", ErrPaymentNotConfirmed, req.PaymentMethod)
		}
		return false, nil
	}

	ch := payment.Charge{
		Reference: req.PaymentReference,
		Amount:    q.Total,
		Currency:  q.Currency,
	}
	if err := gw.Confirm(ctx, ch); err != nil {
		return false, fmt.Errorf("confirming %s payment: %w", req.PaymentMethod, err)
	}
	return true, nil
}

func (c *Checkout) quote(ctx context.Context, accountID string, courseIDs []string, promoCode string) (Quote, error) {
	ids := dedupe(courseIDs)
	if len(ids) == 0 {
		return Quote{}, ErrEmptyCheckout
	}

	if err := validate.CheckIDs(ids); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidCourseID, err)
	}

	cs, err := c.catalog.CoursesByID(ctx, ids)
	if err != nil {
		return Quote{}, fmt.Errorf("pricing courses: %w", err)
	}

	byID := make(map[string]course.Course, len(cs))
	for _, crs := range cs {
		byID[crs.ID] = crs
	}

	var missing []string
	for _, id := range ids {
		if crs, ok := byID[id]; !ok || !crs.Published {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Quote{}, &CourseUnavailableError{CourseIDs: missing}
	}

	owned, err := c.owned.OwnedCourseIDs(ctx, accountID, ids)
	if err != nil {
		return Quote{}, fmt.Errorf("checking ownership: %w", err)
	}
	if len(owned) > 0 {
		return Quote{}, &AlreadyEnrolledError{CourseIDs: inOrder(ids, owned)}
	}

	q := Quote{
		Lines:    make([]Line, 0, len(ids)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Currency: c.currency,
	}
	for _, id := range ids {
		crs := byID[id]
		price := crs.EffectivePrice()
		q.Lines = append(q.Lines, Line{CourseID: id, Name: crs.Name, Price: price})
		q.Subtotal = q.Subtotal.Add(price)
	}

	if promoCode != "" {
		p, err := c.promos.Resolve(ctx, promoCode, c.now())
		if err != nil {
			return Quote{}, err
		}
		q.Discount = p.Discount(q.Subtotal)
		q.PromoCode = p.Code
	}

	q.Total = q.Subtotal.Sub(q.Discount)
	return q, nil
}

func (c *Checkout) batch(accountID string, req Request, q Quote) Batch {
	now := c.now()

	inv := invoice.Invoice{
		ID:             validate.GenerateID(),
		UserID:         accountID,
		Subtotal:       q.Subtotal,
		DiscountAmount: q.Discount,
		TotalAmount:    q.Total,
		Currency:       q.Currency,
		Status:         invoice.Paid,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      now,
	}
	if req.PaymentReference != "" {
		ref := req.PaymentReference
		inv.PaymentReference = &ref
	}
	if q.PromoCode != "" {
		code := q.PromoCode
		inv.PromoCode = &code
	}
	if req.Billing != nil {
		req.Billing.Apply(&inv)
	}

	b := Batch{
		Invoice:     inv,
		Details:     make([]invoice.Detail, 0, len(q.Lines)),
		Enrollments: make([]enrollment.Enrollment, 0, len(q.Lines)),
	}
	for _, l := range q.Lines {
		b.Details = append(b.Details, invoice.Detail{
			ID:            validate.GenerateID(),
			InvoiceID:     inv.ID,
			CourseID:      l.CourseID,
			UserID:        accountID,
			Amount:        l.Price,
			PaymentMethod: req.PaymentMethod,
		})
		b.Enrollments = append(b.Enrollments, enrollment.New(l.CourseID, accountID, now))
	}
	return b
}

// afterCommit runs the best effort side effects. Their failures are logged
// and counted, the checkout itself already succeeded.
func (c *Checkout) afterCommit(ctx context.Context, accountID string, q Quote, cm Committed) {
	ctx = context.WithoutCancel(ctx)
	log := c.log.WithFields(logrus.Fields{
		"invoice": cm.Invoice.Number,
		"account": accountID,
	})

	c.mt.Revenue(cm.Invoice.Currency, cm.Invoice.TotalAmount)

	if err := c.cart.RemoveItems(ctx, accountID, q.CourseIDs()); err != nil {
		c.mt.PostCommitFailure("cart")
		log.Errorf("removing purchased courses from cart: %v", err)
	}

	r := notify.Receipt{
		InvoiceID:     cm.Invoice.ID,
		InvoiceNumber: cm.Invoice.Number,
		UserID:        accountID,
		TotalAmount:   cm.Invoice.TotalAmount,
		Currency:      cm.Invoice.Currency,
		CourseIDs:     q.CourseIDs(),
		CreatedAt:     cm.Invoice.CreatedAt,
	}
	if cm.Invoice.BillingEmail != nil {
		r.BillingEmail = *cm.Invoice.BillingEmail
	}

	if err := c.notifier.Notify(ctx, r); err != nil {
		c.mt.PostCommitFailure("receipt")
		log.Errorf("dispatching receipt: %v", err)
	}
}

func (c *Checkout) Invoices(ctx context.Context, accountID string) ([]invoice.Invoice, error) {
	invs, err := c.records.InvoicesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices of account[%s]: %w", accountID, err)
	}
	return invs, nil
}

// Invoice returns an invoice with its details when accountID owns it.
func (c *Checkout) Invoice(ctx context.Context, id, accountID string) (invoice.WithDetails, error) {
	inv, err := c.records.Invoice(ctx, id)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	if inv.UserID != accountID {
		return invoice.WithDetails{}, ErrForbidden
	}
	return inv, nil
}

func outcome(err error) string {
	var unavailable *CourseUnavailableError
	var enrolled *AlreadyEnrolledError

	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrEmptyCheckout), errors.Is(err, ErrInvalidCourseID):
		return "invalid"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.As(err, &enrolled):
		return "already_enrolled"
	case errors.Is(err, ErrInvalidPromoCode):
		return "invalid_promo"
	case errors.Is(err, ErrPaymentNotConfirmed):
		return "payment_not_confirmed"
	case errors.Is(err, ErrPaymentReused):
		return "payment_reused"
	}
	return "failed"
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// inOrder returns the members of subset in the order they appear in ids.
func inOrder(ids, subset []string) []string {
	in := make(map[string]bool, len(subset))
	for _, id := range subset {
		in[id] = true
	}

	out := make([]string, 0, len(subset))
	for _, id := range ids {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}
