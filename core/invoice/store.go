package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
)

const (
	numberAttempts = 5
	referenceIndex = "invoices_payment_reference_idx"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrNumberExhausted = errors.New("could not allocate a unique invoice number")
	ErrReferenceUsed   = errors.New("payment reference already settles another invoice")
)

// Create inserts inv under a freshly generated number. A number that is
// already taken is skipped by the insert itself and a new one drawn, so a
// collision never aborts the surrounding transaction.
func Create(ctx context.Context, db sqlx.ExtContext, inv Invoice) (Invoice, error) {
	const q = `
	INSERT INTO invoices
		(invoice_id, user_id, invoice_number, subtotal, discount_amount, total_amount, currency, status,
		 payment_method, payment_reference, promo_code, billing_name, billing_email, billing_phone,
		 billing_address, created_at)
	VALUES
		(:invoice_id, :user_id, :invoice_number, :subtotal, :discount_amount, :total_amount, :currency, :status,
		 :payment_method, :payment_reference, :promo_code, :billing_name, :billing_email, :billing_phone,
		 :billing_address, :created_at)
	ON CONFLICT (invoice_number) DO NOTHING`

	for i := 0; i < numberAttempts; i++ {
		num, err := NewNumber(inv.CreatedAt)
		if err != nil {
			return Invoice{}, err
		}
		inv.Number = num

		n, err := database.NamedExecAffected(ctx, db, q, inv)
		if err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) && strings.Contains(err.Error(), referenceIndex) {
				return Invoice{}, ErrReferenceUsed
			}
			return Invoice{}, fmt.Errorf("inserting invoice: %w", err)
		}
		if n == 1 {
			return inv, nil
		}
	}

	return Invoice{}, ErrNumberExhausted
}

func CreateDetail(ctx context.Context, db sqlx.ExtContext, d Detail) error {
	const q = `
	INSERT INTO invoice_details
		(detail_id, invoice_id, course_id, user_id, amount, payment_method)
	VALUES
		(:detail_id, :invoice_id, :course_id, :user_id, :amount, :payment_method)`

	if err := database.NamedExecContext(ctx, db, q, d); err != nil {
		return fmt.Errorf("inserting invoice detail for course[%s]: %w", d.CourseID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Invoice, error) {
	in := struct {
		ID string `db:"invoice_id"`
	}{id}

	const q = `SELECT * FROM invoices WHERE invoice_id = :invoice_id`

	var inv Invoice
	if err := database.NamedQueryStruct(ctx, db, q, in, &inv); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("selecting invoice[%s]: %w", id, err)
	}
	return inv, nil
}

func QueryByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Invoice, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{userID}

	const q = `SELECT * FROM invoices WHERE user_id = :user_id ORDER BY created_at DESC, invoice_id`

	var invs []Invoice
	if err := database.NamedQuerySlice(ctx, db, q, in, &invs); err != nil {
		return nil, fmt.Errorf("selecting invoices of user[%s]: %w", userID, err)
	}
	return invs, nil
}

func QueryDetails(ctx context.Context, db sqlx.ExtContext, invoiceID string) ([]Detail, error) {
	in := struct {
		ID string `db:"invoice_id"`
	}{invoiceID}

	const q = `SELECT * FROM invoice_details WHERE invoice_id = :invoice_id ORDER BY course_id`

	var ds []Detail
	if err := database.NamedQuerySlice(ctx, db, q, in, &ds); err != nil {
		return nil, fmt.Errorf("selecting details of invoice[%s]: %w", invoiceID, err)
	}
	return ds, nil
}
