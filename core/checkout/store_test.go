package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/core/cart"
	"github.com/irsalhamdi/lms/core/enrollment"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/database/dbtest"
	"github.com/irsalhamdi/lms/payment"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreCheckout(st *Store) *Checkout {
	log, _ := test.NewNullLogger()
	return New(Config{
		Catalog:   st,
		Ownership: st,
		Promos:    st,
		Ledger:    st,
		Records:   st,
		Cart:      st,
		Notifier:  &fakeNotifier{},
		Currency:  "USD",
		Log:       log,
	})
}

func TestStore(t *testing.T) {
	db, _ := dbtest.New(t)
	ctx := context.Background()

	t.Run("CommitAndReadBack", func(t *testing.T) {
		st := NewStore(db)
		ck := newStoreCheckout(st)
		account := dbtest.SeedUser(t, db, "reader@example.com")
		c1 := dbtest.SeedCourse(t, db, "go", "100", true)
		c2 := dbtest.SeedCourse(t, db, "sql", "50.50", true)

		res, err := ck.Complete(ctx, account, card(c1, c2))
		require.NoError(t, err)
		assert.Regexp(t, `^INV-\d{8}-[A-Z0-9]{8}$`, res.Invoice.Number)
		assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("150.50")))

		got, err := ck.Invoice(ctx, res.Invoice.ID, account)
		require.NoError(t, err)
		assert.Equal(t, res.Invoice.Number, got.Number)
		assert.Len(t, got.Details, 2)

		_, err = ck.Complete(ctx, account, card(c2))
		var enrolled *AlreadyEnrolledError
		require.True(t, errors.As(err, &enrolled))
		assert.Equal(t, []string{c2}, enrolled.CourseIDs)
	})

	t.Run("FailureOnThirdEnrollmentRollsBack", func(t *testing.T) {
		st := NewStore(db)
		var calls int
		st.enroll = func(ctx context.Context, tx sqlx.ExtContext, e enrollment.Enrollment) (enrollment.Enrollment, error) {
			calls++
			if calls == 3 {
				return enrollment.Enrollment{}, errors.New("disk full")
			}
			return enrollment.CreateOrGet(ctx, tx, e)
		}
		ck := newStoreCheckout(st)

		account := dbtest.SeedUser(t, db, "atomic@example.com")
		ids := []string{
			dbtest.SeedCourse(t, db, "a", "1", true),
			dbtest.SeedCourse(t, db, "b", "2", true),
			dbtest.SeedCourse(t, db, "c", "3", true),
		}

		invoices := dbtest.Count(t, db, "invoices")
		details := dbtest.Count(t, db, "invoice_details")
		enrollments := dbtest.Count(t, db, "course_enrollments")

		_, err := ck.Complete(ctx, account, card(ids...))
		require.Error(t, err)
		assert.Equal(t, 3, calls)

		assert.Equal(t, invoices, dbtest.Count(t, db, "invoices"))
		assert.Equal(t, details, dbtest.Count(t, db, "invoice_details"))
		assert.Equal(t, enrollments, dbtest.Count(t, db, "course_enrollments"))
	})

	t.Run("PriceCapturedBeforeCommit", func(t *testing.T) {
		st := NewStore(db)
		courseID := dbtest.SeedCourse(t, db, "pricey", "10", true)
		st.enroll = func(ctx context.Context, tx sqlx.ExtContext, e enrollment.Enrollment) (enrollment.Enrollment, error) {
			if _, err := db.ExecContext(ctx, `UPDATE courses SET price = 999 WHERE course_id = $1`, courseID); err != nil {
				return enrollment.Enrollment{}, err
			}
			return enrollment.CreateOrGet(ctx, tx, e)
		}
		ck := newStoreCheckout(st)
		account := dbtest.SeedUser(t, db, "price@example.com")

		res, err := ck.Complete(ctx, account, card(courseID))
		require.NoError(t, err)

		got, err := ck.Invoice(ctx, res.Invoice.ID, account)
		require.NoError(t, err)
		require.Len(t, got.Details, 1)
		assert.True(t, got.Details[0].Amount.Equal(decimal.RequireFromString("10")), "amount %s", got.Details[0].Amount)
		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("10")))
	})

	t.Run("ConcurrentCheckoutsEnrollOnce", func(t *testing.T) {
		ck := newStoreCheckout(NewStore(db))
		account := dbtest.SeedUser(t, db, "race@example.com")
		courseID := dbtest.SeedCourse(t, db, "race", "20", true)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = ck.Complete(ctx, account, card(courseID))
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.GreaterOrEqual(t, succeeded, 1)

		var n int
		err := db.QueryRowContext(ctx,
			`SELECT count(*) FROM course_enrollments WHERE course_id = $1 AND user_id = $2`,
			courseID, account).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("CartEmptiedAfterCheckout", func(t *testing.T) {
		ck := newStoreCheckout(NewStore(db))
		account := dbtest.SeedUser(t, db, "cart@example.com")
		c1 := dbtest.SeedCourse(t, db, "cart-a", "5", true)
		c2 := dbtest.SeedCourse(t, db, "cart-b", "6", true)
		now := time.Now().UTC()

		require.NoError(t, cart.AddItem(ctx, db, account, c1, now))
		require.NoError(t, cart.AddItem(ctx, db, account, c2, now))

		ids, err := ck.CartCourseIDs(ctx, account)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{c1, c2}, ids)

		_, err = ck.Complete(ctx, account, card(ids...))
		require.NoError(t, err)

		its, err := cart.QueryItems(ctx, db, account)
		require.NoError(t, err)
		assert.Empty(t, its)
	})

	t.Run("ExpiredPromoRejected", func(t *testing.T) {
		ck := newStoreCheckout(NewStore(db))
		account := dbtest.SeedUser(t, db, "expired@example.com")
		courseID := dbtest.SeedCourse(t, db, "promo-a", "40", true)
		now := time.Now().UTC()
		expired := now.Add(-24 * time.Hour)

		require.NoError(t, promo.Create(ctx, db, promo.Promo{
			Code:      "LASTYEAR",
			Kind:      promo.Fixed,
			Amount:    decimal.RequireFromString("5"),
			StartsAt:  now.Add(-48 * time.Hour),
			ExpiresAt: &expired,
			Active:    true,
			CreatedAt: now,
		}))

		invoices := dbtest.Count(t, db, "invoices")

		req := card(courseID)
		req.PromoCode = "lastyear"
		_, err := ck.Complete(ctx, account, req)
		require.ErrorIs(t, err, ErrInvalidPromoCode)
		assert.Equal(t, invoices, dbtest.Count(t, db, "invoices"))
	})

	t.Run("PaymentReferenceSettlesOneInvoice", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		st := NewStore(db)
		gw := &fakeGateway{paid: map[string]bool{"pi_shared": true}}
		ck := New(Config{
			Catalog:   st,
			Ownership: st,
			Promos:    st,
			Ledger:    st,
			Records:   st,
			Cart:      st,
			Notifier:  &fakeNotifier{},
			Gateways:  map[string]payment.Gateway{payment.MethodStripe: gw},
			Currency:  "USD",
			Log:       log,
		})

		pay := func(courseID string) Request {
			return Request{CourseIDs: []string{courseID}, PaymentMethod: payment.MethodStripe, PaymentReference: "pi_shared"}
		}

		first := dbtest.SeedUser(t, db, "payer@example.com")
		_, err := ck.Complete(ctx, first, pay(dbtest.SeedCourse(t, db, "ref-a", "100", true)))
		require.NoError(t, err)

		invoices := dbtest.Count(t, db, "invoices")
		enrollments := dbtest.Count(t, db, "course_enrollments")

		second := dbtest.SeedUser(t, db, "freerider@example.com")
		_, err = ck.Complete(ctx, second, pay(dbtest.SeedCourse(t, db, "ref-b", "100", true)))
		require.ErrorIs(t, err, ErrPaymentReused)

		assert.Equal(t, invoices, dbtest.Count(t, db, "invoices"))
		assert.Equal(t, enrollments, dbtest.Count(t, db, "course_enrollments"))
		assert.Len(t, gw.charges, 2)
	})

	t.Run("PromoExhausted", func(t *testing.T) {
		ck := newStoreCheckout(NewStore(db))
		now := time.Now().UTC()
		once := 1

		require.NoError(t, promo.Create(ctx, db, promo.Promo{
			Code:      "ONCE",
			Kind:      promo.Percent,
			Amount:    decimal.RequireFromString("50"),
			StartsAt:  now.Add(-time.Hour),
			MaxUses:   &once,
			Active:    true,
			CreatedAt: now,
		}))

		req := card(dbtest.SeedCourse(t, db, "once-a", "30", true))
		req.PromoCode = "ONCE"
		res, err := ck.Complete(ctx, dbtest.SeedUser(t, db, "first@example.com"), req)
		require.NoError(t, err)
		assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("15")))

		p, err := promo.Fetch(ctx, db, "ONCE")
		require.NoError(t, err)
		assert.Equal(t, 1, p.UsedCount)

		req = card(dbtest.SeedCourse(t, db, "once-b", "30", true))
		req.PromoCode = "ONCE"
		_, err = ck.Complete(ctx, dbtest.SeedUser(t, db, "second@example.com"), req)
		require.ErrorIs(t, err, ErrInvalidPromoCode)
	})
}
