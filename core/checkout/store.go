package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/core/cart"
	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/core/enrollment"
	"github.com/irsalhamdi/lms/core/invoice"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
)

// Store backs every checkout collaborator with PostgreSQL.
type Store struct {
	db     *sqlx.DB
	enroll func(ctx context.Context, db sqlx.ExtContext, e enrollment.Enrollment) (enrollment.Enrollment, error)
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		enroll: enrollment.CreateOrGet,
	}
}

func (s *Store) CoursesByID(ctx context.Context, ids []string) ([]course.Course, error) {
	return course.QueryByIDs(ctx, s.db, ids)
}

func (s *Store) OwnedCourseIDs(ctx context.Context, accountID string, courseIDs []string) ([]string, error) {
	return enrollment.OwnedCourseIDs(ctx, s.db, accountID, courseIDs)
}

func (s *Store) Resolve(ctx context.Context, code string, now time.Time) (promo.Promo, error) {
	return promo.Resolve(ctx, s.db, code, now)
}

func (s *Store) CourseIDs(ctx context.Context, accountID string) ([]string, error) {
	its, err := cart.QueryItems(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(its))
	for i, it := range its {
		ids[i] = it.CourseID
	}
	return ids, nil
}

func (s *Store) RemoveItems(ctx context.Context, accountID string, courseIDs []string) error {
	return cart.RemoveItems(ctx, s.db, accountID, courseIDs, time.Now().UTC())
}

func (s *Store) InvoicesByAccount(ctx context.Context, accountID string) ([]invoice.Invoice, error) {
	return invoice.QueryByUser(ctx, s.db, accountID)
}

func (s *Store) Invoice(ctx context.Context, id string) (invoice.WithDetails, error) {
	inv, err := invoice.Fetch(ctx, s.db, id)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	ds, err := invoice.QueryDetails(ctx, s.db, id)
	if err != nil {
		return invoice.WithDetails{}, err
	}
	return invoice.WithDetails{Invoice: inv, Details: ds}, nil
}

// Commit writes the invoice, its details, the enrollments and the promo
// redemption in one transaction. Once started it is not interrupted by the
// caller going away.
func (s *Store) Commit(ctx context.Context, b Batch) (Committed, error) {
	ctx = context.WithoutCancel(ctx)

	var cm Committed
	err := database.Transaction(s.db, func(tx sqlx.ExtContext) error {
		inv, err := invoice.Create(ctx, tx, b.Invoice)
		if err != nil {
			return err
		}

		for _, d := range b.Details {
			d.InvoiceID = inv.ID
			if err := invoice.CreateDetail(ctx, tx, d); err != nil {
				return err
			}
			cm.Details = append(cm.Details, d)
		}

		for _, e := range b.Enrollments {
			got, err := s.enroll(ctx, tx, e)
			if err != nil {
				return fmt.Errorf("enrolling in course[%s]: %w", e.CourseID, err)
			}
			cm.Enrollments = append(cm.Enrollments, got)
		}

		if inv.PromoCode != nil {
			if err := promo.Redeem(ctx, tx, *inv.PromoCode, inv.CreatedAt); err != nil {
				return err
			}
		}

		cm.Invoice = inv
		return nil
	})

	if err != nil {
		return Committed{}, err
	}
	return cm, nil
}
