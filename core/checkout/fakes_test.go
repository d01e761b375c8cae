package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/core/enrollment"
	"github.com/irsalhamdi/lms/core/invoice"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/notify"
	"github.com/irsalhamdi/lms/payment"
)

// memStore keeps catalog, cart, ledger and records in memory.
type memStore struct {
	mu          sync.Mutex
	courses     map[string]course.Course
	promos      map[string]promo.Promo
	carts       map[string][]string
	invoices    map[string]invoice.WithDetails
	enrollments map[string]enrollment.Enrollment
	commits     int
	commitErr   error
	removeErr   error
}

func newMemStore() *memStore {
	return &memStore{
		courses:     make(map[string]course.Course),
		promos:      make(map[string]promo.Promo),
		carts:       make(map[string][]string),
		invoices:    make(map[string]invoice.WithDetails),
		enrollments: make(map[string]enrollment.Enrollment),
	}
}

func enrollKey(accountID, courseID string) string {
	return accountID + "/" + courseID
}

func (m *memStore) CoursesByID(ctx context.Context, ids []string) ([]course.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cs []course.Course
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			cs = append(cs, c)
		}
	}
	return cs, nil
}

func (m *memStore) OwnedCourseIDs(ctx context.Context, accountID string, courseIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []string
	for _, id := range courseIDs {
		if _, ok := m.enrollments[enrollKey(accountID, id)]; ok {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

func (m *memStore) Resolve(ctx context.Context, code string, now time.Time) (promo.Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.promos[promo.Normalize(code)]
	if !ok || !p.Usable(now) {
		return promo.Promo{}, promo.ErrInvalid
	}
	return p, nil
}

func (m *memStore) Commit(ctx context.Context, b Batch) (Committed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commits++
	if m.commitErr != nil {
		return Committed{}, m.commitErr
	}

	inv := b.Invoice
	inv.Number = "INV-TEST-" + inv.ID[:8]

	cm := Committed{Invoice: inv, Details: b.Details}
	for _, e := range b.Enrollments {
		k := enrollKey(e.StudentID, e.CourseID)
		if got, ok := m.enrollments[k]; ok {
			cm.Enrollments = append(cm.Enrollments, got)
			continue
		}
		m.enrollments[k] = e
		cm.Enrollments = append(cm.Enrollments, e)
	}

	if inv.PromoCode != nil {
		p := m.promos[*inv.PromoCode]
		p.UsedCount++
		m.promos[*inv.PromoCode] = p
	}

	m.invoices[inv.ID] = invoice.WithDetails{Invoice: inv, Details: b.Details}
	return cm, nil
}

func (m *memStore) InvoicesByAccount(ctx context.Context, accountID string) ([]invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var invs []invoice.Invoice
	for _, inv := range m.invoices {
		if inv.UserID == accountID {
			invs = append(invs, inv.Invoice)
		}
	}
	return invs, nil
}

func (m *memStore) Invoice(ctx context.Context, id string) (invoice.WithDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return invoice.WithDetails{}, invoice.ErrNotFound
	}
	return inv, nil
}

func (m *memStore) CourseIDs(ctx context.Context, accountID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.carts[accountID]...), nil
}

func (m *memStore) RemoveItems(ctx context.Context, accountID string, courseIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removeErr != nil {
		return m.removeErr
	}

	drop := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		drop[id] = true
	}

	var keep []string
	for _, id := range m.carts[accountID] {
		if !drop[id] {
			keep = append(keep, id)
		}
	}
	m.carts[accountID] = keep
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	receipts []notify.Receipt
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, r notify.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, r)
	return nil
}

type fakeGateway struct {
	charges []payment.Charge
	paid    map[string]bool
}

func (f *fakeGateway) Confirm(ctx context.Context, ch payment.Charge) error {
	f.charges = append(f.charges, ch)
	if !f.paid[ch.Reference] {
		return fmt.Errorf("%w: %s", payment.ErrNotConfirmed, ch.Reference)
	}
	return nil
}
