package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/irsalhamdi/lms/core/invoice"
	"github.com/irsalhamdi/lms/core/promo"
	"github.com/irsalhamdi/lms/payment"
)

var (
	ErrEmptyCheckout       = errors.New("no courses to checkout")
	ErrInvalidCourseID     = errors.New("course id is not valid")
	ErrInvalidPromoCode    = promo.ErrInvalid
	ErrPaymentNotConfirmed = payment.ErrNotConfirmed
	ErrPaymentReused       = invoice.ErrReferenceUsed
	ErrForbidden           = errors.New("invoice belongs to another account")
)

// CourseUnavailableError lists requested courses that do not exist or are
// not published.
type CourseUnavailableError struct {
	CourseIDs []string
}

func (e *CourseUnavailableError) Error() string {
	return fmt.Sprintf("courses not available for purchase: %s", strings.Join(e.CourseIDs, ", "))
}

// AlreadyEnrolledError lists requested courses the account already owns.
type AlreadyEnrolledError struct {
	CourseIDs []string
}

func (e *AlreadyEnrolledError) Error() string {
	return fmt.Sprintf("already enrolled in: %s", strings.Join(e.CourseIDs, ", "))
}
