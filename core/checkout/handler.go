package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/core/invoice"
	"github.com/irsalhamdi/lms/idempotency"
	"github.com/irsalhamdi/lms/validate"
	"github.com/sirupsen/logrus"
)

const replayedHeader = "Idempotent-Replayed"

func HandleSummary(ck *Checkout) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ids := web.QueryList(r, "course_ids")
		code := r.URL.Query().Get("promo_code")

		q, err := ck.Summary(ctx, clm.UserID, ids, code)
		if err != nil {
			return toWebErr(err)
		}

		return web.Respond(ctx, w, q, http.StatusOK)
	}
}

// HandleComplete runs a checkout. Without courseIds in the payload the
// content of the caller's cart is bought. A request repeating a completed
// Idempotency-Key with the same payload gets the original response back,
// a different payload under that key is rejected with 422.
func HandleComplete(ck *Checkout, keys idempotency.Store, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req Request
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}
		if req.Billing != nil {
			if err := validate.Check(*req.Billing); err != nil {
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
		}

		var key string
		if raw := r.Header.Get(idempotency.Header); raw != "" {
			key = idempotency.Key("checkout", clm.UserID, raw)

			fp, err := idempotency.Fingerprint(req)
			if err != nil {
				return err
			}

			stored, err := keys.Begin(ctx, key, fp)
			if err != nil {
				switch {
				case errors.Is(err, idempotency.ErrInFlight):
					return weberr.Conflict(err, nil)
				case errors.Is(err, idempotency.ErrMismatch):
					return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
				}
				return fmt.Errorf("checking idempotency key: %w", err)
			}

			if stored != nil {
				w.Header().Set(replayedHeader, "true")
				return web.RespondRaw(ctx, w, stored, http.StatusCreated)
			}
		}

		res, err := complete(ctx, ck, clm.UserID, req)
		if err != nil {
			if key != "" {
				if rerr := keys.Release(context.WithoutCancel(ctx), key); rerr != nil {
					log.WithField("account", clm.UserID).Warnf("releasing idempotency key: %v", rerr)
				}
			}
			return toWebErr(err)
		}

		body, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encoding checkout result: %w", err)
		}

		if key != "" {
			if err := keys.Complete(context.WithoutCancel(ctx), key, body); err != nil {
				log.WithFields(logrus.Fields{
					"invoice": res.Invoice.Number,
					"account": clm.UserID,
				}).Warnf("storing idempotent response: %v", err)
			}
		}

		return web.RespondRaw(ctx, w, body, http.StatusCreated)
	}
}

func complete(ctx context.Context, ck *Checkout, accountID string, req Request) (Result, error) {
	if req.CourseIDs == nil {
		ids, err := ck.CartCourseIDs(ctx, accountID)
		if err != nil {
			return Result{}, err
		}
		req.CourseIDs = ids
	}

	return ck.Complete(ctx, accountID, req)
}

func HandleListInvoices(ck *Checkout) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		invs, err := ck.Invoices(ctx, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, invs, http.StatusOK)
	}
}

func HandleShowInvoice(ck *Checkout) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		inv, err := ck.Invoice(ctx, id, clm.UserID)
		if err != nil {
			return toWebErr(err)
		}

		return web.Respond(ctx, w, inv, http.StatusOK)
	}
}

func toWebErr(err error) error {
	var unavailable *CourseUnavailableError
	var enrolled *AlreadyEnrolledError

	switch {
	case errors.Is(err, ErrEmptyCheckout), errors.Is(err, ErrInvalidCourseID):
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)

	case errors.Is(err, ErrInvalidPromoCode):
		return weberr.NewError(err, ErrInvalidPromoCode.Error(), http.StatusBadRequest)

	case errors.Is(err, ErrPaymentNotConfirmed):
		return weberr.NewError(err, ErrPaymentNotConfirmed.Error(), http.StatusPaymentRequired)

	case errors.Is(err, ErrPaymentReused):
		return weberr.NewError(err, ErrPaymentReused.Error(), http.StatusConflict)

	case errors.As(err, &unavailable):
		return weberr.Conflict(unavailable, map[string][]string{"courseIds": unavailable.CourseIDs})

	case errors.As(err, &enrolled):
		return weberr.Conflict(enrolled, map[string][]string{"courseIds": enrolled.CourseIDs})

	case errors.Is(err, ErrForbidden):
		return weberr.Forbidden(err)

	case errors.Is(err, invoice.ErrNotFound):
		return weberr.NotFound(err)
	}

	return err
}
