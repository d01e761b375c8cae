package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		c := Course{
			ID:          validate.GenerateID(),
			Name:        cn.Name,
			Description: cn.Description,
			ImageURL:    cn.ImageURL,
			Price:       cn.Price,
			Published:   cn.Published,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}
		if cn.DiscountPrice != nil {
			c.DiscountPrice = decimal.NewNullDecimal(*cn.DiscountPrice)
			if c.DiscountPrice.Decimal.GreaterThan(c.Price) {
				return weberr.NewError(ErrDiscountAbovePrice, ErrDiscountAbovePrice.Error(), http.StatusBadRequest)
			}
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		if err := c.Apply(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("updating course[%s]: %w", id, err)
		}
		c.Version++

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		if !c.Published && !claims.IsAdmin(ctx) {
			return weberr.NotFound(ErrNotFound)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := Query(ctx, db, claims.IsAdmin(ctx))
		if err != nil {
			return fmt.Errorf("listing courses: %w", err)
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs, err := QueryOwned(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing owned courses: %w", err)
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}
