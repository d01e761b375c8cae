package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		return respondCart(ctx, w, db, clm.UserID, http.StatusOK)
	}
}

func HandleAddItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := AddItem(ctx, db, clm.UserID, in.CourseID, time.Now().UTC()); err != nil {
			switch {
			case errors.Is(err, course.ErrNotFound):
				return weberr.NotFound(err)
			case errors.Is(err, ErrAlreadyInCart):
				return weberr.Conflict(ErrAlreadyInCart, map[string]string{"courseId": in.CourseID})
			}
			return err
		}

		return respondCart(ctx, w, db, clm.UserID, http.StatusCreated)
	}
}

func HandleRemoveItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed course id is not valid: %w", err))
		}

		if err := RemoveItem(ctx, db, clm.UserID, courseID, time.Now().UTC()); err != nil {
			return err
		}

		return respondCart(ctx, w, db, clm.UserID, http.StatusOK)
	}
}

func HandleSync(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in SyncNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := Sync(ctx, db, clm.UserID, in.CourseIDs, time.Now().UTC()); err != nil {
			return err
		}

		return respondCart(ctx, w, db, clm.UserID, http.StatusOK)
	}
}

func HandleClear(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := Clear(ctx, db, clm.UserID, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func respondCart(ctx context.Context, w http.ResponseWriter, db *sqlx.DB, userID string, status int) error {
	cs, err := QueryCourses(ctx, db, userID)
	if err != nil {
		return fmt.Errorf("fetching cart of user[%s]: %w", userID, err)
	}

	return web.Respond(ctx, w, NewView(cs), status)
}
