package enrollment

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
	"github.com/irsalhamdi/lms/core/lesson"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
)

var ErrNotFree = errors.New("course is not free, purchase it through checkout")

// HandleEnrollFree enrolls the caller in a course whose effective price is
// zero, skipping checkout.
func HandleEnrollFree(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := course.Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}
		if !c.Published {
			return weberr.NotFound(course.ErrNotFound)
		}

		if !c.EffectivePrice().IsZero() {
			return weberr.NewError(ErrNotFree, ErrNotFree.Error(), http.StatusPaymentRequired)
		}

		e, err := CreateOrGet(ctx, db, New(c.ID, clm.UserID, time.Now().UTC()))
		if err != nil {
			return fmt.Errorf("enrolling user[%s] in free course[%s]: %w", clm.UserID, c.ID, err)
		}

		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := QueryByStudent(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

func HandleProgress(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed course id is not valid: %w", err))
		}

		p, err := FetchWithProgress(ctx, db, courseID, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotEnrolled) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleCompleteLesson(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		lessonID := web.Param(r, "lesson_id")
		if err := validate.CheckIDs([]string{courseID, lessonID}); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed ids are not valid: %w", err))
		}

		p, err := MarkLessonComplete(ctx, db, lessonID, clm.UserID, courseID, time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, ErrNotEnrolled):
				return weberr.Forbidden(err)
			case errors.Is(err, lesson.ErrNotFound):
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleIssueCertificate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cu CertificateUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		e, err := IssueCertificate(ctx, db, id, cu.CertificateURL, time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				return weberr.NotFound(err)
			case errors.Is(err, ErrNotCompleted):
				return weberr.Conflict(ErrNotCompleted, nil)
			}
			return err
		}

		return web.Respond(ctx, w, e, http.StatusOK)
	}
}
