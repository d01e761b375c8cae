package lesson

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

func HandleCreateSection(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")

		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed course id is not valid: %w", err))
		}

		var sn SectionNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := course.Fetch(ctx, db, courseID); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		s := Section{
			ID:        validate.GenerateID(),
			CourseID:  courseID,
			Index:     sn.Index,
			Title:     sn.Title,
			CreatedAt: time.Now().UTC(),
		}

		if err := CreateSection(ctx, db, s); err != nil {
			return fmt.Errorf("creating section: %w", err)
		}

		return web.Respond(ctx, w, s, http.StatusCreated)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")

		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed course id is not valid: %w", err))
		}

		var ln LessonNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ln); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := course.Fetch(ctx, db, courseID); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if ln.SectionID != nil {
			s, err := FetchSection(ctx, db, *ln.SectionID)
			if err != nil {
				if errors.Is(err, ErrSectionNotFound) {
					return weberr.NotFound(err)
				}
				return fmt.Errorf("fetching section[%s]: %w", *ln.SectionID, err)
			}

			if s.CourseID != courseID {
				err := fmt.Errorf("section[%s] belongs to another course", s.ID)
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
		}

		now := time.Now().UTC()
		l := Lesson{
			ID:        validate.GenerateID(),
			CourseID:  courseID,
			SectionID: ln.SectionID,
			Index:     ln.Index,
			Title:     ln.Title,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, l); err != nil {
			return fmt.Errorf("creating lesson: %w", err)
		}

		return web.Respond(ctx, w, l, http.StatusCreated)
	}
}

func HandleSaveDraft(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var dn DraftNew
		if err := web.Decode(w, r, &dn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(dn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		v, err := SaveDraft(ctx, db, id, dn, time.Now().UTC())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandlePublish(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		v, err := Publish(ctx, db, id, time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				return weberr.NotFound(err)
			case errors.Is(err, ErrNoDraft):
				return weberr.Conflict(ErrNoDraft, nil)
			}
			return err
		}

		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cnt, err := FetchPublished(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching lesson[%s]: %w", id, err)
		}

		if !clm.Admin() {
			ok, err := enrolled(ctx, db, cnt.Lesson.CourseID, clm.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return weberr.Forbidden(fmt.Errorf("user[%s] is not enrolled in course[%s]", clm.UserID, cnt.Lesson.CourseID))
			}
		}

		return web.Respond(ctx, w, cnt, http.StatusOK)
	}
}

func HandleOutline(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")

		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed course id is not valid: %w", err))
		}

		c, err := course.Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		admin := claims.IsAdmin(ctx)
		if !c.Published && !admin {
			return weberr.NotFound(course.ErrNotFound)
		}

		ss, err := QuerySections(ctx, db, courseID)
		if err != nil {
			return err
		}

		ls, err := QueryByCourse(ctx, db, courseID, admin)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, Outline{Sections: ss, Lessons: ls}, http.StatusOK)
	}
}
