package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/core/lesson"
	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound     = errors.New("enrollment not found")
	ErrNotEnrolled  = errors.New("user is not enrolled in the course")
	ErrNotCompleted = errors.New("certificate requires a completed enrollment")
)

// CreateOrGet enrolls the student unless an enrollment already exists and
// returns the stored row either way. A concurrent insert of the same pair is
// absorbed by the unique (course_id, user_id) constraint.
func CreateOrGet(ctx context.Context, db sqlx.ExtContext, e Enrollment) (Enrollment, error) {
	const q = `
	INSERT INTO course_enrollments
		(enrollment_id, course_id, user_id, enrolled_at, progress, certificate_url, status, updated_at)
	VALUES
		(:enrollment_id, :course_id, :user_id, :enrolled_at, :progress, :certificate_url, :status, :updated_at)
	ON CONFLICT (course_id, user_id) DO NOTHING`

	if err := database.NamedExecContext(ctx, db, q, e); err != nil {
		return Enrollment{}, fmt.Errorf("inserting enrollment: %w", err)
	}

	return FetchByCourse(ctx, db, e.CourseID, e.StudentID)
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Enrollment, error) {
	in := struct {
		ID string `db:"enrollment_id"`
	}{id}

	const q = `SELECT * FROM course_enrollments WHERE enrollment_id = :enrollment_id`

	var e Enrollment
	if err := database.NamedQueryStruct(ctx, db, q, in, &e); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment[%s]: %w", id, err)
	}
	return e, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, courseID, studentID string) (Enrollment, error) {
	return fetchByCourse(ctx, db, courseID, studentID, false)
}

func fetchByCourse(ctx context.Context, db sqlx.ExtContext, courseID, studentID string, forUpdate bool) (Enrollment, error) {
	in := struct {
		CourseID string `db:"course_id"`
		UserID   string `db:"user_id"`
	}{courseID, studentID}

	q := `SELECT * FROM course_enrollments WHERE course_id = :course_id AND user_id = :user_id`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var e Enrollment
	if err := database.NamedQueryStruct(ctx, db, q, in, &e); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment of user[%s] in course[%s]: %w", studentID, courseID, err)
	}
	return e, nil
}

func QueryByStudent(ctx context.Context, db sqlx.ExtContext, studentID string) ([]Enrollment, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{studentID}

	const q = `SELECT * FROM course_enrollments WHERE user_id = :user_id ORDER BY enrolled_at, course_id`

	var es []Enrollment
	if err := database.NamedQuerySlice(ctx, db, q, in, &es); err != nil {
		return nil, fmt.Errorf("selecting enrollments of user[%s]: %w", studentID, err)
	}
	return es, nil
}

// OwnedCourseIDs returns which of courseIDs the student is enrolled in.
func OwnedCourseIDs(ctx context.Context, db sqlx.ExtContext, studentID string, courseIDs []string) ([]string, error) {
	in := struct {
		UserID    string         `db:"user_id"`
		CourseIDs pq.StringArray `db:"course_ids"`
	}{studentID, courseIDs}

	const q = `
	SELECT course_id FROM course_enrollments
	WHERE user_id = :user_id AND course_id = ANY(CAST(:course_ids AS uuid[]))`

	var rows []struct {
		CourseID string `db:"course_id"`
	}
	if err := database.NamedQuerySlice(ctx, db, q, in, &rows); err != nil {
		return nil, fmt.Errorf("selecting owned courses of user[%s]: %w", studentID, err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CourseID
	}
	return ids, nil
}

func FetchWithProgress(ctx context.Context, db sqlx.ExtContext, courseID, studentID string) (Progress, error) {
	e, err := FetchByCourse(ctx, db, courseID, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Progress{}, ErrNotEnrolled
		}
		return Progress{}, err
	}

	return withCounts(ctx, db, e)
}

// MarkLessonComplete records a finished lesson and recomputes the
// enrollment's progress and status.
func MarkLessonComplete(ctx context.Context, db *sqlx.DB, lessonID, studentID, courseID string, now time.Time) (Progress, error) {
	var p Progress

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		e, err := fetchByCourse(ctx, tx, courseID, studentID, true)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotEnrolled
			}
			return err
		}

		l, err := lesson.Fetch(ctx, tx, lessonID)
		if err != nil {
			return err
		}
		if l.CourseID != courseID || !l.Published() {
			return lesson.ErrNotFound
		}

		in := struct {
			EnrollmentID string    `db:"enrollment_id"`
			LessonID     string    `db:"lesson_id"`
			CompletedAt  time.Time `db:"completed_at"`
		}{e.ID, lessonID, now}

		const q = `
		INSERT INTO lesson_progress (enrollment_id, lesson_id, completed_at)
		VALUES (:enrollment_id, :lesson_id, :completed_at)
		ON CONFLICT (enrollment_id, lesson_id) DO NOTHING`

		if err := database.NamedExecContext(ctx, tx, q, in); err != nil {
			return fmt.Errorf("inserting lesson progress: %w", err)
		}

		if p, err = withCounts(ctx, tx, e); err != nil {
			return err
		}

		p.Progress = Percentage(p.CompletedLessons, p.TotalLessons)
		p.Status = advance(p.Status, p.Progress)
		p.UpdatedAt = now

		return update(ctx, tx, p.Enrollment)
	})

	if err != nil {
		return Progress{}, fmt.Errorf("completing lesson[%s] for user[%s]: %w", lessonID, studentID, err)
	}
	return p, nil
}

// IssueCertificate attaches a certificate to a completed enrollment.
func IssueCertificate(ctx context.Context, db *sqlx.DB, enrollmentID, url string, now time.Time) (Enrollment, error) {
	var e Enrollment

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		in := struct {
			ID string `db:"enrollment_id"`
		}{enrollmentID}

		const q = `SELECT * FROM course_enrollments WHERE enrollment_id = :enrollment_id FOR UPDATE`

		if err := database.NamedQueryStruct(ctx, tx, q, in, &e); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("locking enrollment: %w", err)
		}

		if e.Status != Completed {
			return ErrNotCompleted
		}

		e.CertificateURL = &url
		e.Status = CertificateIssued
		e.UpdatedAt = now

		return update(ctx, tx, e)
	})

	if err != nil {
		return Enrollment{}, fmt.Errorf("issuing certificate for enrollment[%s]: %w", enrollmentID, err)
	}
	return e, nil
}

func withCounts(ctx context.Context, db sqlx.ExtContext, e Enrollment) (Progress, error) {
	total, err := lesson.CountPublished(ctx, db, e.CourseID)
	if err != nil {
		return Progress{}, err
	}

	in := struct {
		ID       string `db:"enrollment_id"`
		CourseID string `db:"course_id"`
	}{e.ID, e.CourseID}

	const q = `
	SELECT count(*) AS completed FROM lesson_progress AS p
	JOIN lessons AS l ON l.lesson_id = p.lesson_id
	WHERE p.enrollment_id = :enrollment_id
		AND l.course_id = :course_id
		AND l.published_version_id IS NOT NULL`

	var out struct {
		Completed int `db:"completed"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, in, &out); err != nil {
		return Progress{}, fmt.Errorf("counting completed lessons: %w", err)
	}

	return Progress{Enrollment: e, CompletedLessons: out.Completed, TotalLessons: total}, nil
}

func update(ctx context.Context, db sqlx.ExtContext, e Enrollment) error {
	const q = `
	UPDATE course_enrollments SET
		progress = :progress,
		certificate_url = :certificate_url,
		status = :status,
		updated_at = :updated_at
	WHERE enrollment_id = :enrollment_id`

	if err := database.NamedExecContext(ctx, db, q, e); err != nil {
		return fmt.Errorf("updating enrollment[%s]: %w", e.ID, err)
	}
	return nil
}
