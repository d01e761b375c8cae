package lesson

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/database"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound        = errors.New("lesson not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrNoDraft         = errors.New("lesson has no draft to publish")
)

func CreateSection(ctx context.Context, db sqlx.ExtContext, s Section) error {
	const q = `
	INSERT INTO sections
		(section_id, course_id, index, title, created_at)
	VALUES
		(:section_id, :course_id, :index, :title, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, s); err != nil {
		return fmt.Errorf("inserting section: %w", err)
	}
	return nil
}

func FetchSection(ctx context.Context, db sqlx.ExtContext, id string) (Section, error) {
	in := struct {
		ID string `db:"section_id"`
	}{id}

	const q = `SELECT * FROM sections WHERE section_id = :section_id`

	var s Section
	if err := database.NamedQueryStruct(ctx, db, q, in, &s); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Section{}, ErrSectionNotFound
		}
		return Section{}, fmt.Errorf("selecting section[%s]: %w", id, err)
	}
	return s, nil
}

func QuerySections(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Section, error) {
	in := struct {
		CourseID string `db:"course_id"`
	}{courseID}

	const q = `SELECT * FROM sections WHERE course_id = :course_id ORDER BY index, section_id`

	var ss []Section
	if err := database.NamedQuerySlice(ctx, db, q, in, &ss); err != nil {
		return nil, fmt.Errorf("selecting sections of course[%s]: %w", courseID, err)
	}
	return ss, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	INSERT INTO lessons
		(lesson_id, course_id, section_id, index, title, published_version_id, created_at, updated_at)
	VALUES
		(:lesson_id, :course_id, :section_id, :index, :title, :published_version_id, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("inserting lesson: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Lesson, error) {
	in := struct {
		ID string `db:"lesson_id"`
	}{id}

	const q = `SELECT * FROM lessons WHERE lesson_id = :lesson_id`

	var l Lesson
	if err := database.NamedQueryStruct(ctx, db, q, in, &l); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Lesson{}, ErrNotFound
		}
		return Lesson{}, fmt.Errorf("selecting lesson[%s]: %w", id, err)
	}
	return l, nil
}

func fetchForUpdate(ctx context.Context, db sqlx.ExtContext, id string) (Lesson, error) {
	in := struct {
		ID string `db:"lesson_id"`
	}{id}

	const q = `SELECT * FROM lessons WHERE lesson_id = :lesson_id FOR UPDATE`

	var l Lesson
	if err := database.NamedQueryStruct(ctx, db, q, in, &l); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Lesson{}, ErrNotFound
		}
		return Lesson{}, fmt.Errorf("locking lesson[%s]: %w", id, err)
	}
	return l, nil
}

// QueryByCourse lists the lessons of a course ordered by section and index.
// Lessons without a published version are left out unless withDrafts is set.
func QueryByCourse(ctx context.Context, db sqlx.ExtContext, courseID string, withDrafts bool) ([]Lesson, error) {
	in := struct {
		CourseID string `db:"course_id"`
		All      bool   `db:"all"`
	}{courseID, withDrafts}

	const q = `
	SELECT l.* FROM lessons AS l
	LEFT JOIN sections AS s ON s.section_id = l.section_id
	WHERE l.course_id = :course_id AND (l.published_version_id IS NOT NULL OR :all)
	ORDER BY s.index NULLS FIRST, l.index, l.lesson_id`

	var ls []Lesson
	if err := database.NamedQuerySlice(ctx, db, q, in, &ls); err != nil {
		return nil, fmt.Errorf("selecting lessons of course[%s]: %w", courseID, err)
	}
	return ls, nil
}

// CountPublished is the denominator of course progress.
func CountPublished(ctx context.Context, db sqlx.ExtContext, courseID string) (int, error) {
	in := struct {
		CourseID string `db:"course_id"`
	}{courseID}

	const q = `
	SELECT count(*) AS total FROM lessons
	WHERE course_id = :course_id AND published_version_id IS NOT NULL`

	var out struct {
		Total int `db:"total"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, in, &out); err != nil {
		return 0, fmt.Errorf("counting published lessons of course[%s]: %w", courseID, err)
	}
	return out.Total, nil
}

func fetchVersion(ctx context.Context, db sqlx.ExtContext, lessonID, status string) (Version, error) {
	in := struct {
		LessonID string `db:"lesson_id"`
		Status   string `db:"status"`
	}{lessonID, status}

	const q = `SELECT * FROM lesson_versions WHERE lesson_id = :lesson_id AND status = :status`

	var v Version
	if err := database.NamedQueryStruct(ctx, db, q, in, &v); err != nil {
		return Version{}, err
	}
	return v, nil
}

func queryBlocks(ctx context.Context, db sqlx.ExtContext, versionID string) ([]Block, error) {
	in := struct {
		VersionID string `db:"version_id"`
	}{versionID}

	const q = `SELECT * FROM lesson_blocks WHERE version_id = :version_id ORDER BY index`

	var bs []Block
	if err := database.NamedQuerySlice(ctx, db, q, in, &bs); err != nil {
		return nil, fmt.Errorf("selecting blocks of version[%s]: %w", versionID, err)
	}
	return bs, nil
}

// SaveDraft creates the single draft version of a lesson, or replaces the
// layout and blocks of the existing one.
func SaveDraft(ctx context.Context, db *sqlx.DB, lessonID string, dn DraftNew, now time.Time) (Version, error) {
	var v Version

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if _, err := fetchForUpdate(ctx, tx, lessonID); err != nil {
			return err
		}

		var err error
		v, err = fetchVersion(ctx, tx, lessonID, StatusDraft)
		switch {
		case err == nil:
			v.Layout = dn.Layout
			if err := updateDraft(ctx, tx, v); err != nil {
				return err
			}

		case errors.Is(err, database.ErrDBNotFound):
			number, err := nextNumber(ctx, tx, lessonID)
			if err != nil {
				return err
			}

			v = Version{
				ID:        validate.GenerateID(),
				LessonID:  lessonID,
				Number:    number,
				Status:    StatusDraft,
				Layout:    dn.Layout,
				CreatedAt: now,
			}
			if err := createVersion(ctx, tx, v); err != nil {
				return err
			}

		default:
			return fmt.Errorf("selecting draft of lesson[%s]: %w", lessonID, err)
		}

		v.Blocks = make([]Block, 0, len(dn.Blocks))
		for i, bn := range dn.Blocks {
			v.Blocks = append(v.Blocks, Block{
				ID:        validate.GenerateID(),
				VersionID: v.ID,
				Index:     i,
				Kind:      bn.Kind,
				Content:   bn.Content,
			})
		}

		return replaceBlocks(ctx, tx, v.ID, v.Blocks)
	})

	if err != nil {
		return Version{}, fmt.Errorf("saving draft of lesson[%s]: %w", lessonID, err)
	}
	return v, nil
}

// Publish promotes the draft, archives the previously published version and
// points the lesson at the new one.
func Publish(ctx context.Context, db *sqlx.DB, lessonID string, now time.Time) (Version, error) {
	var v Version

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		l, err := fetchForUpdate(ctx, tx, lessonID)
		if err != nil {
			return err
		}

		v, err = fetchVersion(ctx, tx, lessonID, StatusDraft)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return ErrNoDraft
			}
			return fmt.Errorf("selecting draft: %w", err)
		}

		in := struct {
			LessonID  string    `db:"lesson_id"`
			VersionID string    `db:"version_id"`
			Now       time.Time `db:"now"`
		}{lessonID, v.ID, now}

		const archive = `
		UPDATE lesson_versions SET status = 'archived'
		WHERE lesson_id = :lesson_id AND status = 'published'`

		if err := database.NamedExecContext(ctx, tx, archive, in); err != nil {
			return fmt.Errorf("archiving published version: %w", err)
		}

		const publish = `
		UPDATE lesson_versions SET status = 'published', published_at = :now
		WHERE version_id = :version_id`

		if err := database.NamedExecContext(ctx, tx, publish, in); err != nil {
			return fmt.Errorf("publishing version[%s]: %w", v.ID, err)
		}

		const point = `
		UPDATE lessons SET published_version_id = :version_id, updated_at = :now
		WHERE lesson_id = :lesson_id`

		if err := database.NamedExecContext(ctx, tx, point, in); err != nil {
			return fmt.Errorf("moving lesson[%s] pointer: %w", l.ID, err)
		}

		v.Status = StatusPublished
		v.PublishedAt = &now
		v.Blocks, err = queryBlocks(ctx, tx, v.ID)
		return err
	})

	if err != nil {
		return Version{}, fmt.Errorf("publishing lesson[%s]: %w", lessonID, err)
	}
	return v, nil
}

// FetchPublished returns a lesson with its published version and blocks.
func FetchPublished(ctx context.Context, db sqlx.ExtContext, lessonID string) (Content, error) {
	l, err := Fetch(ctx, db, lessonID)
	if err != nil {
		return Content{}, err
	}

	v, err := fetchVersion(ctx, db, lessonID, StatusPublished)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Content{}, ErrNotFound
		}
		return Content{}, fmt.Errorf("selecting published version of lesson[%s]: %w", lessonID, err)
	}

	if v.Blocks, err = queryBlocks(ctx, db, v.ID); err != nil {
		return Content{}, err
	}

	return Content{Lesson: l, Version: v}, nil
}

func nextNumber(ctx context.Context, db sqlx.ExtContext, lessonID string) (int, error) {
	in := struct {
		LessonID string `db:"lesson_id"`
	}{lessonID}

	const q = `SELECT COALESCE(MAX(number), 0) + 1 AS next FROM lesson_versions WHERE lesson_id = :lesson_id`

	var out struct {
		Next int `db:"next"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, in, &out); err != nil {
		return 0, fmt.Errorf("numbering version: %w", err)
	}
	return out.Next, nil
}

func createVersion(ctx context.Context, db sqlx.ExtContext, v Version) error {
	const q = `
	INSERT INTO lesson_versions
		(version_id, lesson_id, number, status, layout, created_at, published_at)
	VALUES
		(:version_id, :lesson_id, :number, :status, :layout, :created_at, :published_at)`

	if err := database.NamedExecContext(ctx, db, q, v); err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	return nil
}

func updateDraft(ctx context.Context, db sqlx.ExtContext, v Version) error {
	const q = `UPDATE lesson_versions SET layout = :layout WHERE version_id = :version_id`

	if err := database.NamedExecContext(ctx, db, q, v); err != nil {
		return fmt.Errorf("updating draft[%s]: %w", v.ID, err)
	}
	return nil
}

func replaceBlocks(ctx context.Context, db sqlx.ExtContext, versionID string, bs []Block) error {
	in := struct {
		VersionID string `db:"version_id"`
	}{versionID}

	const del = `DELETE FROM lesson_blocks WHERE version_id = :version_id`

	if err := database.NamedExecContext(ctx, db, del, in); err != nil {
		return fmt.Errorf("deleting blocks of version[%s]: %w", versionID, err)
	}

	const ins = `
	INSERT INTO lesson_blocks
		(block_id, version_id, index, kind, content)
	VALUES
		(:block_id, :version_id, :index, :kind, :content)`

	// lib/pq sends []byte as bytea, jsonb wants text.
	for _, b := range bs {
		row := struct {
			ID        string `db:"block_id"`
			VersionID string `db:"version_id"`
			Index     int    `db:"index"`
			Kind      string `db:"kind"`
			Content   string `db:"content"`
		}{b.ID, b.VersionID, b.Index, b.Kind, string(b.Content)}

		if err := database.NamedExecContext(ctx, db, ins, row); err != nil {
			return fmt.Errorf("inserting block %d: %w", b.Index, err)
		}
	}
	return nil
}

func enrolled(ctx context.Context, db sqlx.ExtContext, courseID, userID string) (bool, error) {
	in := struct {
		CourseID string `db:"course_id"`
		UserID   string `db:"user_id"`
	}{courseID, userID}

	const q = `
	SELECT EXISTS (
		SELECT 1 FROM course_enrollments WHERE course_id = :course_id AND user_id = :user_id
	) AS enrolled`

	var out struct {
		Enrolled bool `db:"enrolled"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, in, &out); err != nil {
		return false, fmt.Errorf("checking enrollment: %w", err)
	}
	return out.Enrolled, nil
}
