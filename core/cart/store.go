package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/core/course"
	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrAlreadyInCart = errors.New("course already in cart")

// GetOrCreate returns the cart of a user, creating an empty one on first use.
func GetOrCreate(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) (Cart, error) {
	crt := Cart{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	const ins = `
	INSERT INTO carts (user_id, created_at, updated_at, version)
	VALUES (:user_id, :created_at, :updated_at, :version)
	ON CONFLICT (user_id) DO NOTHING`

	if err := database.NamedExecContext(ctx, db, ins, crt); err != nil {
		return Cart{}, fmt.Errorf("inserting cart: %w", err)
	}

	const q = `SELECT * FROM carts WHERE user_id = :user_id`

	if err := database.NamedQueryStruct(ctx, db, q, crt, &crt); err != nil {
		return Cart{}, fmt.Errorf("selecting cart: %w", err)
	}
	return crt, nil
}

func QueryItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{userID}

	const q = `SELECT * FROM cart_items WHERE user_id = :user_id ORDER BY created_at, course_id`

	var its []Item
	if err := database.NamedQuerySlice(ctx, db, q, in, &its); err != nil {
		return nil, fmt.Errorf("selecting cart items: %w", err)
	}
	return its, nil
}

// QueryCourses returns the courses in a cart in insertion order.
func QueryCourses(ctx context.Context, db sqlx.ExtContext, userID string) ([]course.Course, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{userID}

	const q = `
	SELECT c.* FROM courses AS c
	JOIN cart_items AS i ON i.course_id = c.course_id
	WHERE i.user_id = :user_id
	ORDER BY i.created_at, c.course_id`

	var cs []course.Course
	if err := database.NamedQuerySlice(ctx, db, q, in, &cs); err != nil {
		return nil, fmt.Errorf("selecting cart courses: %w", err)
	}
	return cs, nil
}

func AddItem(ctx context.Context, db *sqlx.DB, userID, courseID string, now time.Time) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, userID, now); err != nil {
			return err
		}

		c, err := course.Fetch(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if !c.Published {
			return course.ErrNotFound
		}

		it := Item{
			UserID:    userID,
			CourseID:  courseID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		const q = `
		INSERT INTO cart_items (user_id, course_id, created_at, updated_at)
		VALUES (:user_id, :course_id, :created_at, :updated_at)
		ON CONFLICT (user_id, course_id) DO NOTHING`

		n, err := database.NamedExecAffected(ctx, tx, q, it)
		if err != nil {
			return fmt.Errorf("inserting item: %w", err)
		}
		if n == 0 {
			return ErrAlreadyInCart
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("adding course[%s] to cart of user[%s]: %w", courseID, userID, err)
	}
	return nil
}

func RemoveItem(ctx context.Context, db *sqlx.DB, userID, courseID string, now time.Time) error {
	return RemoveItems(ctx, db, userID, []string{courseID}, now)
}

// RemoveItems drops the given courses from a cart; absent ids are ignored.
func RemoveItems(ctx context.Context, db *sqlx.DB, userID string, courseIDs []string, now time.Time) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, userID, now); err != nil {
			return err
		}
		return deleteItems(ctx, tx, userID, courseIDs)
	})

	if err != nil {
		return fmt.Errorf("removing items from cart of user[%s]: %w", userID, err)
	}
	return nil
}

func Clear(ctx context.Context, db *sqlx.DB, userID string, now time.Time) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, userID, now); err != nil {
			return err
		}
		return deleteItems(ctx, tx, userID, nil)
	})

	if err != nil {
		return fmt.Errorf("clearing cart of user[%s]: %w", userID, err)
	}
	return nil
}

// Sync replaces the cart with courseIDs. Duplicates collapse and ids that do
// not name a published course are dropped.
func Sync(ctx context.Context, db *sqlx.DB, userID string, courseIDs []string, now time.Time) error {
	ids := dedupe(courseIDs)

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, userID, now); err != nil {
			return err
		}

		if err := deleteItems(ctx, tx, userID, nil); err != nil {
			return err
		}

		if len(ids) == 0 {
			return nil
		}

		cs, err := course.QueryByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}

		published := make(map[string]bool, len(cs))
		for _, c := range cs {
			published[c.ID] = c.Published
		}

		const q = `
		INSERT INTO cart_items (user_id, course_id, created_at, updated_at)
		VALUES (:user_id, :course_id, :created_at, :updated_at)`

		for i, id := range ids {
			if !published[id] {
				continue
			}

			// Offsets keep the client's order stable under ORDER BY created_at.
			at := now.Add(time.Duration(i) * time.Microsecond)
			it := Item{UserID: userID, CourseID: id, CreatedAt: at, UpdatedAt: at}
			if err := database.NamedExecContext(ctx, tx, q, it); err != nil {
				return fmt.Errorf("inserting item[%s]: %w", id, err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("syncing cart of user[%s]: %w", userID, err)
	}
	return nil
}

// lock creates the cart if needed, takes its row lock for the rest of the
// transaction and bumps its version.
func lock(ctx context.Context, tx sqlx.ExtContext, userID string, now time.Time) error {
	crt, err := GetOrCreate(ctx, tx, userID, now)
	if err != nil {
		return err
	}

	const sel = `SELECT * FROM carts WHERE user_id = :user_id FOR UPDATE`

	if err := database.NamedQueryStruct(ctx, tx, sel, crt, &crt); err != nil {
		return fmt.Errorf("locking cart: %w", err)
	}

	crt.UpdatedAt = now

	const up = `
	UPDATE carts SET version = version + 1, updated_at = :updated_at
	WHERE user_id = :user_id`

	if err := database.NamedExecContext(ctx, tx, up, crt); err != nil {
		return fmt.Errorf("touching cart: %w", err)
	}
	return nil
}

// deleteItems removes courseIDs, or every item when courseIDs is nil.
func deleteItems(ctx context.Context, tx sqlx.ExtContext, userID string, courseIDs []string) error {
	in := struct {
		UserID    string         `db:"user_id"`
		All       bool           `db:"all"`
		CourseIDs pq.StringArray `db:"course_ids"`
	}{userID, courseIDs == nil, courseIDs}

	const q = `
	DELETE FROM cart_items
	WHERE user_id = :user_id AND (:all OR course_id = ANY(CAST(:course_ids AS uuid[])))`

	if err := database.NamedExecContext(ctx, tx, q, in); err != nil {
		return fmt.Errorf("deleting cart items: %w", err)
	}
	return nil
}
