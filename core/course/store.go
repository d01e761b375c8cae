package course

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("course not found")
	ErrDiscountAbovePrice = errors.New("discount price must not exceed the price")
)

// Apply merges an update into c and checks the resulting pricing.
func (c *Course) Apply(up CourseUp) error {
	if up.Name != nil {
		c.Name = *up.Name
	}
	if up.Description != nil {
		c.Description = *up.Description
	}
	if up.Price != nil {
		c.Price = *up.Price
	}
	if up.ClearDiscount {
		c.DiscountPrice = decimal.NullDecimal{}
	}
	if up.DiscountPrice != nil {
		c.DiscountPrice = decimal.NewNullDecimal(*up.DiscountPrice)
	}
	if up.ImageURL != nil {
		c.ImageURL = *up.ImageURL
	}
	if up.Published != nil {
		c.Published = *up.Published
	}

	if c.DiscountPrice.Valid && c.DiscountPrice.Decimal.GreaterThan(c.Price) {
		return ErrDiscountAbovePrice
	}
	return nil
}

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, name, description, image_url, price, discount_price, published, created_at, updated_at, version)
	VALUES
		(:course_id, :name, :description, :image_url, :price, :discount_price, :published, :created_at, :updated_at, :version)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		discount_price = :discount_price,
		published = :published,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	in := struct {
		ID string `db:"course_id"`
	}{id}

	const q = `SELECT * FROM courses WHERE course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, in, &c); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

// QueryByIDs returns the courses that exist among ids, in no particular order.
func QueryByIDs(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Course, error) {
	in := struct {
		IDs pq.StringArray `db:"course_ids"`
	}{ids}

	const q = `SELECT * FROM courses WHERE course_id = ANY(CAST(:course_ids AS uuid[]))`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, in, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses by id: %w", err)
	}
	return cs, nil
}

func Query(ctx context.Context, db sqlx.ExtContext, withUnpublished bool) ([]Course, error) {
	in := struct {
		All bool `db:"all"`
	}{withUnpublished}

	const q = `
	SELECT * FROM courses
	WHERE published OR :all
	ORDER BY created_at, course_id`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, in, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}

func QueryOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]Course, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{userID}

	const q = `
	SELECT c.* FROM courses AS c
	JOIN course_enrollments AS e ON e.course_id = c.course_id
	WHERE e.user_id = :user_id
	ORDER BY e.enrolled_at, c.course_id`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, in, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}
	return cs, nil
}
