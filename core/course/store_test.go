package course

import (
	"context"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/database/dbtest"
	"github.com/irsalhamdi/lms/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	db, _ := dbtest.New(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	c := Course{
		ID:          validate.GenerateID(),
		Name:        "go",
		Description: "learn go",
		ImageURL:    "https://img.test/go",
		Price:       dec("49.90"),
		Published:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	require.NoError(t, Create(ctx, db, c))

	_, err := Fetch(ctx, db, validate.GenerateID())
	require.ErrorIs(t, err, ErrNotFound)

	cs, err := Query(ctx, db, false)
	require.NoError(t, err)
	assert.Empty(t, cs)

	cs, err = Query(ctx, db, true)
	require.NoError(t, err)
	assert.Len(t, cs, 1)

	published := true
	discount := dec("39.90")
	require.NoError(t, c.Apply(CourseUp{Published: &published, DiscountPrice: &discount}))
	require.NoError(t, Update(ctx, db, c))

	got, err := Fetch(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.Published)
	assert.True(t, got.EffectivePrice().Equal(discount))

	other := dbtest.SeedCourse(t, db, "sql", "5", true)
	cs, err = QueryByIDs(ctx, db, []string{c.ID, other, validate.GenerateID()})
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	student := dbtest.SeedUser(t, db, "owner@example.com")
	_, err = db.ExecContext(ctx, `
	INSERT INTO course_enrollments (enrollment_id, course_id, user_id, enrolled_at, progress, status, updated_at)
	VALUES (gen_random_uuid(), $1, $2, now(), 0, 'active', now())`, other, student)
	require.NoError(t, err)

	owned, err := QueryOwned(ctx, db, student)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, other, owned[0].ID)
	assert.True(t, owned[0].Price.Equal(decimal.NewFromInt(5)))
}
