package lesson

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/database/dbtest"
	"github.com/irsalhamdi/lms/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	db, _ := dbtest.New(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	courseID := dbtest.SeedCourse(t, db, "go", "10", true)

	s := Section{ID: validate.GenerateID(), CourseID: courseID, Index: 0, Title: "basics", CreatedAt: now}
	require.NoError(t, CreateSection(ctx, db, s))

	got, err := FetchSection(ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Title, got.Title)

	_, err = FetchSection(ctx, db, validate.GenerateID())
	require.ErrorIs(t, err, ErrSectionNotFound)

	l := Lesson{ID: validate.GenerateID(), CourseID: courseID, SectionID: &s.ID, Index: 0, Title: "intro", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, Create(ctx, db, l))

	_, err = Publish(ctx, db, l.ID, now)
	require.ErrorIs(t, err, ErrNoDraft)

	_, err = FetchPublished(ctx, db, l.ID)
	require.ErrorIs(t, err, ErrNotFound)

	draft := DraftNew{
		Layout: LayoutTwoColumn,
		Blocks: []BlockNew{
			{Kind: "text", Content: json.RawMessage(`{"body":"hello"}`)},
			{Kind: "video", Content: json.RawMessage(`{"url":"https://video.test/1"}`)},
		},
	}
	v1, err := SaveDraft(ctx, db, l.ID, draft, now)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, StatusDraft, v1.Status)

	draft.Layout = LayoutSingle
	draft.Blocks = draft.Blocks[:1]
	again, err := SaveDraft(ctx, db, l.ID, draft, now)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, again.ID)
	assert.Len(t, again.Blocks, 1)

	n, err := CountPublished(ctx, db, courseID)
	require.NoError(t, err)
	assert.Zero(t, n)

	pub, err := Publish(ctx, db, l.ID, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, pub.Status)

	cnt, err := FetchPublished(ctx, db, l.ID)
	require.NoError(t, err)
	require.NotNil(t, cnt.Lesson.PublishedVersionID)
	assert.Equal(t, v1.ID, *cnt.Lesson.PublishedVersionID)
	assert.Equal(t, LayoutSingle, cnt.Version.Layout)
	require.Len(t, cnt.Version.Blocks, 1)
	assert.JSONEq(t, `{"body":"hello"}`, string(cnt.Version.Blocks[0].Content))

	v2, err := SaveDraft(ctx, db, l.ID, DraftNew{Layout: LayoutVideoFocus}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	_, err = Publish(ctx, db, l.ID, now)
	require.NoError(t, err)

	var status string
	err = db.QueryRowContext(ctx, `SELECT status FROM lesson_versions WHERE version_id = $1`, v1.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, status)

	hidden := Lesson{ID: validate.GenerateID(), CourseID: courseID, Index: 1, Title: "wip", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, Create(ctx, db, hidden))

	ls, err := QueryByCourse(ctx, db, courseID, false)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, l.ID, ls[0].ID)

	ls, err = QueryByCourse(ctx, db, courseID, true)
	require.NoError(t, err)
	assert.Len(t, ls, 2)

	n, err = CountPublished(ctx, db, courseID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := enrolled(ctx, db, courseID, dbtest.SeedUser(t, db, "reader@example.com"))
	require.NoError(t, err)
	assert.False(t, ok)
}
