package user

import (
	"context"
	"testing"
	"time"

	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/database/dbtest"
	"github.com/irsalhamdi/lms/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	db, _ := dbtest.New(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	usr, err := New(UserNew{
		Name:            "Ada",
		Email:           "Ada@Example.com",
		Role:            claims.RoleUser,
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", usr.Email)
	assert.NotEqual(t, []byte("correct horse"), usr.PasswordHash)

	require.NoError(t, Create(ctx, db, usr))
	require.ErrorIs(t, Create(ctx, db, usr), ErrEmailTaken)

	t.Run("Fetch", func(t *testing.T) {
		got, err := Fetch(ctx, db, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, usr.Email, got.Email)

		got, err = FetchByEmail(ctx, db, "ADA@example.com")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		_, err = Fetch(ctx, db, validate.GenerateID())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Authenticate", func(t *testing.T) {
		got, err := Authenticate(ctx, db, "ada@example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		_, err = Authenticate(ctx, db, "ada@example.com", "wrong password")
		require.ErrorIs(t, err, ErrAuthentication)

		_, err = Authenticate(ctx, db, "nobody@example.com", "correct horse")
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("EnsureAdmin", func(t *testing.T) {
		adm, created, err := EnsureAdmin(ctx, db, "Root", "root@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, claims.RoleAdmin, adm.Role)

		again, created, err := EnsureAdmin(ctx, db, "Root", "root@example.com", "other-pass")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, adm.ID, again.ID)

		_, _, err = EnsureAdmin(ctx, db, "Ada", "ada@example.com", "s3cret-pass")
		require.Error(t, err)

		_, _, err = EnsureAdmin(ctx, db, "Short", "short@example.com", "short")
		require.Error(t, err)
	})
}
