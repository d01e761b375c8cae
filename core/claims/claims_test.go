package claims

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	_, err := Get(context.Background())
	require.ErrorIs(t, err, ErrMissing)

	want := Claims{UserID: "u1", Role: RoleUser}
	got, err := Get(Set(context.Background(), want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOwns(t *testing.T) {
	anon := context.Background()
	user := Set(anon, Claims{UserID: "u1", Role: RoleUser})
	admin := Set(anon, Claims{UserID: "a1", Role: RoleAdmin})

	assert.False(t, Owns(anon, "u1"))
	assert.False(t, Owns(anon, ""))
	assert.True(t, Owns(user, "u1"))
	assert.False(t, Owns(user, "u2"))
	assert.True(t, Owns(admin, "u1"))

	assert.False(t, IsAdmin(anon))
	assert.False(t, IsAdmin(user))
	assert.True(t, IsAdmin(admin))

	assert.False(t, Claims{}.Owns(""))
}
