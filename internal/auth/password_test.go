package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, hasher.Matches("s3cret", hash))
	assert.False(t, hasher.Matches("wrongpassword", hash))
	assert.False(t, hasher.Matches("s3cret", "not-a-bcrypt-hash"))
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(bcrypt.MinCost).cost)
}

func TestBcryptHasher_RejectsLongPasswords(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	_, err := hasher.Hash(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)

	_, err = hasher.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
