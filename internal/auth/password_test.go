package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", hash)

	assert.NoError(t, h.Compare(hash, "Secret123"))
	assert.Error(t, h.Compare(hash, "secret123"))
	assert.Error(t, h.Compare("not-a-hash", "Secret123"))
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).cost)
	assert.Equal(t, 10, NewHasher(10).cost)
}
