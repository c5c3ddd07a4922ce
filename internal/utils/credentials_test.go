package utils

import (
	"strings"
	"testing"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("0000"))
	assert.ErrorIs(t, ValidatePassword("123"), apperrors.ErrValidation)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("a", 73)), apperrors.ErrValidation)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("0000")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("0000", hash))
	assert.False(t, CheckPasswordHash("1111", hash))
}

func TestRefreshToken(t *testing.T) {
	token, err := NewRefreshToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := NewRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	hash := HashRefreshToken(token)
	assert.True(t, CompareRefreshTokenHash(token, hash))
	assert.False(t, CompareRefreshTokenHash(other, hash))
	assert.False(t, CompareRefreshTokenHash("", ""))
}

func TestGenerateSecureRandomString_RejectsNonPositive(t *testing.T) {
	_, err := GenerateSecureRandomString(0)
	assert.Error(t, err)
}
