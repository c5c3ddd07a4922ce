package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor(t *testing.T) {
	createdAt := time.Date(2024, 5, 15, 14, 30, 45, 123456789, time.UTC)

	token := EncodeCursor(createdAt, "dlv-42")
	assert.NotEmpty(t, token, "Token should not be empty")

	decodedAt, decodedID, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, createdAt, decodedAt)
	assert.Equal(t, "dlv-42", decodedID)

	// Non-UTC times come back as the same instant
	local := time.Date(2024, 5, 15, 16, 30, 45, 0, time.FixedZone("WAT", 3600))
	decodedAt, _, err = DecodeCursor(EncodeCursor(local, "dlv-43"))
	require.NoError(t, err)
	assert.True(t, local.Equal(decodedAt))
}

func TestDecodeCursorError(t *testing.T) {
	_, _, err := DecodeCursor("this is not base64!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base64 decode")

	noSeparator := base64.StdEncoding.EncodeToString([]byte("2024-05-15T00:00:00Z"))
	_, _, err = DecodeCursor(noSeparator)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "split")

	emptyID := base64.StdEncoding.EncodeToString([]byte("2024-05-15T00:00:00Z|"))
	_, _, err = DecodeCursor(emptyID)
	assert.Error(t, err)

	badDate := base64.StdEncoding.EncodeToString([]byte("notadate|dlv-1"))
	_, _, err = DecodeCursor(badDate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "created_at parse")
}

func TestMultiFieldToken(t *testing.T) {
	token := EncodeMultiFieldToken("a", "b", "c")
	fields, err := DecodeMultiFieldToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)

	_, err = DecodeMultiFieldToken("%%%")
	assert.Error(t, err)
}
