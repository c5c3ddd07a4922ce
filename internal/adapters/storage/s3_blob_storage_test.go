package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/receipts/", "Bordereau.JPG")

	assert.True(t, strings.HasPrefix(key, "receipts/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ObjectKey("receipts", "Bordereau.JPG"))
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBaseURL(Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "eu-west-3"))
	assert.Equal(t, "http://minio:9000/b", publicBaseURL(Config{Bucket: "b", Endpoint: "http://minio:9000"}, "eu-west-3"))
	assert.Equal(t, "https://b.s3.eu-west-3.amazonaws.com", publicBaseURL(Config{Bucket: "b"}, "eu-west-3"))
}

func TestNewS3BlobStorage(t *testing.T) {
	_, err := NewS3BlobStorage(context.Background(), Config{})
	assert.Error(t, err)

	store, err := NewS3BlobStorage(context.Background(), Config{
		Bucket:       "geexpress",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/geexpress", store.baseURL)
	assert.NoError(t, store.Delete(context.Background(), ""))
}
