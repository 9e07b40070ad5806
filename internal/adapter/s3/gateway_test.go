package s3

import (
	"errors"
	"testing"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	err := mapError("v1/2020/1/0/0/data", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	boom := errors.New("connection reset")
	err = mapError("v1/2020/1/0/0/data", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestNew(t *testing.T) {
	g, err := New(Config{Endpoint: "localhost:9000", Bucket: "climate", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "climate", g.bucket)
}
