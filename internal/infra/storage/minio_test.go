package storage

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	// given
	cli, err := minio.New("minio.local:9000", &minio.Options{Creds: credentials.NewStaticV4("a", "b", "")})
	require.NoError(t, err)
	s := &Store{client: cli, bucketName: "scan-insight"}

	// when
	url := s.objectURL("reports/t1/x.csv")

	// then
	assert.Equal(t, "http://minio.local:9000/scan-insight/reports/t1/x.csv", url)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("/tmp/aws/default.json"))
	assert.Equal(t, "text/csv", contentType("x.csv"))
	assert.Equal(t, "application/octet-stream", contentType("image.tar"))
}
