package minio

import (
	"errors"
	"net/http"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrConnectionFailed is returned when no usable client is available.
	ErrConnectionFailed = errors.New("minio: connection failed")
	// ErrObjectNotFound is returned when an archive key does not exist.
	ErrObjectNotFound = errors.New("minio: object not found")
	// ErrCorruptArchive is returned when an archive cannot be decoded.
	ErrCorruptArchive = errors.New("minio: corrupt archive")
)

// translateError maps S3 error responses onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.StatusCode == http.StatusNotFound:
		return errors.Join(ErrObjectNotFound, err)
	}
	return err
}

// IsNotFound reports whether err means the archive does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
