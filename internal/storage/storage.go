package storage

import (
	"context"
	"io"
)

// Object describes an upload destined for the avatar bucket.
type Object struct {
	Key         string
	Body        io.Reader
	ContentType string
}

// Service stores user-supplied images in remote object storage and returns the URL
// clients should use to fetch them.
type Service interface {
	Upload(ctx context.Context, obj Object) (string, error)
}
