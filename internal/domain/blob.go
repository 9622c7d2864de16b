package domain

import (
	"context"
	"io"
	"time"
)

// BlobObject is a stored object opened for reading. The caller closes Body.
type BlobObject struct {
	Body         io.ReadCloser
	Size         int64 // -1 when unknown
	ContentType  string
	ETag         string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ReportExporter writes a human-readable report of a result to object storage
// and returns the object path.
type ReportExporter interface {
	Export(ctx context.Context, res *OptimizationResult) (string, error)
}
