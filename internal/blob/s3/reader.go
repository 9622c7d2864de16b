package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Reader opens exported reports. Only keys under the report prefix can be
// read, so a tampered report path cannot reach other objects in the bucket.
type Reader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewReader creates a Reader for the client's bucket limited to prefix.
func NewReader(c *Client, prefix string) *Reader {
	return &Reader{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: strings.Trim(prefix, "/"),
	}
}

// Open fetches the report at path. A missing object, or a path outside the
// report prefix, yields domain.ErrNotFound.
func (r *Reader) Open(ctx context.Context, path string) (*domain.BlobObject, error) {
	if !underPrefix(r.prefix, path) {
		return nil, fmt.Errorf("s3blob: open %s: outside %q: %w", path, r.prefix, domain.ErrNotFound)
	}
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: open %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: open %s: %w", path, err)
	}

	obj := &domain.BlobObject{
		Body:         out.Body,
		Size:         -1,
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

func underPrefix(prefix, path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	return prefix == "" || strings.HasPrefix(path, prefix+"/")
}

// isNotFound recognises NoSuchKey and NotFound API errors, and a bare 404
// from S3-compatible stores that send no error code.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
