// Package s3 reads stage files stored in S3-compatible buckets.
package s3

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"

	"github.com/ORIGYN-SA/mintgo/stage"
)

// ObjectStorage is a S3-compatible storage interface.
type ObjectStorage interface {
	Fetch(ctx context.Context, URI string) ([]byte, error)
}

// ObjectStorageImpl is our implementation of the ObjectStorage interface.
type ObjectStorageImpl struct {
	client     s3iface.S3API
	downloader *s3manager.Downloader
}

var (
	_ ObjectStorage       = (*ObjectStorageImpl)(nil)
	_ stage.ObjectFetcher = (*ObjectStorageImpl)(nil)
)

// New returns a pointer to a new ObjectStorageImpl.
func New(sess *session.Session) *ObjectStorageImpl {
	return NewWithClient(s3.New(sess))
}

func NewWithClient(client s3iface.S3API) *ObjectStorageImpl {
	return &ObjectStorageImpl{
		client:     client,
		downloader: s3manager.NewDownloaderWithClient(client),
	}
}

// Fetch returns the contents of the object addressed by an s3:// URI.
func (s *ObjectStorageImpl) Fetch(ctx context.Context, URI string) ([]byte, error) {
	bucket, key, err := getBucketAndKey(URI)
	if err != nil {
		return nil, err
	}
	req := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	buf := aws.NewWriteAtBuffer([]byte{})
	if _, err := s.downloader.DownloadWithContext(ctx, buf, req); err != nil {
		return nil, errors.Wrapf(err, "cannot download %s", URI)
	}
	return buf.Bytes(), nil
}

func getBucketAndKey(URI string) (bucket string, key string, err error) {
	u, err := url.Parse(URI)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", errors.Errorf("unsupported scheme in %q", URI)
	}
	bucket, key = u.Hostname(), strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.Errorf("missing bucket or key in %q", URI)
	}
	return bucket, key, nil
}
