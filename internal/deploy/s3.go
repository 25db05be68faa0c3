// Package deploy syncs a build output directory to S3 for production
// serving behind the public path prefix.
package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is the slice of the S3 client the sync needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Syncer uploads build artifacts to an S3 bucket.
type Syncer struct {
	client Uploader
	bucket string
	prefix string

	// Logf reports per-file progress. Optional.
	Logf func(format string, args ...any)
}

// NewSyncer creates a syncer for a bucket and key prefix.
func NewSyncer(client Uploader, bucket, prefix string) *Syncer {
	return &Syncer{
		client: client,
		bucket: bucket,
		prefix: strings.TrimPrefix(prefix, "/"),
	}
}

// Sync walks dir and uploads every regular file, keyed by its path
// relative to dir under the configured prefix. Returns the number of
// files uploaded.
func (s *Syncer) Sync(ctx context.Context, dir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := s.uploadFile(ctx, path, filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		uploaded++
		return nil
	})
	return uploaded, err
}

func (s *Syncer) uploadFile(ctx context.Context, path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := rel
	if s.prefix != "" {
		key = strings.TrimSuffix(s.prefix, "/") + "/" + rel
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		// Fingerprinted assets never change under the same name.
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return err
	}
	if s.Logf != nil {
		s.Logf("uploaded %s", key)
	}
	return nil
}
