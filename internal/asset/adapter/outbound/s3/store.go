// Package s3 adapts an S3-compatible bucket as the asset object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spaolacci/murmur3"

	"github.com/peerclass/asset-service/internal/asset/config"
	"github.com/peerclass/asset-service/internal/asset/port"
	"github.com/peerclass/asset-service/pkg/catp"
)

// StoreAdapter implements port.ObjectStore on top of an S3 bucket.
//
// Put streams through multipart uploads so a transfer is never buffered
// whole: parts are sent as the reader produces them and an abort discards
// every part server-side. An upload that fails for any reason therefore
// leaves no object behind — completed objects are the only visible state.
type StoreAdapter struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int64
}

// Ensure StoreAdapter implements port.ObjectStore.
var _ port.ObjectStore = (*StoreAdapter)(nil)

// New builds the store adapter and verifies bucket access.
func New(ctx context.Context, cfg config.StoreConfig) (*StoreAdapter, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	partSize := cfg.PartSize
	if partSize < 5*1024*1024 {
		partSize = 5 * 1024 * 1024
	}

	return &StoreAdapter{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
	}, nil
}

// objectLocation builds the final object key. Keys are spread over 256
// murmur3-derived shard prefixes so one hot parent cannot pile every object
// under a single prefix.
func (s *StoreAdapter) objectLocation(key string) string {
	shard := murmur3.Sum64([]byte(key)) & 0xff
	return fmt.Sprintf("%s%02x/%s", s.keyPrefix, shard, key)
}

// Put streams r into the bucket and returns the object location. Content
// smaller than one part goes through a single atomic PutObject; anything
// larger uses multipart upload with abort on failure.
func (s *StoreAdapter) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	location := s.objectLocation(key)

	// First part is read eagerly to decide between the two paths.
	buf := make([]byte, s.partSize)
	n, readErr := io.ReadFull(r, buf)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read upload stream: %w", readErr)
	}

	if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(location),
			Body:   bytes.NewReader(buf[:n]),
		})
		if err != nil {
			return "", fmt.Errorf("failed to put object: %w", err)
		}
		return location, nil
	}

	if err := s.putMultipart(ctx, location, buf[:n], r); err != nil {
		return "", err
	}
	return location, nil
}

// putMultipart uploads firstPart then the rest of r as multipart parts.
// Every failure path aborts the upload so no partial object survives.
func (s *StoreAdapter) putMultipart(ctx context.Context, location string, firstPart []byte, r io.Reader) error {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := *created.UploadId

	abort := func() {
		// Abort may not use the request context: it must run exactly when
		// that context is already dead.
		_, _ = s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(location),
			UploadId: aws.String(uploadID),
		})
	}

	var completed []types.CompletedPart
	partNum := int32(0)

	uploadPart := func(data []byte) error {
		partNum++
		resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(location),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNum),
			Body:       bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("failed to upload part %d: %w", partNum, err)
		}
		completed = append(completed, types.CompletedPart{
			ETag:       resp.ETag,
			PartNumber: aws.Int32(partNum),
		})
		return nil
	}

	if err := uploadPart(firstPart); err != nil {
		abort()
		return err
	}

	buf := make([]byte, s.partSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := uploadPart(buf[:n]); err != nil {
				abort()
				return err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			abort()
			return fmt.Errorf("failed to read upload stream: %w", readErr)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(location),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		abort()
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}

// Get opens a read stream over a stored object.
func (s *StoreAdapter) Get(ctx context.Context, location string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("object %s: %w", location, catp.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return resp.Body, nil
}

// Delete removes a stored object. Idempotent: deleting a missing object is
// not an error.
func (s *StoreAdapter) Delete(ctx context.Context, location string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
