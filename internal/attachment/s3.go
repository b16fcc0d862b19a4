// Package attachment resolves attachment IDs into wire-ready files from
// blob storage.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrAttachmentNotFound is returned when no object exists for an ID.
var ErrAttachmentNotFound = errors.New("attachment not found")

// File is one loaded attachment: its display filename and raw bytes.
type File struct {
	Filename string
	Content  []byte
}

// S3Store loads attachment files from an S3 bucket. Objects live under
// keyPrefix with the attachment ID as the key's final element; the display
// filename comes from object metadata when present, else the key basename.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Store creates an S3-backed attachment store.
func NewS3Store(ctx context.Context, bucket, region, profile, keyPrefix string) (*S3Store, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Store{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		keyPrefix: keyPrefix,
	}, nil
}

// Load fetches one attachment by ID.
func (s *S3Store) Load(ctx context.Context, id string) (*File, error) {
	key := path.Join(s.keyPrefix, id)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, id)
		}
		return nil, fmt.Errorf("getting attachment %s from S3: %w", id, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s body: %w", id, err)
	}

	filename := result.Metadata["filename"]
	if filename == "" {
		filename = path.Base(key)
	}

	return &File{Filename: filename, Content: content}, nil
}
