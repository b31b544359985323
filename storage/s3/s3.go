// Package s3 implements the sentimentgate object store on Amazon S3 or any
// S3-compatible service.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ineyio/sentimentgate"
)

// HeadAPI is the subset of the S3 client used for existence checks.
type HeadAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used to issue upload URLs.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store presigns uploads into a single bucket and checks object existence.
type Store struct {
	bucket  string
	head    HeadAPI
	presign PresignAPI
}

var _ sentimentgate.ObjectStore = (*Store)(nil)

// New creates a store over an S3 client.
func New(client *s3.Client, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("sentimentgate/s3: bucket is required")
	}
	return &Store{
		bucket:  bucket,
		head:    client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// NewFromConfig creates a store from an AWS config. optFns tune the S3 client
// (e.g. BaseEndpoint and UsePathStyle for S3-compatible services).
func NewFromConfig(cfg aws.Config, bucket string, optFns ...func(*s3.Options)) (*Store, error) {
	return New(s3.NewFromConfig(cfg, optFns...), bucket)
}

// PresignPut returns a URL that accepts a single PUT of key with contentType
// until ttl elapses. Content-Type is part of the signature, so an upload with
// any other type is rejected by S3.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl), signContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("sentimentgate/s3: presign put: %w", err)
	}
	return req.URL, nil
}

// signContentType restores the Content-Type header the presigner strips from
// body-less requests, so the signer includes it in X-Amz-SignedHeaders.
func signContentType(contentType string) func(*s3.PresignOptions) {
	restore := middleware.BuildMiddlewareFunc("SentimentgateSignContentType",
		func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
			if req, ok := in.Request.(*smithyhttp.Request); ok {
				req.Header.Set("Content-Type", contentType)
			}
			return next.HandleBuild(ctx, in)
		})
	return func(o *s3.PresignOptions) {
		o.ClientOptions = append(o.ClientOptions, s3.WithAPIOptions(func(stack *middleware.Stack) error {
			return stack.Build.Add(restore, middleware.After)
		}))
	}
}

// Exists reports whether key is present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("sentimentgate/s3: head object: %w", err)
}

// Locate returns the s3:// URI the engine reads key from.
func (s *Store) Locate(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
