package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stemstr/arweave-upload/internal/fetcher"
)

type Config struct {
	Region string
	// Endpoint overrides the AWS endpoint for S3 compatible stores.
	Endpoint string
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 is an object source for s3://bucket/key references.
type S3 struct {
	client s3API
}

func New(ctx context.Context, cfg Config) (*S3, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{client: client}, nil
}

func (s *S3) Fetch(ctx context.Context, ref fetcher.Ref) (*fetcher.Object, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Host),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", fetcher.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("s3.GetObject: %w", err)
	}

	obj := &fetcher.Object{
		Body:          resp.Body,
		ContentLength: -1,
	}
	if resp.ContentLength > 0 {
		obj.ContentLength = resp.ContentLength
	}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}

	return obj, nil
}
