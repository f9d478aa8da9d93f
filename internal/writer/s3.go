package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "taifexflow/config"
	"taifexflow/logger"
)

// S3Mirror uploads a copy of every persisted artifact to an S3 bucket so
// downstream consumers can read snapshots without access to the crawl host.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

// NewS3Mirror initializes an S3 client from the storage configuration.
func NewS3Mirror(ctx context.Context, cfg appconfig.S3Config, log *logger.Log) (*S3Mirror, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.WithComponent("s3_mirror").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
		"prefix": cfg.Prefix,
	}).Debug("s3 mirror initialized")

	return &S3Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

// Upload puts one artifact under the configured key prefix.
func (m *S3Mirror) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	key := path.Join(m.prefix, name)

	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	m.log.WithComponent("s3_mirror").WithFields(logger.Fields{
		"key":   key,
		"bytes": len(data),
	}).Info("artifact mirrored to s3")

	return nil
}
