// Package awsutil centralizes AWS client construction. Explicit
// credentials from a scanner configuration take precedence; otherwise
// clients fall back to the default provider chain (environment, shared
// config, instance role).
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Credentials holds explicit AWS credentials. A zero value means "use
// the default provider chain".
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// IsExplicit reports whether both key parts are present.
func (c Credentials) IsExplicit() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// LoadConfig builds an AWS config for the given region using explicit
// credentials when provided.
func LoadConfig(ctx context.Context, region string, creds Credentials) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if creds.IsExplicit() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// NewS3Client returns an S3 client for the config.
func NewS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// NewSQSClient returns an SQS client for the config.
func NewSQSClient(cfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(cfg)
}
