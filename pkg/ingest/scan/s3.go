package scan

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/awsutil"
	"github.com/harborline/stevedore/pkg/ingest"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/types"
)

const defaultBatchSize = 100

// listObjectsAPI is the slice of the S3 client the scanner uses.
type listObjectsAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Scanner enumerates the objects of an S3 bucket under an optional
// prefix. Zero-byte keys are skipped; S3 consoles create them as
// directory placeholders.
type S3Scanner struct {
	client    listObjectsAPI
	bucket    string
	prefix    string
	recursive bool
	batchSize int
	stopCh    chan struct{}
	logger    zerolog.Logger
}

// NewS3Scanner returns an unconfigured S3 scanner.
func NewS3Scanner() *S3Scanner {
	return &S3Scanner{
		batchSize: defaultBatchSize,
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("s3-scanner"),
	}
}

// ValidateConfiguration checks the scanner section without touching S3.
func (s *S3Scanner) ValidateConfiguration(cfg types.ScanConfiguration) error {
	if cfg.Scanner.Type != "s3" {
		return fmt.Errorf("scanner type %q is not s3", cfg.Scanner.Type)
	}
	if cfg.Scanner.Bucket == "" {
		return fmt.Errorf("s3 scanner requires a bucket")
	}
	return nil
}

// LoadConfiguration builds the S3 client from the configuration.
func (s *S3Scanner) LoadConfiguration(ctx context.Context, cfg types.ScanConfiguration) error {
	if err := s.ValidateConfiguration(cfg); err != nil {
		return err
	}

	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Scanner.Region, awsutil.Credentials{
		AccessKeyID:     cfg.Scanner.AccessKeyID,
		SecretAccessKey: cfg.Scanner.SecretAccessKey,
	})
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	s.client = awsutil.NewS3Client(awsCfg)
	s.bucket = cfg.Scanner.Bucket
	s.prefix = cfg.Scanner.Prefix
	s.recursive = cfg.Recursive
	return nil
}

// Scan pages through the bucket and reports batches of files. Without
// Recursive, enumeration stops at the first delimiter level below the
// prefix.
func (s *S3Scanner) Scan(ctx context.Context, report ReportFunc) error {
	if s.client == nil {
		return fmt.Errorf("scanner is not configured")
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	if !s.recursive {
		input.Delimiter = aws.String("/")
	}

	batch := make([]ingest.ScannedFile, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := report(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-s.stopCh:
			s.logger.Info().Msg("Scan stopped")
			return flush()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			size := aws.ToInt64(obj.Size)
			// Zero-size keys are directory placeholders, not files.
			if size == 0 {
				continue
			}
			batch = append(batch, ingest.ScannedFile{
				Name: path.Base(key),
				Path: key,
				Size: size,
			})
			if len(batch) >= s.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return flush()
}

// Stop ends a running Scan after the current page.
func (s *S3Scanner) Stop() {
	close(s.stopCh)
}
