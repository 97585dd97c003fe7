package promo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectGetter is the part of the S3 client the loader uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader implements Loader for gzipped catalogue files stored in S3.
type s3Loader struct {
	client ObjectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates an S3 catalogue loader using the default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 promo loader initialised")

	return NewS3LoaderWithClient(s3.NewFromConfig(cfg), bucket, logger), nil
}

// NewS3LoaderWithClient creates an S3 catalogue loader on an existing client.
func NewS3LoaderWithClient(client ObjectGetter, bucket string, logger zerolog.Logger) Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "promo-s3-loader").Logger(),
	}
}

// Load reads the object at key, which must include any prefix.
func (l *s3Loader) Load(ctx context.Context, key string) (Catalog, error) {
	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", key).
		Msg("loading promo catalogue from S3")

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", key).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	catalog, skipped, err := parseCatalog(ctx, result.Body)
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", key).
			Msg("failed to read promo catalogue from S3")
		return nil, fmt.Errorf("failed to read promo catalogue from S3 %s: %w", key, err)
	}

	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", key).
		Int("codes_loaded", catalog.Size()).
		Int("lines_skipped", skipped).
		Msg("promo catalogue loaded from S3")

	return catalog, nil
}

// fallbackLoader tries S3 first and falls back to the local file system.
type fallbackLoader struct {
	primary  Loader
	local    Loader
	s3Prefix string
	logger   zerolog.Logger
}

// NewFallbackLoader creates a loader that reads s3Prefix+path from primary and, on failure or
// when primary is nil, path from local.
func NewFallbackLoader(primary, local Loader, s3Prefix string, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		primary:  primary,
		local:    local,
		s3Prefix: s3Prefix,
		logger:   logger.With().Str("component", "promo-fallback-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) (Catalog, error) {
	if l.primary != nil {
		key := l.s3Prefix + path

		catalog, err := l.primary.Load(ctx, key)
		if err == nil {
			return catalog, nil
		}

		l.logger.Warn().
			Err(err).
			Str("s3_key", key).
			Str("local_path", path).
			Msg("failed to load from S3, falling back to local file system")
	}

	return l.local.Load(ctx, path)
}
