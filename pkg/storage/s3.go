// Package storage publishes run artifacts to S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// Config represents S3 storage configuration.
type Config struct {
	Region                  string `mapstructure:"region"`
	Endpoint                string `mapstructure:"endpoint" validate:"omitempty,url"`
	ForcePathStyle          bool   `mapstructure:"force_path_style"`
	PartSize                int64  `mapstructure:"part_size" validate:"omitempty,gte=5242880"`
	Concurrency             int    `mapstructure:"concurrency" validate:"gte=0"`
	DisableComputeChecksums bool   `mapstructure:"disable_compute_checksums"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `mapstructure:"session_token"`

	// RoleARN, when set, is assumed through STS on top of the base credentials.
	RoleARN         string `mapstructure:"role_arn"`
	RoleSessionName string `mapstructure:"role_session_name"`
	ExternalID      string `mapstructure:"external_id"`
}

// DefaultConfig returns default S3 storage configuration.
func DefaultConfig() *Config {
	return &Config{
		PartSize:    manager.MinUploadPartSize,
		Concurrency: manager.DefaultUploadConcurrency,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// S3Storage uploads files from an afero filesystem to S3.
type S3Storage struct {
	uploader *manager.Uploader
	fs       afero.Fs
	logger   logging.Interface
	config   *Config
}

// New creates a new S3 storage instance.
func New(ctx context.Context, cfg *Config, fs afero.Fs, logger logging.Interface) (*S3Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if cfg.PartSize == 0 {
			cfg.PartSize = defaults.PartSize
		}
		if cfg.Concurrency == 0 {
			cfg.Concurrency = defaults.Concurrency
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}

	awsConfig, err := createAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.DisableComputeChecksums {
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
		u.LeavePartsOnError = false
	})

	return &S3Storage{
		uploader: uploader,
		fs:       fs,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Upload copies the file at source to target.
func (s *S3Storage) Upload(ctx context.Context, source string, target ObjectURI) error {
	file, err := s.fs.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	s.logger.WithField("source", source).
		WithField("target", target.String()).
		WithField("bytes", info.Size()).
		Info("Uploading artifact")

	return s.Put(ctx, target, file, mime.TypeByExtension(filepath.Ext(source)))
}

// Put stores data from reader as an object. Large bodies go up as multipart uploads.
func (s *S3Storage) Put(ctx context.Context, target ObjectURI, reader io.Reader, contentType string) error {
	if target.ObjectName == "" {
		return fmt.Errorf("target %s does not name an object", target.String())
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(target.BucketName),
		Key:    aws.String(target.Key()),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("failed to upload %s (%s): %w", target.String(), apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("failed to upload %s: %w", target.String(), err)
	}
	return nil
}

func createAWSConfig(ctx context.Context, cfg *Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	if cfg.Region != "" {
		awsConfig.Region = cfg.Region
	}

	if cfg.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsConfig)
		provider := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.RoleSessionName != "" {
				o.RoleSessionName = cfg.RoleSessionName
			}
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsConfig.Credentials = aws.NewCredentialsCache(provider)
	}
	return awsConfig, nil
}
