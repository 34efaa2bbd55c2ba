// Package uploader ships finished transcript files to S3 and deletes the
// local copy once the upload sticks.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/chat"
)

// Config selects the bucket and how to reach it. Static keys take priority;
// without them the default AWS credential chain applies.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

const uploadAttempts = 3

// Client is the S3 surface the uploader uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader consumes file paths from a channel, uploading each with retries.
type Uploader struct {
	cfg        Config
	client     Client
	log        *log.Logger
	retryDelay time.Duration
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
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
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(cfg, client), nil
}

// NewWithClient is the injection point for tests.
func NewWithClient(cfg Config, client Client) *Uploader {
	return &Uploader{
		cfg:        cfg,
		client:     client,
		log:        log.With("component", "uploader", "bucket", cfg.Bucket),
		retryDelay: 5 * time.Second,
	}
}

// Run uploads every path received on files until the channel closes or ctx
// is cancelled. Files that still fail after all retries stay on disk for the
// next session's ScanExisting.
func (u *Uploader) Run(ctx context.Context, files <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-files:
			if !ok {
				return
			}
			if err := u.uploadWithRetry(ctx, path); err != nil {
				u.log.Error("giving up on upload", "path", path, "err", err)
			}
		}
	}
}

// ScanExisting uploads files left behind by an earlier session.
func (u *Uploader) ScanExisting(ctx context.Context, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "transcript-*.jsonl"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := u.uploadWithRetry(ctx, path); err != nil {
			u.log.Error("giving up on leftover upload", "path", path, "err", err)
		}
	}
	return nil
}

func (u *Uploader) uploadWithRetry(ctx context.Context, path string) error {
	var err error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		if err = u.upload(ctx, path); err == nil {
			if rmErr := os.Remove(path); rmErr != nil {
				u.log.Warn("uploaded but could not remove local copy", "path", path, "err", rmErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		u.log.Warn("upload failed", "path", path, "attempt", attempt, "err", err)
		if attempt < uploadAttempts && !chat.Sleep(ctx, u.retryDelay) {
			return err
		}
	}
	return err
}

func (u *Uploader) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	key := filepath.Base(path)
	if u.cfg.Prefix != "" {
		key = u.cfg.Prefix + "/" + key
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	u.log.Info("uploaded transcript", "key", key)
	return nil
}
