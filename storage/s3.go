package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for S3-compatible offsite backup storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for DO Spaces / R2
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
}

// Configured reports whether enough settings are present to upload
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// S3Backup ships local snapshots to S3-compatible storage
type S3Backup struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Backup(ctx context.Context, cfg S3Config) (*S3Backup, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "piads-backups"
	}

	return &S3Backup{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// UploadSnapshot writes one snapshot under a date-stamped key
func (b *S3Backup) UploadSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.json", b.prefix, snap.CreatedAt.UTC().Format("2006-01-02T15-04-05"))
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// latestKey is where the most recent snapshot always lives, so restores
// never have to list the bucket
func (b *S3Backup) latestKey() string {
	return b.prefix + "/latest.json"
}

// UploadLatest overwrites the rolling latest snapshot
func (b *S3Backup) UploadLatest(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.latestKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
