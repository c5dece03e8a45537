package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds configuration for S3-compatible snapshot storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
}

// SnapshotArchiver keeps the raw HTML of every fetched search page in
// S3-compatible storage, keyed by session and station, so a parse regression
// can be replayed against the exact page that triggered it.
type SnapshotArchiver struct {
	client *s3.Client
	bucket string
}

func NewSnapshotArchiver(ctx context.Context, cfg S3Config) (*SnapshotArchiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
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

	return &SnapshotArchiver{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ArchivePage stores one fetched page body under
// snapshots/<date>/<query>/<label>-<id>.html.
func (a *SnapshotArchiver) ArchivePage(ctx context.Context, queryID, label string, body []byte) (string, error) {
	key := fmt.Sprintf("snapshots/%s/%s/%s-%s.html",
		time.Now().UTC().Format("2006-01-02"), queryID, label, uuid.NewString()[:8])

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}
