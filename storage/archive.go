package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/clipzaar/models"
	"github.com/pkg/errors"
)

type ArchiveConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores finished results as JSON objects in an S3-compatible bucket.
type Archive struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchive(client, cfg.Bucket), nil
}

func newArchive(client objectPutter, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket, now: time.Now}
}

type archivedResult struct {
	VideoID   string                  `json:"video_id"`
	URL       string                  `json:"url"`
	Title     string                  `json:"video_title"`
	Duration  string                  `json:"duration"`
	Content   models.GeneratedContent `json:"content"`
	Degraded  []string                `json:"degraded,omitempty"`
	CacheHit  bool                    `json:"cache_hit"`
	Timestamp time.Time               `json:"timestamp"`
}

// Save writes the result under results/<video id>/<unix nanos>.json and
// returns the object key. The contact email is not archived.
func (a *Archive) Save(ctx context.Context, result *models.Result) (string, error) {
	now := a.now().UTC()
	jsonData, err := json.Marshal(archivedResult{
		VideoID:   result.VideoID,
		URL:       result.URL,
		Title:     result.Title,
		Duration:  result.FormattedDuration(),
		Content:   result.Content,
		Degraded:  result.Degraded,
		CacheHit:  result.CacheHit,
		Timestamp: now,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal result")
	}

	key := fmt.Sprintf("results/%s/%d.json", result.VideoID, now.UnixNano())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to save %s", key)
	}
	return key, nil
}
