package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/clipzaar/models"
	"github.com/pkg/errors"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveSave(t *testing.T) {
	putter := &fakePutter{}
	archive := newArchive(putter, "results-bucket")
	archive.now = func() time.Time { return time.Unix(1700000000, 0) }

	key, err := archive.Save(context.Background(), &models.Result{
		VideoID:         "abc",
		URL:             "https://youtu.be/abc",
		Title:           "Talk",
		DurationSeconds: 75,
		Content:         models.GeneratedContent{SocialThread: "Tweet 1", ClipSuggestions: "Clip 1"},
		ContactEmail:    "private@example.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expectedKey := "results/abc/1700000000000000000.json"
	if key != expectedKey {
		t.Errorf("expected key %s, got %s", expectedKey, key)
	}
	if aws.ToString(putter.input.Bucket) != "results-bucket" {
		t.Errorf("expected bucket results-bucket, got %s", aws.ToString(putter.input.Bucket))
	}

	var stored map[string]interface{}
	if err := json.Unmarshal(putter.body, &stored); err != nil {
		t.Fatalf("expected JSON body, got %v", err)
	}
	if stored["duration"] != "1:15" {
		t.Errorf("expected duration 1:15, got %v", stored["duration"])
	}
	if _, ok := stored["email"]; ok {
		t.Error("expected contact email not to be archived")
	}
}

func TestArchiveSaveError(t *testing.T) {
	archive := newArchive(&fakePutter{err: errors.New("access denied")}, "b")
	if _, err := archive.Save(context.Background(), &models.Result{VideoID: "abc"}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestNewArchiveRequiresBucket(t *testing.T) {
	if _, err := NewArchive(context.Background(), ArchiveConfig{}); err == nil {
		t.Error("expected error, got nil")
	}
}
