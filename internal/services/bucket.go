package services

import (
  "context"
  "fmt"
  "net/http"
  "os"
  "time"

  "cloud.google.com/go/storage"
  "google.golang.org/api/option"

  "github.com/voxnote/voxnote-backend/internal/logger"
)

type BucketService interface {
  // SignedUploadURL presigns a PUT for the caller to push the recording
  // directly to the bucket.
  SignedUploadURL(key string, mimeType string, expiry time.Duration) (string, error)
  // GCSURI is the gs:// reference handed to the transcription adapter.
  GCSURI(key string) string
  DeleteFile(ctx context.Context, key string) error
  Close() error
}

type bucketService struct {
  log           *logger.Logger
  storageClient *storage.Client
  bucketName    string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
  serviceLog := log.With("service", "BucketService")
  bucket := os.Getenv("GCS_BUCKET_NAME")
  if bucket == "" {
    return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
  }
  saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
  if saPath == "" {
    serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, relying on ADC...")
  }
  ctx := context.Background()
  var stClient *storage.Client
  var err error
  if saPath != "" {
    stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
  } else {
    stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
  }
  if err != nil {
    return nil, fmt.Errorf("Failed to create storage client: %w", err)
  }
  return &bucketService{
    log:           serviceLog,
    storageClient: stClient,
    bucketName:    bucket,
  }, nil
}

func (bs *bucketService) SignedUploadURL(key string, mimeType string, expiry time.Duration) (string, error) {
  url, err := bs.storageClient.Bucket(bs.bucketName).SignedURL(key, &storage.SignedURLOptions{
    Scheme:      storage.SigningSchemeV4,
    Method:      http.MethodPut,
    ContentType: mimeType,
    Expires:     time.Now().Add(expiry),
  })
  if err != nil {
    return "", fmt.Errorf("Failed to presign upload URL: %w", err)
  }
  return url, nil
}

func (bs *bucketService) GCSURI(key string) string {
  return fmt.Sprintf("gs://%s/%s", bs.bucketName, key)
}

func (bs *bucketService) DeleteFile(ctx context.Context, key string) error {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()
  if err := bs.storageClient.Bucket(bs.bucketName).Object(key).Delete(ctx); err != nil {
    return fmt.Errorf("Failed to delete GCS object: %w", err)
  }
  return nil
}

func (bs *bucketService) Close() error {
  return bs.storageClient.Close()
}
