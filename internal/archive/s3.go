package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fwatch-go/internal/config"
	"fwatch-go/internal/fwatch"
)

// versionMetadataKey is the S3 object metadata key carrying the snapshot
// version. S3 lowercases metadata keys, so it is lowercase from the start.
const versionMetadataKey = "snapshot-version"

// s3Client is the subset of the S3 API the archive calls directly.
type s3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// s3Uploader abstracts the multipart upload manager.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive stores snapshots in an S3 bucket. Snapshot versions are kept
// as object metadata rather than sidecar objects.
type S3Archive struct {
	bucket   string
	prefix   string
	client   s3Client
	uploader s3Uploader
}

// NewS3Archive creates an archive backed by the configured S3 bucket.
// Credentials come from the default AWS chain unless static keys are
// configured. A custom endpoint switches the client to path-style
// addressing for S3-compatible stores.
func NewS3Archive(cfg config.ArchiveConfig) (*S3Archive, error) {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// snapshotKey returns the object key for a host's snapshot.
func (a *S3Archive) snapshotKey(hostID string) string {
	key := "snapshots/" + hostID + ".db"
	if a.prefix == "" {
		return key
	}
	return strings.TrimSuffix(a.prefix, "/") + "/" + key
}

// PutSnapshot uploads the snapshot for a host, replacing any previous one.
func (a *S3Archive) PutSnapshot(hostID string, r io.Reader, size int64, version string) error {
	ctx := context.Background()

	body := &countingReader{r: r}
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.snapshotKey(hostID)),
		Body:   body,
		Metadata: map[string]string{
			versionMetadataKey: version,
		},
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	if body.n != size {
		return fmt.Errorf("snapshot size mismatch: got %d bytes, want %d", body.n, size)
	}
	return nil
}

// GetSnapshot downloads the archived snapshot for a host and writes it to w.
func (a *S3Archive) GetSnapshot(hostID string, w io.Writer) error {
	ctx := context.Background()

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.snapshotKey(hostID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("no archived snapshot for host: %s", hostID)
		}
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading snapshot body: %w", err)
	}
	return nil
}

// SnapshotVersion reads the version marker from the snapshot object's
// metadata. Returns "" if no snapshot exists or it carries no version.
func (a *S3Archive) SnapshotVersion(hostID string) (string, error) {
	ctx := context.Background()

	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.snapshotKey(hostID)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("checking snapshot version: %w", err)
	}

	return out.Metadata[versionMetadataKey], nil
}

// ValidateSetup verifies that the bucket is reachable with the configured
// credentials.
func (a *S3Archive) ValidateSetup() error {
	ctx := context.Background()

	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("archive bucket not accessible: %w", err)
	}
	return nil
}

// countingReader tracks how many bytes the uploader consumed so the upload
// size can be verified against the expected snapshot size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Archive implements the fwatch.Archive interface
var _ fwatch.Archive = (*S3Archive)(nil)
