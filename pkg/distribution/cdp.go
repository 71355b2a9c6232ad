package distribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eahrold/jamfdist/internal/logger"
)

// S3Client is the slice of the S3 API the cloud backend uses. *s3.Client
// satisfies it; tests substitute a fake.
type S3Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// CDPConfig holds the connection settings for a cloud distribution point.
// Client construction (credentials, region, custom endpoints) happens at
// the configuration layer; this backend only needs a ready client.
type CDPConfig struct {
	// Client is the configured S3 client.
	Client S3Client

	// Bucket is the object-storage bucket artifacts are placed in.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "jamf/".
	KeyPrefix string
}

// CDPRepository is a cloud distribution point backed by object storage.
// Artifacts live under Packages/ and Scripts/ key prefixes so the layout
// matches the file-share backends. There are no mount semantics.
type CDPRepository struct {
	client    S3Client
	bucket    string
	keyPrefix string
}

// NewCDP builds a cloud distribution point. No I/O happens at
// construction; the bucket must already exist.
func NewCDP(cfg CDPConfig) (*CDPRepository, error) {
	var missing []string
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if cfg.Client == nil {
		missing = append(missing, "client")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Kind: "CDP", Missing: missing}
	}

	return &CDPRepository{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// CopyPackage uploads a package or disk image under the Packages prefix.
// Directory-bundle packages cannot be represented as a single object and
// are rejected; flatten them before distribution. targetID is ignored.
func (r *CDPRepository) CopyPackage(ctx context.Context, path, _ string) error {
	return r.put(ctx, path, PackagesDir)
}

// CopyScript uploads a script under the Scripts prefix.
func (r *CDPRepository) CopyScript(ctx context.Context, path, _ string) error {
	return r.put(ctx, path, ScriptsDir)
}

func (r *CDPRepository) put(ctx context.Context, artifact, subdir string) error {
	fi, err := os.Stat(artifact)
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", artifact, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s: %w", artifact, ErrBundleNotSupported)
	}

	f, err := os.Open(artifact)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := r.objectKey(subdir, filepath.Base(artifact))
	logger.Info("uploading %s to s3://%s/%s", filepath.Base(artifact), r.bucket, key)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", r.bucket, key, err)
	}
	return nil
}

// Exists reports whether an object with the given base filename is
// present, dispatched by extension into the Packages or Scripts prefix.
func (r *CDPRepository) Exists(ctx context.Context, name string) (bool, error) {
	key := r.objectKey(artifactDir(name), name)

	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", r.bucket, key, err)
	}
	return true, nil
}

func (r *CDPRepository) objectKey(subdir, name string) string {
	return r.keyPrefix + subdir + "/" + name
}
