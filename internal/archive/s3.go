package archive

import (
	"context"
	"errors"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"ev-go/internal/config"
	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

const s3Timeout = 5 * time.Minute

// s3API is the subset of the S3 client the archive reads through.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// uploader is satisfied by *manager.Uploader.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive stores packs as objects under <prefix>/packs/<manifest-sha256>.zip.
type S3Archive struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader uploader
}

// NewS3ArchiveFromConfig loads AWS settings (region, credentials, endpoint)
// and returns an archive backed by a real S3 client.
func NewS3ArchiveFromConfig(cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, vaulterr.New(vaulterr.Validation, "s3 archive %q requires s3_bucket to be set", cfg.Name)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Validation, err, "loading aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archive(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client, manager.NewUploader(client)), nil
}

func newS3Archive(name, bucket, prefix string, client s3API, up uploader) *S3Archive {
	return &S3Archive{name: name, bucket: bucket, prefix: prefix, client: client, uploader: up}
}

func (a *S3Archive) Name() string { return a.name }

func (a *S3Archive) key(manifestSHA256 string) string {
	return path.Join(a.prefix, "packs", manifestSHA256+".zip")
}

// PutPack uploads a pack unless an object with the same digest already exists.
func (a *S3Archive) PutPack(manifestSHA256 string, r io.Reader, size int64) error {
	exists, err := a.HasPack(manifestSHA256)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	cr := &countingReader{r: r}
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(manifestSHA256)),
		Body:        cr,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "uploading pack to "+a.name)
	}
	if cr.n != size {
		return vaulterr.New(vaulterr.IO, "size mismatch: expected %d bytes, got %d", size, cr.n)
	}
	return nil
}

func (a *S3Archive) GetPack(manifestSHA256 string, w io.Writer) error {
	if err := checkKey(manifestSHA256); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(manifestSHA256)),
	})
	if err != nil {
		if isNotFound(err) {
			return vaulterr.New(vaulterr.NotFound, "pack %s not found in archive %s", manifestSHA256, a.name)
		}
		return vaulterr.Wrap(vaulterr.IO, err, "downloading pack from "+a.name)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "reading pack body")
	}
	return nil
}

func (a *S3Archive) HasPack(manifestSHA256 string) (bool, error) {
	if err := checkKey(manifestSHA256); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(manifestSHA256)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, vaulterr.Wrap(vaulterr.IO, err, "checking pack in "+a.name)
	}
	return true, nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (a *S3Archive) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "s3 bucket "+a.bucket+" not accessible")
	}
	return nil
}

// isNotFound matches both the typed errors and the bare 404 that HeadObject
// returns without a body.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ ev.Archive = (*S3Archive)(nil)
