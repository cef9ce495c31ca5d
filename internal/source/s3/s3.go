// Package s3 implements source.Lister over an S3-compatible bucket.
// One ListObjectsV2 call with a "/" delimiter maps to one directory
// listing: common prefixes become directories, objects become files
// with presigned download URLs. The bucket is fixed at construction,
// so the repository coordinate fields are ignored. Access is strictly
// read-only.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/source"
)

// presignTTL is how long presigned download URLs stay valid. Catalogs
// are rebuilt per crawl, so URLs only need to outlive one session.
const presignTTL = 1 * time.Hour

// Config holds the S3 lister settings. Endpoint may omit the scheme,
// in which case UseSSL decides between https and http (MinIO-style
// deployments commonly configure it that way).
type Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Region    string `json:"region" yaml:"region"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

// Lister lists bucket "directories" via ListObjectsV2.
type Lister struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewLister creates an S3 lister and verifies the bucket is reachable.
// Retries are disabled: a failed listing aborts the crawl immediately,
// like every other listing backend.
func NewLister(ctx context.Context, cfg Config) (*Lister, error) {
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	l := &Lister{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		logging.Error("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}

	return l, nil
}

// ListDirectory lists one bucket prefix. owner, repo, and ref are
// meaningless for buckets and ignored. Listing stops at one page;
// truncated prefixes are not followed up.
func (l *Lister) ListDirectory(ctx context.Context, owner, repo, dir, ref string) ([]source.Entry, error) {
	prefix := dir
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	start := time.Now()
	out, err := l.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		lerr := listingErrorFrom(err)
		metrics.RecordListing("s3", lerr.StatusCode, time.Since(start))
		return nil, lerr
	}
	metrics.RecordListing("s3", http.StatusOK, time.Since(start))

	entries := make([]source.Entry, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, p := range out.CommonPrefixes {
		if p.Prefix == nil {
			continue
		}
		entries = append(entries, dirEntry(*p.Prefix))
	}
	for _, obj := range out.Contents {
		if obj.Key == nil || *obj.Key == prefix {
			// Skip the directory marker object, if any.
			continue
		}
		e := fileEntry(*obj.Key, aws.ToInt64(obj.Size), aws.ToString(obj.ETag))
		e.DownloadURL = l.presignURL(ctx, *obj.Key)
		entries = append(entries, e)
	}
	return entries, nil
}

// presignURL returns a presigned GET URL for the key, or "" if
// presigning fails (the material is still cataloged, just without a
// preview link).
func (l *Lister) presignURL(ctx context.Context, key string) string {
	req, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		logging.Warn("presign failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return req.URL
}

// dirEntry maps a common prefix like "materials/Math/" to a directory
// entry named "Math" at path "materials/Math".
func dirEntry(prefix string) source.Entry {
	p := strings.TrimSuffix(prefix, "/")
	return source.Entry{
		Name: baseName(p),
		Path: p,
		Type: source.TypeDir,
	}
}

// fileEntry maps an object key to a file entry. The ETag, quotes
// stripped, stands in for the content address.
func fileEntry(key string, size int64, etag string) source.Entry {
	return source.Entry{
		Name: baseName(key),
		Path: key,
		Type: source.TypeFile,
		Size: size,
		SHA:  strings.Trim(etag, `"`),
	}
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// listingErrorFrom converts an SDK error to a ListingError, keeping
// the upstream HTTP status when one was received.
func listingErrorFrom(err error) *source.ListingError {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		return &source.ListingError{
			StatusCode: code,
			Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
			Body:       re.Error(),
		}
	}
	return source.NewTransportError(err)
}
