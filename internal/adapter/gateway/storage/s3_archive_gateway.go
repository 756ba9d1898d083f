package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// S3ArchiveGateway implements ArchiveGateway on an S3 bucket.
// Key structure: s3://<bucket>/<prefix>/<folded-subject>.posts
//
// S3 objects cannot be appended to, so AppendPosts rewrites the whole
// object. That is safe because the journal lease serializes archive writers
// per subject.
type S3ArchiveGateway struct {
	client S3API // Use interface for testability
	bucket string
	prefix string // Optional prefix for all keys (e.g., "backfill/prod")
}

var _ output.ArchiveGateway = (*S3ArchiveGateway)(nil)

// S3Config holds S3 archive gateway configuration
type S3Config struct {
	BucketName string // S3 bucket name
	Prefix     string // Optional key prefix
	Region     string // AWS region (optional, uses default if empty)
	Endpoint   string // Custom endpoint for S3-compatible stores (optional)
	AccessKey  string // Static credentials (optional, default chain if empty)
	SecretKey  string
}

// NewS3ArchiveGateway creates a new S3-based archive gateway
func NewS3ArchiveGateway(ctx context.Context, cfg S3Config) (*S3ArchiveGateway, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ArchiveGateway{
		client: client,
		bucket: cfg.BucketName,
		prefix: cfg.Prefix,
	}, nil
}

// NewS3ArchiveGatewayWithClient creates an S3 archive gateway with a custom
// S3 client. This is primarily used for testing with mock S3 clients.
func NewS3ArchiveGatewayWithClient(client S3API, bucket, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// ListSubjects lists the folded names of every subject with an archive
// object under the configured prefix, sorted.
func (g *S3ArchiveGateway) ListSubjects(ctx context.Context) ([]string, error) {
	keyPrefix := g.buildKey("")

	var subjects []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(keyPrefix),
	}
	for {
		out, err := g.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list S3 archives: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, keyPrefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ArchiveExt) {
				continue
			}
			subjects = append(subjects, strings.TrimSuffix(name, ArchiveExt))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	sort.Strings(subjects)
	return subjects, nil
}

// LoadPosts reads a subject's whole archive object.
func (g *S3ArchiveGateway) LoadPosts(ctx context.Context, subject journal.Subject) ([]post.Post, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.key(subject)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
		}
		return nil, fmt.Errorf("download archive %s: %w", subject.Key(), err)
	}
	defer out.Body.Close()

	var posts []post.Post
	scanner := bufio.NewScanner(out.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := post.ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("archive %s line %d: %w", subject.Key(), lineNum, err)
		}
		posts = append(posts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s: %w", subject.Key(), err)
	}
	return posts, nil
}

// AppendPosts appends a batch to the subject's archive by rewriting the
// object with the records attached.
func (g *S3ArchiveGateway) AppendPosts(ctx context.Context, subject journal.Subject, posts []post.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var b strings.Builder
	existing, err := g.LoadPosts(ctx, subject)
	if err != nil && !errors.Is(err, output.ErrArchiveNotFound) {
		return err
	}
	for _, p := range existing {
		b.WriteString(p.Record())
		b.WriteByte('\n')
	}
	for _, p := range posts {
		b.WriteString(p.Record())
		b.WriteByte('\n')
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(g.key(subject)),
		Body:        strings.NewReader(b.String()),
		ContentType: aws.String("text/tab-separated-values"),
	})
	if err != nil {
		return fmt.Errorf("upload archive %s: %w", subject.Key(), err)
	}
	return nil
}

// Oldest returns the archived post with the smallest identifier.
func (g *S3ArchiveGateway) Oldest(ctx context.Context, subject journal.Subject) (post.Post, error) {
	posts, err := g.LoadPosts(ctx, subject)
	if err != nil {
		return post.Post{}, err
	}
	oldest, ok := post.Oldest(posts)
	if !ok {
		return post.Post{}, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
	}
	return oldest, nil
}

func (g *S3ArchiveGateway) key(subject journal.Subject) string {
	return g.buildKey(subject.Key() + ArchiveExt)
}

// buildKey builds an S3 key under the configured prefix.
func (g *S3ArchiveGateway) buildKey(name string) string {
	if g.prefix == "" {
		return name
	}
	return strings.TrimSuffix(g.prefix, "/") + "/" + name
}
