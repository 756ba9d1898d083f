package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

func putInput(bucket, key, content string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(content),
	}
}

func TestS3ArchiveGateway_AppendAndLoad(t *testing.T) {
	client := NewMockS3Client()
	g := NewS3ArchiveGatewayWithClient(client, "feed-archive", "prod")
	bob := testSubject(t, "Bob")
	ctx := context.Background()

	require.NoError(t, g.AppendPosts(ctx, bob, []post.Post{testPost("Bob", 500)}))
	require.NoError(t, g.AppendPosts(ctx, bob, []post.Post{testPost("Bob", 490)}))

	posts, err := g.LoadPosts(ctx, bob)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(500), posts[0].Body.ID)
	assert.Equal(t, int64(490), posts[1].Body.ID)

	content, exists := client.ObjectForTest("prod/bob.posts")
	require.True(t, exists, "archive key must be prefixed and folded")
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
}

func TestS3ArchiveGateway_NoPrefix(t *testing.T) {
	client := NewMockS3Client()
	g := NewS3ArchiveGatewayWithClient(client, "feed-archive", "")
	bob := testSubject(t, "bob")

	require.NoError(t, g.AppendPosts(context.Background(), bob, []post.Post{testPost("bob", 1)}))

	_, exists := client.ObjectForTest("bob.posts")
	assert.True(t, exists)
}

func TestS3ArchiveGateway_MissingArchive(t *testing.T) {
	g := NewS3ArchiveGatewayWithClient(NewMockS3Client(), "feed-archive", "prod")
	bob := testSubject(t, "bob")
	ctx := context.Background()

	_, err := g.LoadPosts(ctx, bob)
	assert.True(t, errors.Is(err, output.ErrArchiveNotFound))

	_, err = g.Oldest(ctx, bob)
	assert.True(t, errors.Is(err, output.ErrArchiveNotFound))
}

func TestS3ArchiveGateway_Oldest(t *testing.T) {
	g := NewS3ArchiveGatewayWithClient(NewMockS3Client(), "feed-archive", "prod")
	bob := testSubject(t, "bob")
	ctx := context.Background()

	require.NoError(t, g.AppendPosts(ctx, bob, []post.Post{
		testPost("bob", 500), testPost("bob", 123), testPost("bob", 480),
	}))

	oldest, err := g.Oldest(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(123), oldest.Body.ID)
}

func TestS3ArchiveGateway_ListSubjects(t *testing.T) {
	client := NewMockS3Client()
	g := NewS3ArchiveGatewayWithClient(client, "feed-archive", "prod")
	ctx := context.Background()

	require.NoError(t, g.AppendPosts(ctx, testSubject(t, "Zoe"), []post.Post{testPost("Zoe", 9)}))
	require.NoError(t, g.AppendPosts(ctx, testSubject(t, "bob"), []post.Post{testPost("bob", 1)}))

	// Keys outside the archive layout are ignored.
	seed := NewS3ArchiveGatewayWithClient(client, "feed-archive", "prod/nested")
	require.NoError(t, seed.AppendPosts(ctx, testSubject(t, "carol"), []post.Post{testPost("carol", 2)}))
	_, err := client.PutObject(ctx, putInput("feed-archive", "prod/readme.txt", "x"))
	require.NoError(t, err)

	subjects, err := g.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "zoe"}, subjects)
}
