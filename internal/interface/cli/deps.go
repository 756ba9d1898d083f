package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/feedloom/backfill/internal/adapter/gateway/feed"
	"github.com/feedloom/backfill/internal/adapter/gateway/storage"
	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/repository"
	"github.com/feedloom/backfill/internal/infra/config"
	"github.com/feedloom/backfill/internal/infra/fs"
	infrarepo "github.com/feedloom/backfill/internal/infrastructure/repository"
)

// newJournalRepository wires the journal coordinator from settings
func newJournalRepository(s *config.Settings) repository.JournalRepository {
	return infrarepo.NewJournalRepositoryImpl(
		s.JournalDir, fs.Flock{}, s.LockTimeout(), s.LeaseTTL(), globalLogger)
}

// newArchiveGateway selects the archive backend from settings. A non-empty
// dirOverride forces the local backend on that directory.
func newArchiveGateway(ctx context.Context, s *config.Settings, dirOverride string) (output.ArchiveGateway, error) {
	if dirOverride != "" {
		return storage.NewLocalArchiveGateway(afero.NewOsFs(), dirOverride), nil
	}
	switch s.Storage {
	case "s3":
		return storage.NewS3ArchiveGateway(ctx, storage.S3Config{
			BucketName: s.S3.Bucket,
			Prefix:     s.S3.Prefix,
			Region:     s.S3.Region,
			Endpoint:   s.S3.Endpoint,
			AccessKey:  s.S3.AccessKey,
			SecretKey:  s.S3.SecretKey,
		})
	default:
		return storage.NewLocalArchiveGateway(afero.NewOsFs(), s.ArchiveDir), nil
	}
}

// newFeedGateway builds the upstream feed client from settings
func newFeedGateway(s *config.Settings) (output.FeedGateway, error) {
	if s.Feed.BaseURL == "" {
		return nil, fmt.Errorf("feed.base_url must be set in %s to fetch posts", config.SettingsFileName)
	}
	return feed.NewHTTPFeedGateway(feed.Config{
		BaseURL:    s.Feed.BaseURL,
		RatePerMin: s.Feed.RatePerMin,
		PageSize:   s.Feed.PageSize,
	})
}
