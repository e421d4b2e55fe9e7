package usecase

import (
	"context"
	"time"

	"github.com/firmscout/backend/internal/domain"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// refreshKey identifies the single in-flight directory refresh
const refreshKey = "directory"

// DirectoryServiceConfig holds configuration for the directory service
type DirectoryServiceConfig struct {
	// ServeStaleOnError answers from an expired cache when a refresh fails.
	ServeStaleOnError  bool
	EnableDebugLogging bool
}

// DirectoryService runs the fetch, extract, cache and match pipeline
type DirectoryService struct {
	cache             domain.CompanyCache
	fetcher           domain.DirectoryFetcher
	extractor         domain.CompanyExtractor
	preprocessor      *QueryPreprocessor
	matchingService   *MatchingService
	serveStaleOnError bool
	refreshes         singleflight.Group
	now               func() time.Time
	logger            *zap.Logger
}

// NewDirectoryService creates a new directory service with dependencies
func NewDirectoryService(
	cache domain.CompanyCache,
	fetcher domain.DirectoryFetcher,
	extractor domain.CompanyExtractor,
	config DirectoryServiceConfig,
) *DirectoryService {
	return &DirectoryService{
		cache:             cache,
		fetcher:           fetcher,
		extractor:         extractor,
		preprocessor:      NewQueryPreprocessor(config.EnableDebugLogging),
		matchingService:   NewMatchingService(MatchConfig{EnableDebugLogging: config.EnableDebugLogging}),
		serveStaleOnError: config.ServeStaleOnError,
		now:               time.Now,
		logger:            zap.L().With(zap.String("component", "directory")),
	}
}

// refreshOutcome is what a coalesced refresh hands to every waiting caller
type refreshOutcome struct {
	companies []domain.Company
	fromCache bool
}

// Search looks up companies matching the comma separated keywords.
// Flow: validate query -> cache -> (stale) fetch + extract + store -> rank
func (s *DirectoryService) Search(ctx context.Context, rawKeywords string) (*domain.SearchResult, error) {
	start := s.now()

	keywords, err := s.preprocessor.Keywords(rawKeywords)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{}

	companies, fresh := s.cache.Get()
	if fresh {
		result.ServedFromCache = true
	} else {
		outcome, err := s.refresh(ctx)
		switch {
		case err == nil:
			companies = outcome.companies
			result.ServedFromCache = outcome.fromCache
		case s.serveStaleOnError && companies != nil:
			s.logger.Warn("refresh failed, serving stale directory",
				zap.Int("companies", len(companies)),
				zap.Error(err),
			)
			result.ServedFromCache = true
			result.Stale = true
		default:
			return nil, err
		}
	}

	result.Records = s.matchingService.RankKeywords(companies, keywords)
	result.TotalRecords = len(companies)
	result.MatchedRecords = len(result.Records)
	result.Elapsed = s.now().Sub(start)

	s.logger.Info("search completed",
		zap.Strings("keywords", keywords),
		zap.Int("matched", result.MatchedRecords),
		zap.Int("total", result.TotalRecords),
		zap.Bool("cached", result.ServedFromCache),
		zap.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}

// refresh reloads the directory. Concurrent callers share one fetch.
// The shared fetch is detached from any single caller's cancellation and is
// bounded by the fetcher's own per-attempt timeout and retry budget.
func (s *DirectoryService) refresh(ctx context.Context) (*refreshOutcome, error) {
	ch := s.refreshes.DoChan(refreshKey, func() (interface{}, error) {
		// Another flight may have finished between our Get and this one starting.
		if companies, fresh := s.cache.Get(); fresh {
			return &refreshOutcome{companies: companies, fromCache: true}, nil
		}

		s.logger.Info("refreshing directory")

		document, err := s.fetcher.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		companies, err := s.extractor.Extract(document)
		if err != nil {
			return nil, eris.Wrap(err, "failed to extract directory")
		}

		s.cache.Store(companies)
		return &refreshOutcome{companies: companies}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*refreshOutcome), nil
	}
}

// CacheStatus reports the cache state without triggering a refresh
func (s *DirectoryService) CacheStatus() domain.CacheStatus {
	return s.cache.Status()
}

// ClearCache drops the cached directory so the next search refetches it
func (s *DirectoryService) ClearCache() {
	s.cache.Invalidate()
}
