package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/firmscout/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// MockCache is a single-slot cache with a controllable clock
type MockCache struct {
	mu         sync.Mutex
	companies  []domain.Company
	capturedAt time.Time
	populated  bool
	ttl        time.Duration
	now        time.Time
	stores     int
}

func NewMockCache(ttl time.Duration) *MockCache {
	return &MockCache{ttl: ttl, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *MockCache) Get() ([]domain.Company, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.populated {
		return nil, false
	}
	return m.companies, m.now.Sub(m.capturedAt) < m.ttl
}

func (m *MockCache) Store(companies []domain.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = append([]domain.Company{}, companies...)
	m.capturedAt = m.now
	m.populated = true
	m.stores++
}

func (m *MockCache) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = nil
	m.populated = false
}

func (m *MockCache) Status() domain.CacheStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.populated {
		return domain.CacheStatus{}
	}
	age := m.now.Sub(m.capturedAt)
	return domain.CacheStatus{Populated: true, Fresh: age < m.ttl, CapturedAt: m.capturedAt, Age: age, Records: len(m.companies)}
}

func (m *MockCache) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockCache) StoreCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores
}

// MockFetcher returns a fixed document or error and counts calls.
// When gate is set, Fetch blocks until it is closed.
type MockFetcher struct {
	document []byte
	err      error
	gate     chan struct{}
	started  chan struct{}
	calls    atomic.Int32
}

func (m *MockFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if m.calls.Add(1) == 1 && m.started != nil {
		close(m.started)
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.document, nil
}

// MockExtractor returns fixed companies and counts calls
type MockExtractor struct {
	companies []domain.Company
	err       error
	calls     atomic.Int32
}

func (m *MockExtractor) Extract(document []byte) ([]domain.Company, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.companies, nil
}

// fetcherFunc adapts a function to domain.DirectoryFetcher
type fetcherFunc func(ctx context.Context) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

func directoryCompanies() []domain.Company {
	return []domain.Company{
		domain.NewCompany("Acme Robotics", "AI and automation", "https://example.com/acme", ""),
		domain.NewCompany("Beta Labs", "cloud tools", "https://example.com/beta", ""),
		domain.NewCompany("Gamma Energy", "solar storage", "https://example.com/gamma", ""),
	}
}

func newTestDirectoryService(config DirectoryServiceConfig) (*DirectoryService, *MockCache, *MockFetcher, *MockExtractor) {
	cache := NewMockCache(5 * time.Minute)
	fetcher := &MockFetcher{document: []byte("<html></html>")}
	extractor := &MockExtractor{companies: directoryCompanies()}
	return NewDirectoryService(cache, fetcher, extractor, config), cache, fetcher, extractor
}

func TestSearch_InvalidQueryDoesNotFetch(t *testing.T) {
	svc, _, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})

	for _, raw := range []string{"", "   ", ",,"} {
		result, err := svc.Search(context.Background(), raw)
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("Search(%q) error = %v, want ErrInvalidQuery", raw, err)
		}
		if result != nil {
			t.Errorf("Search(%q) result = %+v, want nil", raw, result)
		}
	}
	if fetcher.calls.Load() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.calls.Load())
	}
}

func TestSearch_ColdCacheFetchesAndStores(t *testing.T) {
	svc, cache, fetcher, extractor := newTestDirectoryService(DirectoryServiceConfig{})

	result, err := svc.Search(context.Background(), "ai, cloud")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if result.ServedFromCache {
		t.Error("ServedFromCache = true, want false on a cold cache")
	}
	if result.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", result.TotalRecords)
	}
	if result.MatchedRecords != 2 || len(result.Records) != 2 {
		t.Errorf("MatchedRecords = %d (%d records), want 2", result.MatchedRecords, len(result.Records))
	}
	if fetcher.calls.Load() != 1 || extractor.calls.Load() != 1 {
		t.Errorf("fetch/extract calls = %d/%d, want 1/1", fetcher.calls.Load(), extractor.calls.Load())
	}
	if cache.StoreCount() != 1 {
		t.Errorf("stores = %d, want 1", cache.StoreCount())
	}
	if result.Elapsed < 0 {
		t.Errorf("Elapsed = %v, want >= 0", result.Elapsed)
	}
}

func TestSearch_SecondCallWithinTTLServedFromCache(t *testing.T) {
	svc, _, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})
	ctx := context.Background()

	first, err := svc.Search(ctx, "ai, cloud")
	if err != nil {
		t.Fatalf("first Search() error = %v", err)
	}
	second, err := svc.Search(ctx, "ai, cloud")
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}

	if !second.ServedFromCache {
		t.Error("second ServedFromCache = false, want true")
	}
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Errorf("records differ between calls:\n%+v\n%+v", first.Records, second.Records)
	}
	if fetcher.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls.Load())
	}
}

func TestSearch_RefreshesAfterTTL(t *testing.T) {
	svc, cache, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})
	ctx := context.Background()

	if _, err := svc.Search(ctx, "ai"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	cache.Advance(4*time.Minute + 59*time.Second)
	result, err := svc.Search(ctx, "ai")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.ServedFromCache {
		t.Error("at 4m59s ServedFromCache = false, want true")
	}

	cache.Advance(2 * time.Second)
	result, err = svc.Search(ctx, "ai")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.ServedFromCache {
		t.Error("at 5m01s ServedFromCache = true, want false")
	}
	if fetcher.calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls.Load())
	}
}

func TestSearch_FetchErrorPropagates(t *testing.T) {
	svc, cache, fetcher, extractor := newTestDirectoryService(DirectoryServiceConfig{})
	cause := errors.New("connection refused")
	fetcher.err = &domain.FetchError{URL: "https://example.com", Attempts: 3, Err: cause}

	result, err := svc.Search(context.Background(), "ai")

	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *domain.FetchError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not carry the cause: %v", err)
	}
	if extractor.calls.Load() != 0 {
		t.Errorf("extract calls = %d, want 0", extractor.calls.Load())
	}
	if cache.StoreCount() != 0 {
		t.Errorf("stores = %d, want 0", cache.StoreCount())
	}
}

func TestSearch_StaleCacheOnFetchError(t *testing.T) {
	t.Run("error is returned when stale serving is disabled", func(t *testing.T) {
		svc, cache, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})
		cache.Store(directoryCompanies())
		cache.Advance(10 * time.Minute)
		fetcher.err = &domain.FetchError{Attempts: 3, Err: context.DeadlineExceeded}

		_, err := svc.Search(context.Background(), "ai")
		if !errors.Is(err, domain.ErrFetchFailed) {
			t.Errorf("error = %v, want ErrFetchFailed", err)
		}
	})

	t.Run("stale data is served when enabled", func(t *testing.T) {
		svc, cache, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{ServeStaleOnError: true})
		cache.Store(directoryCompanies())
		cache.Advance(10 * time.Minute)
		fetcher.err = &domain.FetchError{Attempts: 3, Err: context.DeadlineExceeded}

		result, err := svc.Search(context.Background(), "ai")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if !result.ServedFromCache || !result.Stale {
			t.Errorf("ServedFromCache/Stale = %v/%v, want true/true", result.ServedFromCache, result.Stale)
		}
		if result.TotalRecords != 3 || result.MatchedRecords != 1 {
			t.Errorf("Total/Matched = %d/%d, want 3/1", result.TotalRecords, result.MatchedRecords)
		}
	})

	t.Run("fallback uses the snapshot read before the refresh", func(t *testing.T) {
		cache := NewMockCache(5 * time.Minute)
		// Another request fills the cache while this refresh is failing.
		fetcher := fetcherFunc(func(ctx context.Context) ([]byte, error) {
			cache.Store(directoryCompanies())
			return nil, &domain.FetchError{Attempts: 3, Err: errors.New("boom")}
		})
		svc := NewDirectoryService(cache, fetcher, &MockExtractor{}, DirectoryServiceConfig{ServeStaleOnError: true})

		result, err := svc.Search(context.Background(), "ai")
		if !errors.Is(err, domain.ErrFetchFailed) {
			t.Errorf("error = %v, want ErrFetchFailed", err)
		}
		if result != nil {
			t.Errorf("result = %+v, want nil", result)
		}
	})

	t.Run("empty cache still fails when enabled", func(t *testing.T) {
		svc, _, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{ServeStaleOnError: true})
		fetcher.err = &domain.FetchError{Attempts: 3, Err: errors.New("boom")}

		_, err := svc.Search(context.Background(), "ai")
		if !errors.Is(err, domain.ErrFetchFailed) {
			t.Errorf("error = %v, want ErrFetchFailed", err)
		}
	})
}

func TestSearch_EmptyExtractionIsSuccess(t *testing.T) {
	svc, cache, _, extractor := newTestDirectoryService(DirectoryServiceConfig{})
	extractor.companies = []domain.Company{}

	result, err := svc.Search(context.Background(), "ai")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.TotalRecords != 0 || result.MatchedRecords != 0 || len(result.Records) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
	if cache.StoreCount() != 1 {
		t.Errorf("stores = %d, want 1", cache.StoreCount())
	}
}

func TestSearch_ExtractError(t *testing.T) {
	svc, cache, _, extractor := newTestDirectoryService(DirectoryServiceConfig{})
	parseErr := errors.New("reader exploded")
	extractor.err = parseErr

	_, err := svc.Search(context.Background(), "ai")
	if !errors.Is(err, parseErr) {
		t.Errorf("error = %v, want wrapped extract error", err)
	}
	if cache.StoreCount() != 0 {
		t.Errorf("stores = %d, want 0", cache.StoreCount())
	}
}

func TestSearch_ConcurrentRefreshesCoalesce(t *testing.T) {
	svc, _, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})
	fetcher.gate = make(chan struct{})
	fetcher.started = make(chan struct{})

	const callers = 16
	results := make([]*domain.SearchResult, callers)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			result, err := svc.Search(ctx, "ai, cloud")
			results[i] = result
			return err
		})
	}

	<-fetcher.started
	// Give the other callers time to join the in-flight refresh.
	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)

	if err := g.Wait(); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i, r := range results {
		if r == nil || r.MatchedRecords != 2 {
			t.Errorf("caller %d result = %+v, want 2 matches", i, r)
		}
	}
}

func TestSearch_CallerCancellationDoesNotAbortSharedRefresh(t *testing.T) {
	svc, cache, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})
	fetcher.gate = make(chan struct{})
	fetcher.started = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Search(ctx, "ai")
		errCh <- err
	}()

	<-fetcher.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	close(fetcher.gate)

	deadline := time.Now().Add(2 * time.Second)
	for cache.StoreCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cache.StoreCount() != 1 {
		t.Fatalf("stores = %d, want the detached refresh to finish", cache.StoreCount())
	}

	result, err := svc.Search(context.Background(), "ai")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.ServedFromCache {
		t.Error("ServedFromCache = false, want true after the detached refresh")
	}
}

func TestDirectoryService_CacheStatusAndClear(t *testing.T) {
	svc, cache, fetcher, _ := newTestDirectoryService(DirectoryServiceConfig{})

	if svc.CacheStatus().Populated {
		t.Error("Populated = true before any search")
	}
	if fetcher.calls.Load() != 0 {
		t.Error("CacheStatus must not fetch")
	}

	if _, err := svc.Search(context.Background(), "ai"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	cache.Advance(30 * time.Second)

	status := svc.CacheStatus()
	if !status.Populated || !status.Fresh || status.Records != 3 || status.Age != 30*time.Second {
		t.Errorf("status = %+v", status)
	}

	svc.ClearCache()
	if svc.CacheStatus().Populated {
		t.Error("Populated = true after ClearCache")
	}

	result, err := svc.Search(context.Background(), "ai")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.ServedFromCache || fetcher.calls.Load() != 2 {
		t.Errorf("expected refetch after clear, calls = %d", fetcher.calls.Load())
	}
}
