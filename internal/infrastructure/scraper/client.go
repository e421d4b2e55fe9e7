package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/firmscout/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; the origin rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	maxRedirects = 5
	maxBodyBytes = 16 << 20
)

// ErrDocumentTooLarge is returned when the directory page exceeds the body limit
var ErrDocumentTooLarge = errors.New("directory document exceeds size limit")

// ClientConfig configures the directory client
type ClientConfig struct {
	URL               string
	UserAgent         string
	AcceptLanguage    string
	Timeout           time.Duration // per attempt
	MaxRetries        int           // total attempts
	BaseBackoff       time.Duration
	RequestsPerSecond float64 // <= 0 disables outbound limiting
}

// Client fetches the directory page with bounded retries and linear backoff
type Client struct {
	httpClient  *http.Client
	cfg         ClientConfig
	rateLimiter *rate.Limiter
	maxBody     int64
	wait        func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

// NewClient creates a new directory client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseBackoff < 0 {
		cfg.BaseBackoff = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(limit, cfg.MaxRetries),
		maxBody:     maxBodyBytes,
		wait:        sleepContext,
		logger:      zap.L().With(zap.String("component", "scraper")),
	}
}

// URL returns the directory URL this client fetches
func (c *Client) URL() string {
	return c.cfg.URL
}

// Fetch retrieves the directory document.
// Attempt i (1-indexed) is followed by a wait of BaseBackoff*i, except after the last one.
// On exhaustion it returns a *domain.FetchError carrying the last cause.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &domain.FetchError{URL: c.cfg.URL, Attempts: attempt - 1, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}

		body, err := c.fetchOnce(ctx)
		if err == nil {
			c.logger.Debug("directory fetched",
				zap.String("url", c.cfg.URL),
				zap.Int("attempt", attempt),
				zap.Int("bytes", len(body)),
			)
			return body, nil
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.Warn("directory fetch failed, retrying",
			zap.String("url", c.cfg.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if err := c.wait(ctx, linearBackoff(c.cfg.BaseBackoff, attempt)); err != nil {
			return nil, &domain.FetchError{URL: c.cfg.URL, Attempts: attempt, Err: err}
		}
	}

	c.logger.Error("all directory fetch attempts failed",
		zap.String("url", c.cfg.URL),
		zap.Int("attempts", c.cfg.MaxRetries),
		zap.Error(lastErr),
	)
	return nil, &domain.FetchError{URL: c.cfg.URL, Attempts: c.cfg.MaxRetries, Err: lastErr}
}

// fetchOnce performs a single GET bounded by the per-attempt timeout
func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: %d", domain.ErrOriginStatus, resp.StatusCode)
	}

	// One byte past the limit tells a full document from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrDocumentTooLarge, c.maxBody)
	}
	return body, nil
}

// linearBackoff returns the wait after the given 1-indexed attempt
func linearBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
