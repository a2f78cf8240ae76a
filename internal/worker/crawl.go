// Package worker implements the crawl and extraction stage handlers.
package worker

import (
	"context"
	"crypto/md5" //nolint:gosec // key suffix, not integrity
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/colly"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (collyfetcher.Page, error)
}

// RobotsPolicy answers whether a URL may be crawled.
type RobotsPolicy interface {
	Allowed(ctx context.Context, pageURL string) bool
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Screenshotter captures a rendered page as an image.
type Screenshotter interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Crawl handles crawl stage jobs.
type Crawl struct {
	fetcher    Fetcher
	robots     RobotsPolicy
	limiter    Limiter
	screenshot Screenshotter
	blobs      piracy.BlobStore
	results    piracy.CrawlResultStore
	queue      piracy.Queue
	hasher     piracy.Hasher
	clock      piracy.Clock
	ids        piracy.IDGenerator
	logger     *zap.Logger
}

// CrawlDeps groups the collaborators of Crawl. Limiter and Screenshot are
// optional.
type CrawlDeps struct {
	Fetcher    Fetcher
	Robots     RobotsPolicy
	Limiter    Limiter
	Screenshot Screenshotter
	Blobs      piracy.BlobStore
	Results    piracy.CrawlResultStore
	Queue      piracy.Queue
	Hasher     piracy.Hasher
	Clock      piracy.Clock
	IDs        piracy.IDGenerator
}

// NewCrawl constructs a crawl handler.
func NewCrawl(deps CrawlDeps, logger *zap.Logger) *Crawl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawl{
		fetcher:    deps.Fetcher,
		robots:     deps.Robots,
		limiter:    deps.Limiter,
		screenshot: deps.Screenshot,
		blobs:      deps.Blobs,
		results:    deps.Results,
		queue:      deps.Queue,
		hasher:     deps.Hasher,
		clock:      deps.Clock,
		ids:        deps.IDs,
		logger:     logger.Named("crawl"),
	}
}

// Handle implements piracy.Handler. Per-URL failures are logged and do not
// fail the job.
func (c *Crawl) Handle(ctx context.Context, job piracy.Job) error {
	msg, err := piracy.Decode[piracy.CrawlMessage](job)
	if err != nil {
		return err
	}
	logger := c.logger.With(zap.String("job_id", msg.JobID), zap.String("queue_job", job.ID))
	start := time.Now()

	urls := c.resolve(logger, msg.Query)
	if len(urls) == 0 {
		metrics.ObserveCrawlJob("skipped", time.Since(start))
		return nil
	}

	failed := 0
	for _, pageURL := range urls {
		if err := c.handleURL(ctx, msg, pageURL, logger); err != nil {
			failed++
			logger.Warn("crawl url failed", zap.String("url", pageURL), zap.Error(err))
		}
	}

	status := "completed"
	if failed == len(urls) {
		status = "failed"
	}
	metrics.ObserveCrawlJob(status, time.Since(start))
	logger.Info("crawl job finished", zap.Int("urls", len(urls)), zap.Int("failed", failed))
	return nil
}

// resolve turns a query into URLs. Only http(s) queries are crawled directly.
func (c *Crawl) resolve(logger *zap.Logger, query string) []string {
	lower := strings.ToLower(query)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return []string{query}
	}
	logger.Debug(fmt.Sprintf("Query %q would trigger search API", query))
	return nil
}

func (c *Crawl) handleURL(ctx context.Context, msg piracy.CrawlMessage, pageURL string, logger *zap.Logger) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, pageURL); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	if !c.robots.Allowed(ctx, pageURL) {
		metrics.ObserveRobotsDenied()
		logger.Debug("robots.txt disallows url", zap.String("url", pageURL))
		return nil
	}

	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if page.StatusCode >= 400 {
		return fmt.Errorf("fetch: unexpected status %d", page.StatusCode)
	}

	now := c.clock.Now()
	key := EvidenceKey(msg.TenantID, msg.JobID, pageURL, now)
	sum, err := c.hasher.Hash(page.HTML)
	if err != nil {
		return fmt.Errorf("hash content: %w", err)
	}
	contentRef, err := c.blobs.PutObject(ctx, key, page.ContentType, page.HTML, map[string]string{"sha256": sum})
	if err != nil {
		return fmt.Errorf("store content: %w", err)
	}

	screenshotRef := c.captureScreenshot(ctx, key, pageURL, logger)

	id, err := c.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	result := piracy.CrawlResult{
		ID:            id,
		JobID:         msg.JobID,
		URL:           pageURL,
		Domain:        domainOf(pageURL),
		StatusCode:    page.StatusCode,
		ContentType:   page.ContentType,
		Headers:       page.Headers,
		RawContentRef: contentRef,
		ScreenshotRef: screenshotRef,
		CrawledAt:     now,
	}
	if err := c.results.CreateCrawlResult(ctx, result); err != nil {
		return fmt.Errorf("save crawl result: %w", err)
	}

	extract := piracy.ExtractionMessage{CrawlResultID: id, URL: pageURL, ContentRef: contentRef}
	if _, err := piracy.Publish(ctx, c.queue, piracy.TopicExtract, extract, piracy.ExtractDelivery); err != nil {
		return err
	}
	logger.Debug("page crawled", zap.String("url", pageURL), zap.String("crawl_result_id", id), zap.Int("status", page.StatusCode))
	return nil
}

func (c *Crawl) captureScreenshot(ctx context.Context, key, pageURL string, logger *zap.Logger) string {
	if c.screenshot == nil {
		return ""
	}
	shot, err := c.screenshot.Capture(ctx, pageURL)
	if err != nil {
		logger.Warn("screenshot failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	ref, err := c.blobs.PutObject(ctx, key+".jpg", "image/jpeg", shot, nil)
	if err != nil {
		logger.Warn("store screenshot failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	return ref
}

// EvidenceKey builds evidence/{tenant}/{job}/{unixMillis}-{md5(url)[:8]}.
func EvidenceKey(tenantID, jobID, pageURL string, at time.Time) string {
	sum := md5.Sum([]byte(pageURL)) //nolint:gosec // key suffix, not integrity
	return "evidence/" + tenantID + "/" + jobID + "/" +
		strconv.FormatInt(at.UnixMilli(), 10) + "-" + hex.EncodeToString(sum[:])[:8]
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
